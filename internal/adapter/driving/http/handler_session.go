package httphandler

import (
	"net/http"

	"github.com/ericfisherdev/reviewsync/internal/application"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// ListSessions returns every session the process has opened.
func (h *Handler) ListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := h.registry.List()

	resp := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		item := toSessionResponse(s)
		if h.syncSvc != nil {
			if sch, ok := h.syncSvc.Schedule(s.Key()); ok {
				item.Tier = sch.Tier.String()
				item.NextSyncAt = formatTime(sch.NextSyncAt)
			}
		}
		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListComments returns a session's comments, optionally filtered by ?state=.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	var states []model.CommentState
	if raw := r.URL.Query().Get("state"); raw != "" {
		state, err := model.ParseCommentState(raw)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		states = append(states, state)
	}

	comments := s.Comments(states...)
	resp := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		resp = append(resp, toCommentResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetComment returns a single comment by local id.
func (h *Handler) GetComment(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	c, ok := s.Comment(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}

	writeJSON(w, http.StatusOK, toCommentResponse(c))
}

// AddComment opens a new draft at the requested diff location.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	var req AddCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	side, err := model.ParseSide(req.Side)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	c, err := s.Add(r.Context(), model.Anchor{Path: req.Path, Line: req.Line, Side: side})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(*c))
}

// DispatchEvent applies a lifecycle event (SAVE, CANCEL, EDIT, ...) to a comment.
func (h *Handler) DispatchEvent(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	var req EventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := model.ParseEvent(req.Event)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result, err := s.Dispatch(r.Context(), r.PathValue("id"), model.EventInput{
		Event:    ev,
		Body:     req.Body,
		Reaction: req.Reaction,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(result))
}

// ListThreads returns the session's comments grouped by diff location.
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	threads, err := s.Threads()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	summaries := application.SummarizeThreads(threads)
	resp := make([]ThreadResponse, 0, len(summaries))
	for _, t := range summaries {
		resp = append(resp, toThreadResponse(t))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Refresh reloads the session's published comments from the remote.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	var err error
	if h.syncSvc != nil {
		err = h.syncSvc.RefreshSession(r.Context(), s.Key())
	} else {
		_, err = s.Load(r.Context())
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// PublishReview submits every pending comment as one review.
func (h *Handler) PublishReview(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	var req PublishRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var verdict model.ReviewVerdict
	if req.Verdict != "" {
		parsed, err := model.ParseVerdict(req.Verdict)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		verdict = parsed
	}

	result, err := s.Publish(r.Context(), model.PublishRequest{
		Verdict:  verdict,
		Summary:  req.Summary,
		CommitID: req.CommitID,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPublishResponse(result, s.PendingCount()))
}

// GetPreferences returns the session's remembered preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{
		Verdict: string(s.DefaultVerdict(r.Context())),
	})
}

// SetPreferences updates the session's remembered preferences.
func (h *Handler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	var req PreferencesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.SetDefaultVerdict(r.Context(), model.ReviewVerdict(req.Verdict)); err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{
		Verdict: string(s.DefaultVerdict(r.Context())),
	})
}
