package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/reviewsync/internal/application"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// formatTime renders t as RFC 3339 in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status           string `json:"status"`
	Time             string `json:"time"`
	Remote           string `json:"remote"`
	RemoteConfigured bool   `json:"remote_configured"`
}

// SetTokenRequest is the JSON body for the token endpoint.
type SetTokenRequest struct {
	Token string `json:"token"`
}

// TokenResponse reports who a newly applied token authenticates as.
type TokenResponse struct {
	Username  string `json:"username"`
	Persisted bool   `json:"persisted"`
}

// AuthorResponse is the JSON representation of a comment author.
type AuthorResponse struct {
	Username   string `json:"username"`
	AvatarURL  string `json:"avatar_url"`
	ProfileURL string `json:"profile_url"`
}

// CommentResponse is the JSON representation of an inline comment.
type CommentResponse struct {
	ID           string         `json:"id"`
	ServerID     int64          `json:"server_id,omitempty"`
	Author       AuthorResponse `json:"author"`
	Body         string         `json:"body"`
	Path         string         `json:"path"`
	Line         int            `json:"line"`
	Side         string         `json:"side"`
	State        string         `json:"state"`
	WasPublished bool           `json:"was_published"`
	URL          string         `json:"url"`
	Reactions    map[string]int `json:"reactions"`
	LocationKey  string         `json:"location_key"`
	IdentityKey  string         `json:"identity_key"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

// AddCommentRequest is the JSON body for opening a draft at a diff location.
type AddCommentRequest struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Side string `json:"side"`
}

// EventRequest is the JSON body for a lifecycle event.
type EventRequest struct {
	Event    string `json:"event"`
	Body     string `json:"body,omitempty"`
	Reaction string `json:"reaction,omitempty"`
}

// EventResponse reports the outcome of a lifecycle event.
type EventResponse struct {
	Effect  string           `json:"effect"`
	Comment *CommentResponse `json:"comment,omitempty"`
	Reply   *CommentResponse `json:"reply,omitempty"`
	Deleted bool             `json:"deleted"`
}

// ThreadResponse is one diff location and the comments attached to it.
type ThreadResponse struct {
	LocationKey string            `json:"location_key"`
	Path        string            `json:"path"`
	Line        int               `json:"line"`
	Side        string            `json:"side"`
	Comments    []CommentResponse `json:"comments"`
	DraftID     string            `json:"draft_id,omitempty"`
	Pending     int               `json:"pending"`
	Published   int               `json:"published"`
}

// PublishRequest is the JSON body for submitting a review.
type PublishRequest struct {
	Verdict  string `json:"verdict"`
	Summary  string `json:"summary"`
	CommitID string `json:"commit_id"`
}

// PublishResponse summarizes a submitted review.
type PublishResponse struct {
	ReviewID  int64 `json:"review_id,omitempty"`
	Published int   `json:"published"`
	Unmatched int   `json:"unmatched"`
	Resynced  bool  `json:"resynced"`
	Refetched int   `json:"refetched"`
	Pending   int   `json:"pending"`
}

// SessionResponse is the JSON representation of an open review session.
type SessionResponse struct {
	Key        string `json:"key"`
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Number     int    `json:"number"`
	Comments   int    `json:"comments"`
	Pending    int    `json:"pending"`
	Posting    bool   `json:"posting"`
	LastLoaded string `json:"last_loaded,omitempty"`
	Tier       string `json:"tier,omitempty"`
	NextSyncAt string `json:"next_sync_at,omitempty"`
}

// PreferencesRequest is the JSON body for updating session preferences.
type PreferencesRequest struct {
	Verdict string `json:"verdict"`
}

// PreferencesResponse is the JSON representation of session preferences.
type PreferencesResponse struct {
	Verdict string `json:"verdict"`
}

// toCommentResponse converts a domain Comment to its JSON representation.
func toCommentResponse(c model.Comment) CommentResponse {
	reactions := c.Reactions
	if reactions == nil {
		reactions = map[string]int{}
	}

	return CommentResponse{
		ID:       c.ID,
		ServerID: c.ServerID,
		Author: AuthorResponse{
			Username:   c.Author.Username,
			AvatarURL:  c.Author.AvatarURL,
			ProfileURL: c.Author.ProfileURL,
		},
		Body:         c.Body,
		Path:         c.Path,
		Line:         c.Line,
		Side:         string(c.Side),
		State:        string(c.State),
		WasPublished: c.WasPublished,
		URL:          c.URL,
		Reactions:    reactions,
		LocationKey:  c.LocationKey(),
		IdentityKey:  model.IdentityKey(c),
		CreatedAt:    formatTime(c.CreatedAt),
		UpdatedAt:    formatTime(c.UpdatedAt),
	}
}

// toEventResponse converts a dispatch result to its JSON representation.
func toEventResponse(r *application.DispatchResult) EventResponse {
	resp := EventResponse{
		Effect:  r.Transition.Effect.String(),
		Deleted: r.Deleted,
	}
	if r.Comment != nil {
		c := toCommentResponse(*r.Comment)
		resp.Comment = &c
	}
	if r.Reply != nil {
		reply := toCommentResponse(*r.Reply)
		resp.Reply = &reply
	}
	return resp
}

// toThreadResponse converts a thread summary to its JSON representation.
func toThreadResponse(t application.ThreadSummary) ThreadResponse {
	comments := make([]CommentResponse, 0, len(t.Comments))
	for _, c := range t.Comments {
		comments = append(comments, toCommentResponse(c))
	}

	resp := ThreadResponse{
		LocationKey: t.LocationKey,
		Path:        t.Anchor.Path,
		Line:        t.Anchor.Line,
		Side:        string(t.Anchor.Side),
		Comments:    comments,
		Pending:     t.Pending,
		Published:   t.Published,
	}
	if t.Draft != nil {
		resp.DraftID = t.Draft.ID
	}
	return resp
}

// toPublishResponse converts a publish result to its JSON representation.
func toPublishResponse(r *model.PublishResult, pending int) PublishResponse {
	return PublishResponse{
		ReviewID:  r.ReviewID,
		Published: r.Published,
		Unmatched: r.Unmatched,
		Resynced:  r.Resynced,
		Refetched: r.Refetched,
		Pending:   pending,
	}
}

// toSessionResponse converts a session to its JSON representation.
func toSessionResponse(s *application.ReviewSession) SessionResponse {
	key := s.Key()
	return SessionResponse{
		Key:        key.String(),
		Owner:      key.Owner,
		Repo:       key.Repo,
		Number:     key.Number,
		Comments:   len(s.Comments()),
		Pending:    s.PendingCount(),
		Posting:    s.IsPosting(),
		LastLoaded: formatTime(s.LastLoaded()),
	}
}
