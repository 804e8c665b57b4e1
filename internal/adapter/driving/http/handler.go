package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/reviewsync/internal/application"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// maxBodyBytes caps request bodies; comment bodies are small.
const maxBodyBytes = 1 << 20

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	registry    *application.SessionRegistry
	syncSvc     *application.SyncService
	provider    *application.ReviewAPIProvider
	credentials *application.CredentialManager
	logger      *slog.Logger
}

// NewHandler creates a Handler. syncSvc and credentials may be nil: refreshes
// then load the session directly and the token endpoints report 503.
func NewHandler(
	registry *application.SessionRegistry,
	syncSvc *application.SyncService,
	provider *application.ReviewAPIProvider,
	credentials *application.CredentialManager,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		registry:    registry,
		syncSvc:     syncSvc,
		provider:    provider,
		credentials: credentials,
		logger:      logger,
	}
}

// RegisterAPIRoutes registers every API route on mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("PUT /api/v1/auth/token", h.SetToken)
	mux.HandleFunc("DELETE /api/v1/auth/token", h.ClearToken)

	mux.HandleFunc("GET /api/v1/sessions", h.ListSessions)

	const session = "/api/v1/sessions/{owner}/{repo}/{number}"
	mux.HandleFunc("GET "+session+"/comments", h.ListComments)
	mux.HandleFunc("POST "+session+"/comments", h.AddComment)
	mux.HandleFunc("GET "+session+"/comments/{id}", h.GetComment)
	mux.HandleFunc("POST "+session+"/comments/{id}/events", h.DispatchEvent)
	mux.HandleFunc("GET "+session+"/threads", h.ListThreads)
	mux.HandleFunc("POST "+session+"/refresh", h.Refresh)
	mux.HandleFunc("POST "+session+"/review", h.PublishReview)
	mux.HandleFunc("GET "+session+"/preferences", h.GetPreferences)
	mux.HandleFunc("PUT "+session+"/preferences", h.SetPreferences)
}

// ApplyMiddleware wraps handler with logging and recovery middleware.
func ApplyMiddleware(handler http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, handler)
	wrapped = loggingMiddleware(logger, wrapped)
	return wrapped
}

// NewServeMux creates an http.Handler with all API routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterAPIRoutes(mux, h)
	return ApplyMiddleware(mux, logger)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	if h.provider != nil {
		resp.Remote = h.provider.Label()
		resp.RemoteConfigured = h.provider.HasBackend()
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetToken validates a GitHub token and swaps the remote to use it.
func (h *Handler) SetToken(w http.ResponseWriter, r *http.Request) {
	if h.credentials == nil {
		writeError(w, http.StatusServiceUnavailable, "token management is disabled")
		return
	}

	var req SetTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	username, persisted, err := h.credentials.ApplyToken(r.Context(), req.Token)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Username: username, Persisted: persisted})
}

// ClearToken removes the configured token and stored credentials.
func (h *Handler) ClearToken(w http.ResponseWriter, r *http.Request) {
	if h.credentials == nil {
		writeError(w, http.StatusServiceUnavailable, "token management is disabled")
		return
	}

	if err := h.credentials.ClearToken(r.Context()); err != nil {
		h.logger.Error("failed to clear token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// sessionKey builds a SessionKey from the {owner}/{repo}/{number} path values.
func sessionKey(r *http.Request) (model.SessionKey, error) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		return model.SessionKey{}, model.NewValidationError("number", "invalid pull request number %q", r.PathValue("number"))
	}

	key := model.SessionKey{
		Owner:  r.PathValue("owner"),
		Repo:   r.PathValue("repo"),
		Number: number,
	}
	if err := key.Validate(); err != nil {
		return model.SessionKey{}, err
	}
	return key, nil
}

// session resolves the request's session, creating it on first use. It writes
// the error response and returns nil when the key is invalid.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *application.ReviewSession {
	key, err := sessionKey(r)
	if err != nil {
		h.writeDomainError(w, err)
		return nil
	}

	s, err := h.registry.Get(key)
	if err != nil {
		h.writeDomainError(w, err)
		return nil
	}
	return s
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeDomainError maps application and domain errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		remoteErr      *model.RemoteError
		consistencyErr *model.ConsistencyError
	)

	switch {
	case errors.Is(err, model.ErrCommentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrDraftExists),
		errors.Is(err, model.ErrMultipleDrafts),
		errors.Is(err, model.ErrPublishInProgress),
		errors.Is(err, model.ErrLoadSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrNoAuthor):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrNoRemote):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &consistencyErr), errors.As(err, &remoteErr):
		h.logger.Warn("remote review API failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
