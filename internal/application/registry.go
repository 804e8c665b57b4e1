package application

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// SessionRegistry hands out one ReviewSession per pull request, creating it
// on first use. Sessions never share a store.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[model.SessionKey]*ReviewSession
	deps     SessionDeps
}

// NewSessionRegistry creates a registry whose sessions share the given
// collaborators.
func NewSessionRegistry(backend RemoteBackend, prefs driven.PreferenceStore, logger *slog.Logger, opts ...StoreOption) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[model.SessionKey]*ReviewSession),
		deps: SessionDeps{
			API:     backend,
			Authors: backend,
			Hooks:   backend,
			Prefs:   prefs,
			Logger:  logger,
			Options: opts,
		},
	}
}

// Get returns the session for key, creating it if needed. The key must be
// valid.
func (r *SessionRegistry) Get(key model.SessionKey) (*ReviewSession, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		return s, nil
	}

	s := NewReviewSession(key, r.deps)
	r.sessions[key] = s
	return s, nil
}

// Lookup returns an existing session without creating one.
func (r *SessionRegistry) Lookup(key model.SessionKey) (*ReviewSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// List returns all sessions ordered by key.
func (r *SessionRegistry) List() []*ReviewSession {
	r.mu.Lock()
	out := make([]*ReviewSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

// Remove drops a session, cancelling any load it has in flight.
func (r *SessionRegistry) Remove(key model.SessionKey) {
	r.mu.Lock()
	s, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if ok {
		s.Invalidate()
	}
}

// InvalidateAll cancels every session's in-flight load.
func (r *SessionRegistry) InvalidateAll() {
	for _, s := range r.List() {
		s.Invalidate()
	}
}
