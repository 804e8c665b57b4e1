package application

import (
	"context"
	"errors"
	"sync"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// ErrNoRemote is returned by ReviewAPIProvider while no backend is configured.
var ErrNoRemote = errors.New("no review API configured")

// RemoteBackend is everything the engine needs from a remote: the review API,
// the authenticated author, and the pass-through comment hooks.
type RemoteBackend interface {
	driven.ReviewAPI
	driven.AuthorProvider
	driven.CommentHooks
}

// Compile-time interface satisfaction check.
var _ RemoteBackend = (*ReviewAPIProvider)(nil)

// ReviewAPIProvider enables runtime hot-swap of the remote backend. Sessions
// hold the provider rather than a concrete backend, so replacing credentials
// or toggling mock mode takes effect without rebuilding them. Listeners
// registered with OnReplace run after every swap.
type ReviewAPIProvider struct {
	mu        sync.RWMutex
	backend   RemoteBackend
	label     string
	listeners []func()
}

// NewReviewAPIProvider creates a provider with the given initial backend.
// backend may be nil when no credentials are available at startup.
func NewReviewAPIProvider(backend RemoteBackend, label string) *ReviewAPIProvider {
	return &ReviewAPIProvider{
		backend: backend,
		label:   label,
	}
}

// Get returns the current backend, which may be nil.
func (p *ReviewAPIProvider) Get() RemoteBackend {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.backend
}

// Label names the current backend, e.g. "github:alice" or "mock".
func (p *ReviewAPIProvider) Label() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.label
}

// HasBackend returns true if a non-nil backend is currently held.
func (p *ReviewAPIProvider) HasBackend() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.backend != nil
}

// Replace swaps the backend and notifies listeners.
func (p *ReviewAPIProvider) Replace(backend RemoteBackend, label string) {
	p.mu.Lock()
	p.backend = backend
	p.label = label
	listeners := append([]func(){}, p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnReplace registers fn to run after every Replace.
func (p *ReviewAPIProvider) OnReplace(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *ReviewAPIProvider) current() (RemoteBackend, error) {
	b := p.Get()
	if b == nil {
		return nil, ErrNoRemote
	}
	return b, nil
}

// ListComments delegates to the current backend.
func (p *ReviewAPIProvider) ListComments(ctx context.Context, key model.SessionKey) ([]model.Comment, error) {
	b, err := p.current()
	if err != nil {
		return nil, err
	}
	return b.ListComments(ctx, key)
}

// EditComment delegates to the current backend.
func (p *ReviewAPIProvider) EditComment(ctx context.Context, key model.SessionKey, serverID int64, body string) error {
	b, err := p.current()
	if err != nil {
		return err
	}
	return b.EditComment(ctx, key, serverID, body)
}

// DeleteComment delegates to the current backend.
func (p *ReviewAPIProvider) DeleteComment(ctx context.Context, key model.SessionKey, serverID int64) error {
	b, err := p.current()
	if err != nil {
		return err
	}
	return b.DeleteComment(ctx, key, serverID)
}

// PublishReview delegates to the current backend.
func (p *ReviewAPIProvider) PublishReview(ctx context.Context, key model.SessionKey, submission model.ReviewSubmission) (*model.PublishResponse, error) {
	b, err := p.current()
	if err != nil {
		return nil, err
	}
	return b.PublishReview(ctx, key, submission)
}

// CurrentAuthor delegates to the current backend. Without a backend nobody is
// authenticated.
func (p *ReviewAPIProvider) CurrentAuthor(ctx context.Context) (*model.Author, error) {
	b := p.Get()
	if b == nil {
		return nil, nil
	}
	return b.CurrentAuthor(ctx)
}

// ResolveThread delegates to the current backend.
func (p *ReviewAPIProvider) ResolveThread(ctx context.Context, key model.SessionKey, serverID int64) error {
	b, err := p.current()
	if err != nil {
		return err
	}
	return b.ResolveThread(ctx, key, serverID)
}

// AddReaction delegates to the current backend.
func (p *ReviewAPIProvider) AddReaction(ctx context.Context, key model.SessionKey, serverID int64, reaction string) error {
	b, err := p.current()
	if err != nil {
		return err
	}
	return b.AddReaction(ctx, key, serverID, reaction)
}
