package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// ReviewSession owns the comment store of one pull request and serializes
// every access to it. Loads run outside the store lock so a newer load can
// supersede an older one; a superseded result is discarded.
type ReviewSession struct {
	key       model.SessionKey
	api       driven.ReviewAPI
	prefs     driven.PreferenceStore
	store     *CommentStore
	lifecycle *Lifecycle
	publisher *ReviewPublisher
	logger    *slog.Logger

	// mu guards store. Every store read or write happens under it.
	mu sync.Mutex

	loadMu     sync.Mutex
	loadGen    uint64
	cancelLoad context.CancelFunc

	posting  atomic.Bool
	lastLoad atomic.Int64 // Unix nanoseconds of the last applied load.
}

// SessionDeps bundles the collaborators of a ReviewSession.
type SessionDeps struct {
	API     driven.ReviewAPI
	Authors driven.AuthorProvider
	Hooks   driven.CommentHooks    // Optional.
	Prefs   driven.PreferenceStore // Optional.
	Logger  *slog.Logger
	Options []StoreOption
}

// NewReviewSession creates an empty session for key. The key is not validated
// here; every operation fails fast when it is unusable.
func NewReviewSession(key model.SessionKey, deps SessionDeps) *ReviewSession {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := NewCommentStore(key, deps.API, deps.Authors, deps.Options...)

	return &ReviewSession{
		key:       key,
		api:       deps.API,
		prefs:     deps.Prefs,
		store:     store,
		lifecycle: NewLifecycle(store, deps.Hooks, logger),
		publisher: NewReviewPublisher(store, deps.API, logger),
		logger:    logger,
	}
}

// Key returns the session key.
func (s *ReviewSession) Key() model.SessionKey {
	return s.key
}

// Load fetches the remote comment list and replaces the local PUBLISHED
// comments with it. Starting a load cancels any load still in flight; if this
// load is itself superseded, its result is dropped and ErrLoadSuperseded is
// returned.
func (s *ReviewSession) Load(ctx context.Context) (int, error) {
	if err := s.key.Validate(); err != nil {
		return 0, err
	}

	loadCtx, gen := s.beginLoad(ctx)
	defer s.endLoad(gen)

	fetched, err := s.api.ListComments(loadCtx, s.key)
	if !s.isCurrentLoad(gen) {
		return 0, model.ErrLoadSuperseded
	}
	if err != nil {
		return 0, fmt.Errorf("loading comments for %s: %w", s.key, asRemoteError("list", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A newer load bumps the generation before fetching, so checking again
	// under the store lock orders applies by start time.
	if !s.isCurrentLoad(gen) {
		return 0, model.ErrLoadSuperseded
	}

	saved := s.store.MergeRemote(fetched)
	s.lastLoad.Store(time.Now().UnixNano())

	s.logger.Debug("comments loaded", "session", s.key.String(), "fetched", len(fetched), "saved", saved)
	return saved, nil
}

// Invalidate cancels any in-flight load and makes its result stale. It is
// called when the inputs a load depends on (credentials, mock mode) change.
func (s *ReviewSession) Invalidate() {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	s.loadGen++
}

func (s *ReviewSession) beginLoad(ctx context.Context) (context.Context, uint64) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	s.loadGen++

	loadCtx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel
	return loadCtx, s.loadGen
}

func (s *ReviewSession) endLoad(gen uint64) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.loadGen == gen && s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
}

func (s *ReviewSession) isCurrentLoad(gen uint64) bool {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.loadGen == gen
}

// Add creates a new DRAFT comment at anchor.
func (s *ReviewSession) Add(ctx context.Context, anchor model.Anchor) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifecycle.Add(ctx, anchor)
}

// Dispatch applies an event to a comment.
func (s *ReviewSession) Dispatch(ctx context.Context, id string, in model.EventInput) (*DispatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifecycle.Dispatch(ctx, id, in)
}

// Update merges fields into a comment; see CommentStore.Update.
func (s *ReviewSession) Update(ctx context.Context, id string, u model.CommentUpdate, updateRemote bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Update(ctx, id, u, updateRemote)
}

// Delete removes a comment; see CommentStore.Delete.
func (s *ReviewSession) Delete(ctx context.Context, id string, deleteFromRemote bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx, id, deleteFromRemote)
}

// Comment returns a single comment.
func (s *ReviewSession) Comment(id string) (model.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Read(id)
}

// Comments lists comments, optionally filtered by state.
func (s *ReviewSession) Comments(states ...model.CommentState) []model.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.List(states...)
}

// Threads groups the session's comments by location.
func (s *ReviewSession) Threads() (map[string][]model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Threads()
}

// PendingCount returns how many comments await publishing.
func (s *ReviewSession) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Count(model.CommentStatePending)
}

// HasUnpublished reports whether the session holds DRAFT or PENDING comments.
func (s *ReviewSession) HasUnpublished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Count(model.CommentStateDraft, model.CommentStatePending) > 0
}

// LastActivity returns the most recent UpdatedAt across the session's
// comments, or the zero time when there are none.
func (s *ReviewSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest time.Time
	for _, c := range s.store.List() {
		if c.UpdatedAt.After(newest) {
			newest = c.UpdatedAt
		}
	}
	return newest
}

// LastLoaded returns when a load was last applied.
func (s *ReviewSession) LastLoaded() time.Time {
	ns := s.lastLoad.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// IsPosting reports whether a publish is in flight.
func (s *ReviewSession) IsPosting() bool {
	return s.posting.Load()
}

// Publish submits the pending comments as one review. Only one publish may
// run per session; a concurrent call fails with ErrPublishInProgress. The
// posting flag clears only after reconciliation or resync has finished.
func (s *ReviewSession) Publish(ctx context.Context, req model.PublishRequest) (*model.PublishResult, error) {
	if !s.posting.CompareAndSwap(false, true) {
		return nil, model.ErrPublishInProgress
	}
	defer s.posting.Store(false)

	if req.Verdict == "" {
		req.Verdict = s.DefaultVerdict(ctx)
	}

	// A load that started before the publish would overwrite the reconciled
	// comments with a stale list.
	s.Invalidate()

	s.mu.Lock()
	result, err := s.publisher.Publish(ctx, req)
	// Loads that started while the publish held the store fetched a list from
	// before the review existed.
	s.Invalidate()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.rememberVerdict(ctx, req.Verdict)

	s.logger.Info("review published",
		"session", s.key.String(),
		"verdict", string(req.Verdict),
		"published", result.Published,
		"resynced", result.Resynced,
	)
	return result, nil
}

// DefaultVerdict returns the verdict last published in this session, or
// COMMENT when none is remembered.
func (s *ReviewSession) DefaultVerdict(ctx context.Context) model.ReviewVerdict {
	if s.prefs == nil {
		return model.VerdictComment
	}

	raw, err := s.prefs.Get(ctx, s.verdictPrefKey())
	if err != nil {
		s.logger.Warn("failed to read verdict preference", "session", s.key.String(), "error", err)
		return model.VerdictComment
	}
	if raw == "" {
		return model.VerdictComment
	}

	verdict, err := model.ParseVerdict(raw)
	if err != nil {
		return model.VerdictComment
	}
	return verdict
}

// SetDefaultVerdict stores the verdict offered by DefaultVerdict.
func (s *ReviewSession) SetDefaultVerdict(ctx context.Context, verdict model.ReviewVerdict) error {
	parsed, err := model.ParseVerdict(string(verdict))
	if err != nil {
		return err
	}
	if s.prefs == nil {
		return nil
	}
	if err := s.prefs.Set(ctx, s.verdictPrefKey(), string(parsed)); err != nil {
		return fmt.Errorf("storing verdict preference for %s: %w", s.key, err)
	}
	return nil
}

func (s *ReviewSession) rememberVerdict(ctx context.Context, verdict model.ReviewVerdict) {
	if s.prefs == nil {
		return
	}
	if err := s.prefs.Set(ctx, s.verdictPrefKey(), string(verdict)); err != nil {
		s.logger.Warn("failed to store verdict preference", "session", s.key.String(), "error", err)
	}
}

func (s *ReviewSession) verdictPrefKey() string {
	return PreferenceKey(s.key, "verdict")
}

// PreferenceKey builds the persistence key for a session-scoped preference.
func PreferenceKey(key model.SessionKey, name string) string {
	return "session:" + key.String() + ":" + name
}
