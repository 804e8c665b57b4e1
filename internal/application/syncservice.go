// Package application contains the comment lifecycle engine and the
// services that orchestrate it.
package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	key  model.SessionKey
	done chan error
}

// SyncService periodically reloads the comment list of every open review
// session. Each session is synced on its own adaptive schedule, and sessions
// that are due in the same cycle are loaded concurrently.
type SyncService struct {
	registry    *SessionRegistry
	interval    time.Duration
	concurrency int
	refreshCh   chan refreshRequest
	resyncCh    chan struct{}

	mu        sync.Mutex
	schedules map[model.SessionKey]sessionSchedule
}

// NewSyncService creates a SyncService. interval is the scheduler tick; a
// session is only loaded on a tick once its own schedule says it is due.
func NewSyncService(registry *SessionRegistry, interval time.Duration, concurrency int) *SyncService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncService{
		registry:    registry,
		interval:    interval,
		concurrency: concurrency,
		refreshCh:   make(chan refreshRequest),
		resyncCh:    make(chan struct{}, 1),
		schedules:   make(map[model.SessionKey]sessionSchedule),
	}
}

// Start begins the sync loop. It runs an immediate sync, then checks for due
// sessions on the configured interval. It also listens for manual refresh
// requests. Start blocks until the context is canceled.
func (s *SyncService) Start(ctx context.Context) {
	s.syncDue(ctx, true)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync service stopped")
			return
		case <-ticker.C:
			s.syncDue(ctx, false)
		case req := <-s.refreshCh:
			req.done <- s.syncSession(ctx, req.key)
		case <-s.resyncCh:
			s.syncDue(ctx, true)
		}
	}
}

// RefreshSession triggers a manual reload of one session, bypassing its
// schedule. It blocks until the reload completes or the context is canceled.
func (s *SyncService) RefreshSession(ctx context.Context, key model.SessionKey) error {
	done := make(chan error, 1)
	req := refreshRequest{
		key:  key,
		done: done,
	}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResyncAll asks the loop to reload every session on its next iteration,
// ignoring schedules. Requests made while one is already queued coalesce.
func (s *SyncService) ResyncAll() {
	select {
	case s.resyncCh <- struct{}{}:
	default:
	}
}

// Schedule returns the adaptive schedule of a session, if it has synced.
func (s *SyncService) Schedule(key model.SessionKey) (ScheduleInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sch, ok := s.schedules[key]
	if !ok {
		return ScheduleInfo{}, false
	}
	return ScheduleInfo{
		Tier:       sch.tier,
		NextSyncAt: sch.nextSyncAt,
		LastSynced: sch.lastSynced,
	}, true
}

// syncDue loads every session whose schedule has elapsed, or every session
// when force is set.
func (s *SyncService) syncDue(ctx context.Context, force bool) {
	start := time.Now()

	var due []*ReviewSession
	for _, session := range s.registry.List() {
		if force || s.isDue(session.Key(), start) {
			due = append(due, session)
		}
	}
	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var mu sync.Mutex
	var syncErrors, skipped int
	for _, session := range due {
		g.Go(func() error {
			err := s.loadSession(gctx, session)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, errSessionBusy):
				skipped++
			case err != nil:
				syncErrors++
				slog.Error("session sync failed", "session", session.Key().String(), "error", err)
			}
			// Per-session failures are logged, never returned, so one bad
			// session does not cancel the rest of the cycle.
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("sync cycle complete",
		"sessions", len(due),
		"errors", syncErrors,
		"skipped", skipped,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// syncSession handles a manual refresh of a single session.
func (s *SyncService) syncSession(ctx context.Context, key model.SessionKey) error {
	session, err := s.registry.Get(key)
	if err != nil {
		return err
	}
	err = s.loadSession(ctx, session)
	if errors.Is(err, errSessionBusy) {
		return model.ErrPublishInProgress
	}
	return err
}

var errSessionBusy = errors.New("session is publishing")

// loadSession reloads a session and reschedules it. Sessions that are
// publishing are left alone; their publish already refreshes the store.
func (s *SyncService) loadSession(ctx context.Context, session *ReviewSession) error {
	if session.IsPosting() {
		return errSessionBusy
	}

	saved, err := session.Load(ctx)
	if errors.Is(err, model.ErrLoadSuperseded) {
		slog.Debug("session load superseded", "session", session.Key().String())
		return nil
	}

	sch := nextSchedule(session.LastActivity(), session.HasUnpublished(), time.Now())
	s.mu.Lock()
	s.schedules[session.Key()] = sch
	s.mu.Unlock()

	if err != nil {
		return err
	}

	slog.Debug("session synced",
		"session", session.Key().String(),
		"saved", saved,
		"tier", sch.tier.String(),
		"next_sync_at", sch.nextSyncAt,
	)
	return nil
}

func (s *SyncService) isDue(key model.SessionKey, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sch, ok := s.schedules[key]
	if !ok {
		return true
	}
	return !now.Before(sch.nextSyncAt)
}
