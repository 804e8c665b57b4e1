package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// ReviewPublisher submits every PENDING comment as one review and reconciles
// local ids with server ids. It keeps no state between calls; the caller is
// responsible for allowing only one publish at a time.
type ReviewPublisher struct {
	store  *CommentStore
	api    driven.ReviewAPI
	logger *slog.Logger
}

// NewReviewPublisher creates a ReviewPublisher for the given store.
func NewReviewPublisher(store *CommentStore, api driven.ReviewAPI, logger *slog.Logger) *ReviewPublisher {
	return &ReviewPublisher{
		store:  store,
		api:    api,
		logger: logger,
	}
}

// Publish submits the pending batch. On success each submitted comment
// becomes PUBLISHED with its server id. When the remote reports a consistency
// failure, local published state is discarded and refetched from the server.
func (p *ReviewPublisher) Publish(ctx context.Context, req model.PublishRequest) (*model.PublishResult, error) {
	key := p.store.Key()
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if _, err := model.ParseVerdict(string(req.Verdict)); err != nil {
		return nil, err
	}

	pending := p.store.List(model.CommentStatePending)
	if len(pending) == 0 {
		return nil, model.ErrNothingToPublish
	}

	submission := model.ReviewSubmission{
		Verdict:  req.Verdict,
		Summary:  req.Summary,
		CommitID: req.CommitID,
		Comments: make([]model.SubmittedComment, 0, len(pending)),
	}
	for _, c := range pending {
		submission.Comments = append(submission.Comments, model.SubmittedComment{
			LocalID: c.ID,
			Path:    c.Path,
			Line:    c.Line,
			Side:    c.Side,
			Body:    c.Body,
		})
	}

	resp, err := p.api.PublishReview(ctx, key, submission)
	if err != nil {
		var consistencyErr *model.ConsistencyError
		if errors.As(err, &consistencyErr) {
			p.logger.Warn("published comments diverged from server, resyncing",
				"session", key.String(),
				"submitted", len(pending),
				"error", err,
			)
			return p.resync(ctx, pending)
		}
		return nil, fmt.Errorf("publishing review for %s: %w", key, asRemoteError("publish", err))
	}

	return p.reconcile(ctx, resp, len(pending))
}

// reconcile maps local ids to server ids and marks the comments published.
func (p *ReviewPublisher) reconcile(ctx context.Context, resp *model.PublishResponse, submitted int) (*model.PublishResult, error) {
	result := &model.PublishResult{}
	if resp == nil {
		result.Unmatched = submitted
		return result, nil
	}
	result.ReviewID = resp.ReviewID

	for _, m := range resp.UpdatedComments {
		if _, ok := p.store.Read(m.LocalID); !ok {
			p.logger.Debug("publish response names unknown comment", "local_id", m.LocalID, "server_id", m.ServerID)
			continue
		}

		u := model.CommentUpdate{
			ServerID:     model.Ptr(m.ServerID),
			State:        model.Ptr(model.CommentStatePublished),
			WasPublished: model.Ptr(true),
		}
		if m.URL != "" {
			u.URL = model.Ptr(m.URL)
		}
		if err := p.store.Update(ctx, m.LocalID, u, false); err != nil {
			return nil, fmt.Errorf("reconciling comment %s: %w", m.LocalID, err)
		}
		result.Published++
	}

	result.Unmatched = submitted - result.Published
	if result.Unmatched > 0 {
		p.logger.Warn("publish response did not cover every submitted comment",
			"session", p.store.Key().String(),
			"submitted", submitted,
			"published", result.Published,
		)
	}

	return result, nil
}

// resync abandons local published state and trusts the server: published
// comments and the batch the server already accepted are dropped, then the
// remote list is fetched once.
func (p *ReviewPublisher) resync(ctx context.Context, submitted []model.Comment) (*model.PublishResult, error) {
	known := p.store.publishedIDs()
	p.store.Clear(model.CommentStatePublished)
	for _, c := range submitted {
		if current, ok := p.store.Read(c.ID); ok && current.State == model.CommentStatePending {
			p.store.discard(c.ID)
		}
	}

	fetched, err := p.api.ListComments(ctx, p.store.Key())
	if err != nil {
		return nil, fmt.Errorf("refetching comments after publish: %w", asRemoteError("list", err))
	}

	saved := p.store.mergeRemote(fetched, known)
	return &model.PublishResult{Resynced: true, Refetched: saved}, nil
}
