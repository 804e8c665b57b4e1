package driven

import (
	"context"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// ReviewAPI defines the driven port for the remote review service. Every call
// is scoped to one pull request by its session key.
type ReviewAPI interface {
	// ListComments returns every inline comment currently on the pull request,
	// already in the PUBLISHED state with WasPublished set.
	ListComments(ctx context.Context, key model.SessionKey) ([]model.Comment, error)

	// EditComment replaces the body of a published comment.
	EditComment(ctx context.Context, key model.SessionKey, serverID int64, body string) error

	// DeleteComment removes a published comment.
	DeleteComment(ctx context.Context, key model.SessionKey, serverID int64) error

	// PublishReview submits the batch of pending comments with a verdict.
	// It returns *model.ConsistencyError when the review was accepted but the
	// follow-up fetch used to map local ids to server ids failed.
	PublishReview(ctx context.Context, key model.SessionKey, submission model.ReviewSubmission) (*model.PublishResponse, error)
}

// AuthorProvider resolves the currently authenticated reviewer.
type AuthorProvider interface {
	// CurrentAuthor returns nil, nil when nobody is authenticated.
	CurrentAuthor(ctx context.Context) (*model.Author, error)
}

// CommentHooks receives the pass-through events that have no local state
// transition. It is intentionally separate from ReviewAPI.
type CommentHooks interface {
	// ResolveThread marks the thread containing the comment as resolved.
	ResolveThread(ctx context.Context, key model.SessionKey, serverID int64) error

	// AddReaction adds a reaction (e.g. "+1", "heart") to a published comment.
	AddReaction(ctx context.Context, key model.SessionKey, serverID int64, reaction string) error
}
