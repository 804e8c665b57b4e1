package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// CommentStore is the canonical collection of comments for one review
// session. It is not safe for concurrent use; ReviewSession serializes access.
//
// Remote edits and deletes complete before the local entry changes. A remote
// failure leaves the store exactly as it was.
type CommentStore struct {
	key     model.SessionKey
	api     driven.ReviewAPI
	authors driven.AuthorProvider
	now     func() time.Time
	newID   func() string

	byID map[string]model.Comment
}

// StoreOption customizes a CommentStore.
type StoreOption func(*CommentStore)

// WithClock overrides the time source used for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *CommentStore) { s.now = now }
}

// WithIDGenerator overrides how local comment ids are generated.
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *CommentStore) { s.newID = newID }
}

// NewCommentStore creates an empty store scoped to key.
func NewCommentStore(
	key model.SessionKey,
	api driven.ReviewAPI,
	authors driven.AuthorProvider,
	opts ...StoreOption,
) *CommentStore {
	s := &CommentStore{
		key:     key,
		api:     api,
		authors: authors,
		now:     time.Now,
		newID:   uuid.NewString,
		byID:    make(map[string]model.Comment),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the session key the store is scoped to.
func (s *CommentStore) Key() model.SessionKey {
	return s.key
}

// Create builds a new comment at anchor in the given state without inserting
// it. It returns nil, nil when no author is authenticated.
func (s *CommentStore) Create(ctx context.Context, anchor model.Anchor, state model.CommentState) (*model.Comment, error) {
	if err := anchor.Validate(); err != nil {
		return nil, err
	}
	if !state.Valid() {
		return nil, model.NewValidationError("state", "unknown comment state %q", state)
	}

	author, err := s.authors.CurrentAuthor(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving current author: %w", err)
	}
	if author == nil {
		return nil, nil
	}

	id := s.newID()
	now := s.now()

	return &model.Comment{
		ID:        id,
		Author:    *author,
		CreatedAt: now,
		UpdatedAt: now,
		URL:       model.LocalCommentURL(id),
		Reactions: map[string]int{},
		Path:      anchor.Path,
		Line:      anchor.Line,
		Side:      anchor.Side,
		State:     state,
	}, nil
}

// Save inserts or overwrites a comment by id.
func (s *CommentStore) Save(c model.Comment) {
	s.byID[c.ID] = c
}

// Read returns the comment with the given id.
func (s *CommentStore) Read(id string) (model.Comment, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Update merges u into the comment and refreshes UpdatedAt. When updateRemote
// is set and the comment was published, the remote edit runs first and its
// failure aborts the update.
func (s *CommentStore) Update(ctx context.Context, id string, u model.CommentUpdate, updateRemote bool) error {
	if err := s.key.Validate(); err != nil {
		return err
	}

	current, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("update comment %s: %w", id, model.ErrCommentNotFound)
	}

	next := current.With(u).With(model.CommentUpdate{UpdatedAt: model.Ptr(s.now())})

	if updateRemote && current.WasPublished {
		if !current.IsRemote() {
			return model.NewValidationError("server_id", "comment %s was published but has no server id", id)
		}
		if err := s.api.EditComment(ctx, s.key, current.ServerID, next.Body); err != nil {
			return asRemoteError("edit", err)
		}
	}

	s.byID[id] = next
	return nil
}

// Delete removes a comment. When deleteFromRemote is set and the comment was
// published, the remote delete runs first and its failure keeps the comment.
func (s *CommentStore) Delete(ctx context.Context, id string, deleteFromRemote bool) error {
	if err := s.key.Validate(); err != nil {
		return err
	}

	current, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("delete comment %s: %w", id, model.ErrCommentNotFound)
	}

	if deleteFromRemote && current.WasPublished {
		if !current.IsRemote() {
			return model.NewValidationError("server_id", "comment %s was published but has no server id", id)
		}
		if err := s.api.DeleteComment(ctx, s.key, current.ServerID); err != nil {
			return asRemoteError("delete", err)
		}
	}

	delete(s.byID, id)
	return nil
}

// List returns all comments, or only those in the given states, ordered by
// CreatedAt then id.
func (s *CommentStore) List(states ...model.CommentState) []model.Comment {
	out := make([]model.Comment, 0, len(s.byID))
	for _, c := range s.byID {
		if matchesState(c.State, states) {
			out = append(out, c)
		}
	}
	sortChronologically(out)
	return out
}

// Count returns how many comments are in the given states (all when none).
func (s *CommentStore) Count(states ...model.CommentState) int {
	n := 0
	for _, c := range s.byID {
		if matchesState(c.State, states) {
			n++
		}
	}
	return n
}

// Clear removes all comments, or only those in the given states.
func (s *CommentStore) Clear(states ...model.CommentState) {
	for id, c := range s.byID {
		if matchesState(c.State, states) {
			delete(s.byID, id)
		}
	}
}

// Threads groups the current comments by location key.
func (s *CommentStore) Threads() (map[string][]model.Comment, error) {
	return GroupThreads(s.List())
}

// MergeRemote replaces the PUBLISHED comments with a freshly fetched remote
// list. A fetched comment whose server id is held by a local non-published
// entry (a published comment being re-edited) is skipped so the local edit
// wins. A fetched comment that was already published locally keeps its local
// id. It returns the number of comments saved.
func (s *CommentStore) MergeRemote(fetched []model.Comment) int {
	return s.mergeRemote(fetched, s.publishedIDs())
}

// publishedIDs maps the server id of every PUBLISHED comment to its local id.
func (s *CommentStore) publishedIDs() map[int64]string {
	ids := make(map[int64]string)
	for id, c := range s.byID {
		if c.State == model.CommentStatePublished && c.IsRemote() {
			ids[c.ServerID] = id
		}
	}
	return ids
}

func (s *CommentStore) mergeRemote(fetched []model.Comment, known map[int64]string) int {
	s.Clear(model.CommentStatePublished)

	shadowed := make(map[int64]bool)
	for _, c := range s.byID {
		if c.IsRemote() {
			shadowed[c.ServerID] = true
		}
	}

	saved := 0
	for _, c := range fetched {
		if c.IsRemote() && shadowed[c.ServerID] {
			continue
		}
		if localID, ok := known[c.ServerID]; ok && c.IsRemote() {
			c.ID = localID
		}
		if c.ID == "" {
			c.ID = model.RemoteCommentID(c.ServerID)
		}
		c.State = model.CommentStatePublished
		c.WasPublished = true
		s.byID[c.ID] = c
		saved++
	}
	return saved
}

// discard drops a comment locally without any remote call or validation.
func (s *CommentStore) discard(id string) {
	delete(s.byID, id)
}

func matchesState(state model.CommentState, states []model.CommentState) bool {
	if len(states) == 0 {
		return true
	}
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

// asRemoteError wraps err in a *model.RemoteError unless it already is one.
func asRemoteError(op string, err error) error {
	var remoteErr *model.RemoteError
	if errors.As(err, &remoteErr) {
		return err
	}
	return &model.RemoteError{Op: op, Err: err}
}
