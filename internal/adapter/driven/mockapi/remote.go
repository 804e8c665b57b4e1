// Package mockapi provides an in-memory remote review service. It backs the
// server in mock mode and lets tests inject remote failures.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.ReviewAPI      = (*Remote)(nil)
	_ driven.AuthorProvider = (*Remote)(nil)
	_ driven.CommentHooks   = (*Remote)(nil)
)

// Operation names accepted by FailNext. They match model.RemoteError ops.
const (
	OpList    = "list"
	OpEdit    = "edit"
	OpDelete  = "delete"
	OpPublish = "publish"
	OpResolve = "resolve"
	OpReact   = "react"
)

// ErrNotFound is returned for unknown server ids.
var ErrNotFound = errors.New("mockapi: comment not found")

// Remote is an in-memory implementation of every remote port.
type Remote struct {
	mu sync.Mutex

	author   *model.Author
	baseURL  string
	now      func() time.Time
	nextID   int64
	reviewID int64

	comments     map[model.SessionKey][]model.Comment
	resolved     map[int64]bool
	failures     map[string][]error
	inconsistent int
}

// New creates an empty Remote authenticated as author. A nil author
// simulates a signed-out user.
func New(author *model.Author) *Remote {
	return &Remote{
		author:   author,
		baseURL:  "https://mock.reviewsync.local",
		now:      time.Now,
		nextID:   1000,
		comments: make(map[model.SessionKey][]model.Comment),
		resolved: make(map[int64]bool),
		failures: make(map[string][]error),
	}
}

// SetClock overrides the time source used for created and updated stamps.
func (r *Remote) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// SetAuthor changes the authenticated user.
func (r *Remote) SetAuthor(author *model.Author) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.author = author
}

// Seed adds already published comments to a pull request. Comments without
// a server id get one assigned.
func (r *Remote) Seed(key model.SessionKey, comments ...model.Comment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range comments {
		if c.ServerID == 0 {
			c.ServerID = r.allocID()
		}
		if c.URL == "" {
			c.URL = r.commentURL(key, c.ServerID)
		}
		c.ID = model.RemoteCommentID(c.ServerID)
		c.State = model.CommentStatePublished
		c.WasPublished = true
		r.comments[key] = append(r.comments[key], c)
	}
}

// Comments returns a snapshot of the comments stored for key.
func (r *Remote) Comments(key model.SessionKey) []model.Comment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(key)
}

// IsResolved reports whether ResolveThread was called for serverID.
func (r *Remote) IsResolved(serverID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved[serverID]
}

// FailNext makes the next call of op return err. Calls queue up: FailNext
// twice fails the next two calls.
func (r *Remote) FailNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op] = append(r.failures[op], err)
}

// FailNextPublishFetch makes the next publish accept the review but report a
// failed read-after-write fetch, as GitHub does when its replicas lag.
func (r *Remote) FailNextPublishFetch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inconsistent++
}

// ListComments returns every comment on the pull request.
func (r *Remote) ListComments(_ context.Context, key model.SessionKey) ([]model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(OpList); err != nil {
		return nil, err
	}
	return r.snapshot(key), nil
}

// EditComment replaces the body of a stored comment.
func (r *Remote) EditComment(_ context.Context, key model.SessionKey, serverID int64, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(OpEdit); err != nil {
		return err
	}

	i := r.indexOf(key, serverID)
	if i < 0 {
		return fmt.Errorf("editing %d on %s: %w", serverID, key, ErrNotFound)
	}
	c := r.comments[key][i]
	c.Body = body
	c.UpdatedAt = r.now()
	r.comments[key][i] = c
	return nil
}

// DeleteComment removes a stored comment.
func (r *Remote) DeleteComment(_ context.Context, key model.SessionKey, serverID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(OpDelete); err != nil {
		return err
	}

	i := r.indexOf(key, serverID)
	if i < 0 {
		return fmt.Errorf("deleting %d on %s: %w", serverID, key, ErrNotFound)
	}
	list := r.comments[key]
	r.comments[key] = append(list[:i:i], list[i+1:]...)
	return nil
}

// PublishReview stores every submitted comment under a new server id.
func (r *Remote) PublishReview(_ context.Context, key model.SessionKey, sub model.ReviewSubmission) (*model.PublishResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(OpPublish); err != nil {
		return nil, err
	}
	if r.author == nil {
		return nil, errors.New("mockapi: not authenticated")
	}

	r.reviewID++
	resp := &model.PublishResponse{ReviewID: r.reviewID}
	now := r.now()

	for _, sc := range sub.Comments {
		serverID := r.allocID()
		url := r.commentURL(key, serverID)
		r.comments[key] = append(r.comments[key], model.Comment{
			ID:           model.RemoteCommentID(serverID),
			ServerID:     serverID,
			Author:       *r.author,
			CreatedAt:    now,
			UpdatedAt:    now,
			URL:          url,
			Body:         sc.Body,
			Reactions:    map[string]int{},
			Path:         sc.Path,
			Line:         sc.Line,
			Side:         sc.Side,
			State:        model.CommentStatePublished,
			WasPublished: true,
		})
		resp.UpdatedComments = append(resp.UpdatedComments, model.CommentIDMapping{
			LocalID:  sc.LocalID,
			ServerID: serverID,
			URL:      url,
		})
	}

	if r.inconsistent > 0 {
		r.inconsistent--
		return nil, &model.ConsistencyError{Err: fmt.Errorf("review %d: comments not yet visible", r.reviewID)}
	}

	return resp, nil
}

// CurrentAuthor returns the configured author.
func (r *Remote) CurrentAuthor(_ context.Context) (*model.Author, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.author == nil {
		return nil, nil
	}
	author := *r.author
	return &author, nil
}

// ResolveThread records the thread of serverID as resolved.
func (r *Remote) ResolveThread(_ context.Context, key model.SessionKey, serverID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(OpResolve); err != nil {
		return err
	}
	if r.indexOf(key, serverID) < 0 {
		return fmt.Errorf("resolving %d on %s: %w", serverID, key, ErrNotFound)
	}
	r.resolved[serverID] = true
	return nil
}

// AddReaction increments a reaction counter on a stored comment.
func (r *Remote) AddReaction(_ context.Context, key model.SessionKey, serverID int64, reaction string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(OpReact); err != nil {
		return err
	}

	i := r.indexOf(key, serverID)
	if i < 0 {
		return fmt.Errorf("reacting to %d on %s: %w", serverID, key, ErrNotFound)
	}
	c := r.comments[key][i]
	c.Reactions = maps.Clone(c.Reactions)
	if c.Reactions == nil {
		c.Reactions = map[string]int{}
	}
	c.Reactions[reaction]++
	r.comments[key][i] = c
	return nil
}

func (r *Remote) takeFailure(op string) error {
	queue := r.failures[op]
	if len(queue) == 0 {
		return nil
	}
	r.failures[op] = queue[1:]
	return queue[0]
}

func (r *Remote) indexOf(key model.SessionKey, serverID int64) int {
	for i, c := range r.comments[key] {
		if c.ServerID == serverID {
			return i
		}
	}
	return -1
}

func (r *Remote) snapshot(key model.SessionKey) []model.Comment {
	out := make([]model.Comment, 0, len(r.comments[key]))
	for _, c := range r.comments[key] {
		c.Reactions = maps.Clone(c.Reactions)
		out = append(out, c)
	}
	return out
}

func (r *Remote) allocID() int64 {
	r.nextID++
	return r.nextID
}

func (r *Remote) commentURL(key model.SessionKey, serverID int64) string {
	return fmt.Sprintf("%s/%s/pull/%d#discussion_r%d", r.baseURL, key.FullName(), key.Number, serverID)
}
