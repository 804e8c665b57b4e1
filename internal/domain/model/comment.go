package model

import (
	"maps"
	"strconv"
	"time"
)

// Author identifies who wrote a comment.
type Author struct {
	Username   string
	AvatarURL  string
	ProfileURL string
}

// Comment is one inline review comment and its lifecycle state. Values are
// never modified in place; With returns an updated copy.
type Comment struct {
	ID           string // Locally assigned, stable for the comment's local lifetime.
	ServerID     int64  // Zero until the remote API has accepted the comment.
	Author       Author
	CreatedAt    time.Time
	UpdatedAt    time.Time
	URL          string // Local anchor while unpublished, remote permalink afterwards.
	Body         string
	Reactions    map[string]int
	Path         string
	Line         int
	Side         Side
	State        CommentState
	WasPublished bool // True once the comment has reached the server, even while re-edited as a draft.
}

// CommentUpdate carries the fields to change; nil fields are left as they are.
type CommentUpdate struct {
	ServerID     *int64
	Body         *string
	URL          *string
	Reactions    map[string]int // Replaces the whole mapping when non-nil.
	State        *CommentState
	WasPublished *bool
	UpdatedAt    *time.Time
}

// With returns a copy of c with u applied. The receiver is left untouched and
// the returned value shares no mutable state with it.
func (c Comment) With(u CommentUpdate) Comment {
	next := c
	next.Reactions = maps.Clone(c.Reactions)

	if u.ServerID != nil {
		next.ServerID = *u.ServerID
	}
	if u.Body != nil {
		next.Body = *u.Body
	}
	if u.URL != nil {
		next.URL = *u.URL
	}
	if u.Reactions != nil {
		next.Reactions = maps.Clone(u.Reactions)
	}
	if u.State != nil {
		next.State = *u.State
	}
	if u.WasPublished != nil {
		next.WasPublished = *u.WasPublished
	}
	if u.UpdatedAt != nil {
		next.UpdatedAt = *u.UpdatedAt
	}
	return next
}

// Anchor returns the diff location the comment is attached to.
func (c Comment) Anchor() Anchor {
	return Anchor{Path: c.Path, Line: c.Line, Side: c.Side}
}

// LocationKey returns the thread grouping key for the comment's anchor.
func (c Comment) LocationKey() string {
	return LocationKey(c.Path, c.Line, c.Side)
}

// IsRemote reports whether the comment has a server-assigned identifier.
func (c Comment) IsRemote() bool {
	return c.ServerID != 0
}

// RemoteCommentID derives the local id of a comment ingested from the remote,
// so repeated fetches of the same server comment keep one identity.
func RemoteCommentID(serverID int64) string {
	return "remote-" + strconv.FormatInt(serverID, 10)
}

// LocalCommentURL is the in-page anchor used until a comment is published.
func LocalCommentURL(id string) string {
	return "#comment-" + id
}

// Ptr returns a pointer to v. Handy for building CommentUpdate literals.
func Ptr[T any](v T) *T {
	return &v
}
