package model

// PublishRequest is the caller's input to a review submission. The comment
// batch is collected from the store, not supplied by the caller.
type PublishRequest struct {
	Verdict  ReviewVerdict
	Summary  string // Optional top-level review body.
	CommitID string // Head SHA the review applies to; empty lets the adapter resolve it.
}

// SubmittedComment is one pending comment as sent to the remote API.
type SubmittedComment struct {
	LocalID string
	Path    string
	Line    int
	Side    Side
	Body    string
}

// ReviewSubmission is what the remote API receives for one review.
type ReviewSubmission struct {
	Verdict  ReviewVerdict
	Summary  string
	CommitID string
	Comments []SubmittedComment
}

// CommentIDMapping pairs a locally generated id with the id the server
// assigned to the same comment.
type CommentIDMapping struct {
	LocalID  string
	ServerID int64
	URL      string // Remote permalink; may be empty.
}

// PublishResponse is returned by the remote API for an accepted review.
type PublishResponse struct {
	ReviewID        int64
	UpdatedComments []CommentIDMapping
}

// PublishResult summarizes what the publisher did to the local store.
type PublishResult struct {
	ReviewID  int64
	Published int  // Comments reconciled to PUBLISHED.
	Unmatched int  // Submitted comments the response did not mention; left PENDING.
	Resynced  bool // True when a consistency failure forced a full refetch.
	Refetched int  // Comments loaded by the refetch.
}
