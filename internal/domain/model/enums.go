package model

import "strings"

// CommentState is the lifecycle state of an inline comment.
type CommentState string

const (
	CommentStateDraft     CommentState = "DRAFT"
	CommentStatePending   CommentState = "PENDING"
	CommentStatePublished CommentState = "PUBLISHED"
)

// Valid reports whether s is one of the known lifecycle states.
func (s CommentState) Valid() bool {
	switch s {
	case CommentStateDraft, CommentStatePending, CommentStatePublished:
		return true
	default:
		return false
	}
}

// ParseCommentState parses a state name case-insensitively.
func ParseCommentState(raw string) (CommentState, error) {
	s := CommentState(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", NewValidationError("state", "unknown comment state %q", raw)
	}
	return s, nil
}

// Side identifies which half of a split diff a comment is attached to.
type Side string

const (
	SideLeft  Side = "LEFT"  // Old content (deletions).
	SideRight Side = "RIGHT" // New content (additions).
)

// ParseSide accepts "left"/"right" in any case, as produced by diff viewers.
func ParseSide(raw string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(raw))) {
	case SideLeft:
		return SideLeft, nil
	case SideRight:
		return SideRight, nil
	default:
		return "", NewValidationError("side", "unknown diff side %q", raw)
	}
}

// ReviewVerdict is the overall outcome attached to a published review.
type ReviewVerdict string

const (
	VerdictComment        ReviewVerdict = "COMMENT"
	VerdictApprove        ReviewVerdict = "APPROVE"
	VerdictRequestChanges ReviewVerdict = "REQUEST_CHANGES"
)

// ParseVerdict parses a verdict name case-insensitively.
func ParseVerdict(raw string) (ReviewVerdict, error) {
	v := ReviewVerdict(strings.ToUpper(strings.TrimSpace(raw)))
	switch v {
	case VerdictComment, VerdictApprove, VerdictRequestChanges:
		return v, nil
	default:
		return "", NewValidationError("verdict", "unknown review verdict %q", raw)
	}
}

// Event is a user action applied to a comment.
type Event string

const (
	EventAdd     Event = "ADD"
	EventSave    Event = "SAVE"
	EventCancel  Event = "CANCEL"
	EventEdit    Event = "EDIT"
	EventDelete  Event = "DELETE"
	EventReply   Event = "REPLY"
	EventResolve Event = "RESOLVE"
	EventReact   Event = "REACT"
)

// AllEvents lists every event in declaration order.
var AllEvents = []Event{
	EventAdd, EventSave, EventCancel, EventEdit,
	EventDelete, EventReply, EventResolve, EventReact,
}

// ParseEvent parses an event name case-insensitively.
func ParseEvent(raw string) (Event, error) {
	e := Event(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AllEvents {
		if e == known {
			return e, nil
		}
	}
	return "", NewValidationError("event", "unknown comment event %q", raw)
}
