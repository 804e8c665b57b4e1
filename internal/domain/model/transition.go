package model

// EventInput is an event plus the data some events carry.
type EventInput struct {
	Event    Event
	Body     string // New body for SAVE.
	Reaction string // Reaction token for REACT, e.g. "+1" or "heart".
}

// Effect is the side effect a transition asks the executor to perform.
type Effect int

const (
	// EffectNone leaves the comment and the store unchanged.
	EffectNone Effect = iota
	// EffectSetState moves the comment to Transition.Next, optionally replacing
	// its body (Transition.SetBody) and optionally editing it remotely first
	// (Transition.Remote).
	EffectSetState
	// EffectDelete removes the comment, propagating to the remote API when
	// Transition.Remote is set.
	EffectDelete
	// EffectReply creates a new DRAFT comment at the same anchor.
	EffectReply
	// EffectResolve forwards to the thread resolution hook.
	EffectResolve
	// EffectReact forwards the reaction token to the reaction hook.
	EffectReact
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectSetState:
		return "set_state"
	case EffectDelete:
		return "delete"
	case EffectReply:
		return "reply"
	case EffectResolve:
		return "resolve"
	case EffectReact:
		return "react"
	default:
		return "unknown"
	}
}

// Transition is the outcome of applying an event to a comment in its current
// state. It is pure data; nothing has happened yet.
type Transition struct {
	Effect  Effect
	Next    CommentState // Target state for EffectSetState.
	SetBody bool         // Replace the body with EventInput.Body.
	Remote  bool         // Talk to the remote API before mutating the store.
}

// IsNoop reports whether the transition does nothing.
func (t Transition) IsNoop() bool {
	return t.Effect == EffectNone
}
