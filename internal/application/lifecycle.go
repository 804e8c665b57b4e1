package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// Plan maps a comment's current state and an incoming event to the transition
// to perform. It switches on the state first, then on the event; every pair
// not listed is a no-op.
func Plan(c model.Comment, ev model.Event) model.Transition {
	switch c.State {
	case model.CommentStateDraft:
		switch ev {
		case model.EventSave:
			if c.WasPublished {
				return model.Transition{Effect: model.EffectSetState, Next: model.CommentStatePublished, SetBody: true, Remote: true}
			}
			return model.Transition{Effect: model.EffectSetState, Next: model.CommentStatePending, SetBody: true}
		case model.EventCancel:
			// An unsaved empty draft is dropped rather than left as an orphan.
			if c.WasPublished || c.Body != "" {
				return model.Transition{Effect: model.EffectSetState, Next: model.CommentStatePending}
			}
			return model.Transition{Effect: model.EffectDelete}
		case model.EventEdit:
			return model.Transition{}
		case model.EventDelete:
			return model.Transition{Effect: model.EffectDelete}
		}

	case model.CommentStatePending:
		switch ev {
		case model.EventReply, model.EventEdit:
			return model.Transition{Effect: model.EffectSetState, Next: model.CommentStateDraft}
		case model.EventDelete:
			return model.Transition{Effect: model.EffectDelete, Remote: c.WasPublished}
		}

	case model.CommentStatePublished:
		switch ev {
		case model.EventReply:
			return model.Transition{Effect: model.EffectReply}
		case model.EventEdit:
			return model.Transition{Effect: model.EffectSetState, Next: model.CommentStateDraft}
		case model.EventDelete:
			return model.Transition{Effect: model.EffectDelete, Remote: true}
		case model.EventResolve:
			return model.Transition{Effect: model.EffectResolve}
		case model.EventReact:
			return model.Transition{Effect: model.EffectReact}
		}
	}

	return model.Transition{}
}

// DispatchResult reports what an event did.
type DispatchResult struct {
	Transition model.Transition
	Comment    *model.Comment // The comment after the event; nil when deleted.
	Reply      *model.Comment // Set when the event created a reply draft.
	Deleted    bool
}

// Lifecycle executes planned transitions against a CommentStore.
type Lifecycle struct {
	store  *CommentStore
	hooks  driven.CommentHooks
	logger *slog.Logger
}

// NewLifecycle creates a Lifecycle. hooks may be nil, in which case RESOLVE
// and REACT do nothing.
func NewLifecycle(store *CommentStore, hooks driven.CommentHooks, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		hooks:  hooks,
		logger: logger,
	}
}

// Add handles the ADD event: a new DRAFT comment is created at anchor and
// inserted into the store.
func (l *Lifecycle) Add(ctx context.Context, anchor model.Anchor) (*model.Comment, error) {
	if err := l.store.Key().Validate(); err != nil {
		return nil, err
	}
	if err := anchor.Validate(); err != nil {
		return nil, err
	}
	if err := l.ensureNoDraft(anchor.Key(), ""); err != nil {
		return nil, err
	}

	c, err := l.store.Create(ctx, anchor, model.CommentStateDraft)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.ErrNoAuthor
	}

	l.store.Save(*c)
	l.logger.Debug("comment added", "session", l.store.Key().String(), "comment", c.ID, "location", anchor.Key())
	return c, nil
}

// Dispatch applies an event to an existing comment.
func (l *Lifecycle) Dispatch(ctx context.Context, id string, in model.EventInput) (*DispatchResult, error) {
	if err := l.store.Key().Validate(); err != nil {
		return nil, err
	}
	if in.Event == model.EventAdd {
		return nil, model.NewValidationError("event", "ADD creates a comment at an anchor and cannot target comment %s", id)
	}

	c, ok := l.store.Read(id)
	if !ok {
		return nil, fmt.Errorf("dispatch %s to comment %s: %w", in.Event, id, model.ErrCommentNotFound)
	}

	t := Plan(c, in.Event)
	result := &DispatchResult{Transition: t}

	switch t.Effect {
	case model.EffectNone:
		result.Comment = &c
		return result, nil

	case model.EffectSetState:
		if t.Next == model.CommentStateDraft {
			if err := l.ensureNoDraft(c.LocationKey(), c.ID); err != nil {
				return nil, err
			}
		}

		u := model.CommentUpdate{State: model.Ptr(t.Next)}
		if t.SetBody {
			u.Body = model.Ptr(in.Body)
		}
		if t.Next == model.CommentStatePublished {
			u.WasPublished = model.Ptr(true)
		}
		if err := l.store.Update(ctx, id, u, t.Remote); err != nil {
			return nil, err
		}

		updated, _ := l.store.Read(id)
		result.Comment = &updated

	case model.EffectDelete:
		if err := l.store.Delete(ctx, id, t.Remote); err != nil {
			return nil, err
		}
		result.Deleted = true

	case model.EffectReply:
		if err := l.ensureNoDraft(c.LocationKey(), ""); err != nil {
			return nil, err
		}
		reply, err := l.store.Create(ctx, c.Anchor(), model.CommentStateDraft)
		if err != nil {
			return nil, err
		}
		if reply == nil {
			return nil, model.ErrNoAuthor
		}
		l.store.Save(*reply)
		result.Comment = &c
		result.Reply = reply

	case model.EffectResolve:
		if l.hooks != nil {
			if err := l.hooks.ResolveThread(ctx, l.store.Key(), c.ServerID); err != nil {
				return nil, asRemoteError("resolve", err)
			}
		}
		result.Comment = &c

	case model.EffectReact:
		if in.Reaction == "" {
			return nil, model.NewValidationError("reaction", "reaction token is required")
		}
		if l.hooks != nil {
			if err := l.hooks.AddReaction(ctx, l.store.Key(), c.ServerID, in.Reaction); err != nil {
				return nil, asRemoteError("react", err)
			}
		}
		result.Comment = &c
	}

	l.logger.Debug("comment event applied",
		"session", l.store.Key().String(),
		"comment", id,
		"event", string(in.Event),
		"from", string(c.State),
		"effect", t.Effect.String(),
	)

	return result, nil
}

// ensureNoDraft fails when the thread at key already holds a draft other than
// the comment identified by except.
func (l *Lifecycle) ensureNoDraft(key, except string) error {
	for _, c := range l.store.List(model.CommentStateDraft) {
		if c.ID != except && c.LocationKey() == key {
			return fmt.Errorf("thread %s (draft %s): %w", key, c.ID, model.ErrDraftExists)
		}
	}
	return nil
}
