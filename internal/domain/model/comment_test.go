package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

func sampleComment() model.Comment {
	return model.Comment{
		ID:        "c1",
		Author:    model.Author{Username: "alice"},
		CreatedAt: time.UnixMilli(1700000000000),
		UpdatedAt: time.UnixMilli(1700000000000),
		Body:      "first",
		Reactions: map[string]int{"+1": 1},
		Path:      "main.go",
		Line:      12,
		Side:      model.SideRight,
		State:     model.CommentStateDraft,
	}
}

func TestCommentWith_LeavesReceiverUntouched(t *testing.T) {
	orig := sampleComment()

	next := orig.With(model.CommentUpdate{
		Body:  model.Ptr("second"),
		State: model.Ptr(model.CommentStatePending),
	})

	assert.Equal(t, "first", orig.Body)
	assert.Equal(t, model.CommentStateDraft, orig.State)
	assert.Equal(t, "second", next.Body)
	assert.Equal(t, model.CommentStatePending, next.State)
	assert.Equal(t, orig.ID, next.ID)
}

func TestCommentWith_ClonesReactions(t *testing.T) {
	orig := sampleComment()

	next := orig.With(model.CommentUpdate{})
	next.Reactions["heart"] = 2

	assert.NotContains(t, orig.Reactions, "heart")

	replaced := orig.With(model.CommentUpdate{Reactions: map[string]int{"eyes": 3}})
	assert.Equal(t, map[string]int{"eyes": 3}, replaced.Reactions)
	assert.Equal(t, map[string]int{"+1": 1}, orig.Reactions)
}

func TestLocationKey(t *testing.T) {
	assert.Equal(t, "src/a.go:7:left", model.LocationKey("src/a.go", 7, model.SideLeft))
	assert.Equal(t, "src/a.go:7:right", model.Anchor{Path: "src/a.go", Line: 7, Side: model.SideRight}.Key())

	c := sampleComment()
	before := c.LocationKey()
	c = c.With(model.CommentUpdate{Body: model.Ptr("edited"), State: model.Ptr(model.CommentStatePublished)})
	assert.Equal(t, before, c.LocationKey(), "location key depends only on the anchor")
}

func TestIdentityKey(t *testing.T) {
	t.Run("stable across body and state edits", func(t *testing.T) {
		c := sampleComment()
		before := model.IdentityKey(c)

		edited := c.With(model.CommentUpdate{
			Body:      model.Ptr("a different body"),
			State:     model.Ptr(model.CommentStatePublished),
			UpdatedAt: model.Ptr(time.Now()),
		})
		assert.Equal(t, before, model.IdentityKey(edited))
	})

	t.Run("stable across reaction updates", func(t *testing.T) {
		c := sampleComment()
		reacted := c.With(model.CommentUpdate{Reactions: map[string]int{"+1": 2, "rocket": 1}})
		assert.Equal(t, model.IdentityKey(c), model.IdentityKey(reacted))
	})

	t.Run("changes when the line changes", func(t *testing.T) {
		c := sampleComment()
		moved := c
		moved.Line++
		assert.NotEqual(t, model.IdentityKey(c), model.IdentityKey(moved))

		// Moving back restores the key.
		moved.Line--
		assert.Equal(t, model.IdentityKey(c), model.IdentityKey(moved))
	})

	t.Run("differs when the local id differs", func(t *testing.T) {
		a := sampleComment()
		b := sampleComment()
		b.ID = "c2"
		assert.NotEqual(t, model.IdentityKey(a), model.IdentityKey(b))
	})

	t.Run("renders base-36 without a sign", func(t *testing.T) {
		key := model.IdentityKey(sampleComment())
		require.NotEmpty(t, key)
		assert.Regexp(t, `^[0-9a-z]+$`, key)
	})
}

func TestAnchorValidate(t *testing.T) {
	tests := []struct {
		name    string
		anchor  model.Anchor
		wantErr bool
	}{
		{"valid", model.Anchor{Path: "a.go", Line: 1, Side: model.SideLeft}, false},
		{"missing path", model.Anchor{Line: 1, Side: model.SideLeft}, true},
		{"zero line", model.Anchor{Path: "a.go", Side: model.SideLeft}, true},
		{"bad side", model.Anchor{Path: "a.go", Line: 1, Side: "middle"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.anchor.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRemoteCommentID(t *testing.T) {
	assert.Equal(t, "remote-42", model.RemoteCommentID(42))
	assert.Equal(t, "#comment-abc", model.LocalCommentURL("abc"))
}

func TestComment_IsRemote(t *testing.T) {
	c := sampleComment()
	assert.False(t, c.IsRemote())
	c.ServerID = 9
	assert.True(t, c.IsRemote())
}
