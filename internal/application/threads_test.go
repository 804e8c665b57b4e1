package application_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewsync/internal/application"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

func commentAt(id string, anchor model.Anchor, state model.CommentState, created time.Time) model.Comment {
	return model.Comment{
		ID:        id,
		Path:      anchor.Path,
		Line:      anchor.Line,
		Side:      anchor.Side,
		State:     state,
		CreatedAt: created,
	}
}

func TestGroupThreads(t *testing.T) {
	left := model.Anchor{Path: "a.go", Line: 3, Side: model.SideLeft}
	right := model.Anchor{Path: "a.go", Line: 3, Side: model.SideRight}

	comments := []model.Comment{
		commentAt("c3", left, model.CommentStateDraft, testEpoch.Add(3*time.Minute)),
		commentAt("c1", left, model.CommentStatePublished, testEpoch.Add(1*time.Minute)),
		commentAt("c2", right, model.CommentStatePending, testEpoch.Add(2*time.Minute)),
		commentAt("c0", left, model.CommentStatePublished, testEpoch.Add(1*time.Minute)),
	}

	threads, err := application.GroupThreads(comments)
	require.NoError(t, err)
	require.Len(t, threads, 2)

	leftThread := threads["a.go:3:left"]
	require.Len(t, leftThread, 3)
	assert.Equal(t, "c0", leftThread[0].ID, "ties are broken by id")
	assert.Equal(t, "c1", leftThread[1].ID)
	assert.Equal(t, "c3", leftThread[2].ID)

	assert.Len(t, threads["a.go:3:right"], 1)
}

func TestGroupThreads_MultipleDrafts(t *testing.T) {
	comments := []model.Comment{
		commentAt("d1", testAnchor, model.CommentStateDraft, testEpoch),
		commentAt("d2", testAnchor, model.CommentStateDraft, testEpoch.Add(time.Second)),
	}

	_, err := application.GroupThreads(comments)
	assert.ErrorIs(t, err, model.ErrMultipleDrafts)
}

func TestGroupThreads_Empty(t *testing.T) {
	threads, err := application.GroupThreads(nil)
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestSummarizeThreads(t *testing.T) {
	a := model.Anchor{Path: "a.go", Line: 1, Side: model.SideRight}
	b := model.Anchor{Path: "b.go", Line: 9, Side: model.SideLeft}

	threads, err := application.GroupThreads([]model.Comment{
		commentAt("p1", b, model.CommentStatePublished, testEpoch),
		commentAt("p2", a, model.CommentStatePublished, testEpoch),
		commentAt("q1", a, model.CommentStatePending, testEpoch.Add(time.Second)),
		commentAt("d1", a, model.CommentStateDraft, testEpoch.Add(2*time.Second)),
	})
	require.NoError(t, err)

	summaries := application.SummarizeThreads(threads)
	require.Len(t, summaries, 2)

	assert.Equal(t, "a.go:1:right", summaries[0].LocationKey)
	assert.Equal(t, a, summaries[0].Anchor)
	assert.Equal(t, 1, summaries[0].Pending)
	assert.Equal(t, 1, summaries[0].Published)
	require.NotNil(t, summaries[0].Draft)
	assert.Equal(t, "d1", summaries[0].Draft.ID)

	assert.Equal(t, "b.go:9:left", summaries[1].LocationKey)
	assert.Nil(t, summaries[1].Draft)
}
