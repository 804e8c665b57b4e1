package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewsync/internal/application"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

func TestSessionRegistry_Get(t *testing.T) {
	reg := application.NewSessionRegistry(newMockRemote(), nil, discardLogger())

	a, err := reg.Get(testKey)
	require.NoError(t, err)
	b, err := reg.Get(testKey)
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := reg.Get(model.SessionKey{Owner: "octo", Repo: "widgets", Number: 8})
	require.NoError(t, err)
	assert.NotSame(t, a, other)

	_, err = reg.Get(model.SessionKey{Owner: "octo"})
	assert.ErrorIs(t, err, model.ErrInvalidSessionKey)
}

func TestSessionRegistry_ListAndRemove(t *testing.T) {
	reg := application.NewSessionRegistry(newMockRemote(), nil, discardLogger())

	second := model.SessionKey{Owner: "octo", Repo: "widgets", Number: 70}
	_, err := reg.Get(second)
	require.NoError(t, err)
	_, err = reg.Get(testKey)
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "octo/widgets#7", list[0].Key().String())
	assert.Equal(t, "octo/widgets#70", list[1].Key().String())

	_, ok := reg.Lookup(testKey)
	assert.True(t, ok)

	reg.Remove(testKey)
	_, ok = reg.Lookup(testKey)
	assert.False(t, ok)
	assert.Len(t, reg.List(), 1)
}

func TestSessionRegistry_SessionsAreIsolated(t *testing.T) {
	remote := newMockRemote()
	reg := application.NewSessionRegistry(remote, nil, discardLogger())
	ctx := context.Background()

	a, err := reg.Get(testKey)
	require.NoError(t, err)
	b, err := reg.Get(model.SessionKey{Owner: "octo", Repo: "gadgets", Number: 1})
	require.NoError(t, err)

	_, err = a.Add(ctx, testAnchor)
	require.NoError(t, err)

	assert.Len(t, a.Comments(), 1)
	assert.Empty(t, b.Comments())
}
