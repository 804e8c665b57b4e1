package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewsync/internal/application"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// startSync runs a SyncService in the background and stops it when the test
// ends.
func startSync(t *testing.T, svc *application.SyncService) context.Context {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ctx
}

func TestSyncService_InitialSyncLoadsEverySession(t *testing.T) {
	remote := newMockRemote()
	remote.comments = []model.Comment{publishedComment(1, testAnchor, "x")}
	reg := application.NewSessionRegistry(remote, nil, discardLogger())

	keys := []model.SessionKey{
		testKey,
		{Owner: "octo", Repo: "widgets", Number: 8},
		{Owner: "octo", Repo: "gadgets", Number: 1},
	}
	for _, k := range keys {
		_, err := reg.Get(k)
		require.NoError(t, err)
	}

	svc := application.NewSyncService(reg, time.Hour, 2)
	ctx := startSync(t, svc)

	// A refresh is only served once the initial sync has finished.
	require.NoError(t, svc.RefreshSession(ctx, testKey))

	for _, k := range keys {
		s, ok := reg.Lookup(k)
		require.True(t, ok)
		assert.Len(t, s.Comments(), 1, k.String())

		sch, ok := svc.Schedule(k)
		require.True(t, ok, k.String())
		assert.True(t, sch.NextSyncAt.After(sch.LastSynced))
	}
	assert.Equal(t, len(keys)+1, remote.ListCalls())
}

func TestSyncService_RefreshCreatesSession(t *testing.T) {
	remote := newMockRemote()
	reg := application.NewSessionRegistry(remote, nil, discardLogger())
	svc := application.NewSyncService(reg, time.Hour, 1)
	ctx := startSync(t, svc)

	require.NoError(t, svc.RefreshSession(ctx, testKey))

	_, ok := reg.Lookup(testKey)
	assert.True(t, ok)
	assert.Equal(t, 1, remote.ListCalls())
}

func TestSyncService_RefreshReportsErrors(t *testing.T) {
	remote := newMockRemote()
	remote.listFn = func(context.Context, model.SessionKey) ([]model.Comment, error) {
		return nil, errRemote
	}
	reg := application.NewSessionRegistry(remote, nil, discardLogger())
	svc := application.NewSyncService(reg, time.Hour, 1)
	ctx := startSync(t, svc)

	err := svc.RefreshSession(ctx, testKey)
	var remoteErr *model.RemoteError
	require.ErrorAs(t, err, &remoteErr)

	err = svc.RefreshSession(ctx, model.SessionKey{})
	assert.ErrorIs(t, err, model.ErrInvalidSessionKey)
}

func TestSyncService_RefreshHonorsContext(t *testing.T) {
	reg := application.NewSessionRegistry(newMockRemote(), nil, discardLogger())
	svc := application.NewSyncService(reg, time.Hour, 1)

	// Not started: nobody receives the request.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := svc.RefreshSession(ctx, testKey)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSyncService_ResyncAllIgnoresSchedules(t *testing.T) {
	remote := newMockRemote()
	reg := application.NewSessionRegistry(remote, nil, discardLogger())
	for _, k := range []model.SessionKey{testKey, {Owner: "octo", Repo: "widgets", Number: 8}} {
		_, err := reg.Get(k)
		require.NoError(t, err)
	}

	svc := application.NewSyncService(reg, time.Hour, 2)
	ctx := startSync(t, svc)
	require.NoError(t, svc.RefreshSession(ctx, testKey))
	require.Equal(t, 3, remote.ListCalls())

	// Both sessions are scheduled far in the future; a resync loads them anyway.
	svc.ResyncAll()
	assert.Eventually(t, func() bool { return remote.ListCalls() == 5 }, time.Second, 5*time.Millisecond)
}
