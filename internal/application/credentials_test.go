package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewsync/internal/application"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// mockCredentials implements driven.CredentialStore in memory.
type mockCredentials struct {
	values map[string]string
	setErr error
}

func newMockCredentials() *mockCredentials {
	return &mockCredentials{values: make(map[string]string)}
}

func (m *mockCredentials) Get(_ context.Context, service, key string) (string, error) {
	return m.values[service+"/"+key], nil
}

func (m *mockCredentials) Set(_ context.Context, service, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[service+"/"+key] = value
	return nil
}

func (m *mockCredentials) Delete(_ context.Context, service, key string) error {
	delete(m.values, service+"/"+key)
	return nil
}

func factoryReturning(backend application.RemoteBackend, username string, err error) application.BackendFactory {
	return func(_ context.Context, _ string) (application.RemoteBackend, string, error) {
		if err != nil {
			return nil, "", err
		}
		return backend, username, nil
	}
}

func TestCredentialManager_ApplyToken(t *testing.T) {
	provider := application.NewReviewAPIProvider(nil, "")
	replaced := 0
	provider.OnReplace(func() { replaced++ })
	creds := newMockCredentials()
	remote := newMockRemote()

	mgr := application.NewCredentialManager(provider, creds, factoryReturning(remote, "alice", nil), discardLogger())

	username, persisted, err := mgr.ApplyToken(context.Background(), "  ghp_new  ")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
	assert.True(t, persisted)
	assert.Equal(t, 1, replaced)
	assert.True(t, provider.HasBackend())
	assert.Equal(t, "github:alice", provider.Label())

	token, user, err := application.StoredCredentials(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, "ghp_new", token)
	assert.Equal(t, "alice", user)
}

func TestCredentialManager_ApplyToken_Empty(t *testing.T) {
	provider := application.NewReviewAPIProvider(nil, "")
	mgr := application.NewCredentialManager(provider, nil, factoryReturning(newMockRemote(), "alice", nil), discardLogger())

	_, _, err := mgr.ApplyToken(context.Background(), "   ")
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.False(t, provider.HasBackend())
}

func TestCredentialManager_ApplyToken_Rejected(t *testing.T) {
	provider := application.NewReviewAPIProvider(nil, "")
	creds := newMockCredentials()
	mgr := application.NewCredentialManager(provider, creds, factoryReturning(nil, "", errors.New("401 Bad credentials")), discardLogger())

	_, _, err := mgr.ApplyToken(context.Background(), "ghp_bad")

	var remoteErr *model.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.False(t, provider.HasBackend())
	assert.Empty(t, creds.values)
}

func TestCredentialManager_ApplyToken_NoEncryptionKey(t *testing.T) {
	provider := application.NewReviewAPIProvider(nil, "")
	creds := newMockCredentials()
	creds.setErr = driven.ErrEncryptionKeyNotSet
	mgr := application.NewCredentialManager(provider, creds, factoryReturning(newMockRemote(), "alice", nil), discardLogger())

	username, persisted, err := mgr.ApplyToken(context.Background(), "ghp_new")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
	assert.False(t, persisted)
	assert.True(t, provider.HasBackend())
}

func TestCredentialManager_ClearToken(t *testing.T) {
	provider := application.NewReviewAPIProvider(newMockRemote(), "github:alice")
	creds := newMockCredentials()
	creds.values["github/token"] = "ghp_old"
	creds.values["github/username"] = "alice"
	mgr := application.NewCredentialManager(provider, creds, nil, discardLogger())

	require.NoError(t, mgr.ClearToken(context.Background()))
	assert.False(t, provider.HasBackend())
	assert.Empty(t, creds.values)
}

func TestStoredCredentials_NilStore(t *testing.T) {
	token, username, err := application.StoredCredentials(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Empty(t, username)
}
