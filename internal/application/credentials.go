package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// Credential keys used with the CredentialStore.
const (
	CredentialService     = "github"
	CredentialKeyToken    = "token"
	CredentialKeyUsername = "username"
)

// BackendFactory builds a remote backend for token and returns the username
// the token authenticates as. It fails when the token is rejected.
type BackendFactory func(ctx context.Context, token string) (RemoteBackend, string, error)

// CredentialManager switches the remote backend when the user supplies a new
// token, persisting it when a credential store is available.
type CredentialManager struct {
	provider *ReviewAPIProvider
	creds    driven.CredentialStore
	factory  BackendFactory
	logger   *slog.Logger
}

// NewCredentialManager creates a CredentialManager. creds may be nil, in which
// case tokens only live for the lifetime of the process.
func NewCredentialManager(provider *ReviewAPIProvider, creds driven.CredentialStore, factory BackendFactory, logger *slog.Logger) *CredentialManager {
	return &CredentialManager{
		provider: provider,
		creds:    creds,
		factory:  factory,
		logger:   logger,
	}
}

// ApplyToken validates token, stores it and swaps the provider's backend.
// It returns the authenticated username and whether the token was persisted.
func (m *CredentialManager) ApplyToken(ctx context.Context, token string) (string, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false, model.NewValidationError("token", "token is required")
	}

	backend, username, err := m.factory(ctx, token)
	if err != nil {
		return "", false, &model.RemoteError{Op: "validate token", Err: err}
	}

	persisted := m.persist(ctx, token, username)

	m.provider.Replace(backend, "github:"+username)
	m.logger.Info("github credentials updated", "username", username, "persisted", persisted)
	return username, persisted, nil
}

// ClearToken drops the current backend and any stored credentials.
func (m *CredentialManager) ClearToken(ctx context.Context) error {
	if m.creds != nil {
		for _, key := range []string{CredentialKeyToken, CredentialKeyUsername} {
			if err := m.creds.Delete(ctx, CredentialService, key); err != nil {
				return fmt.Errorf("clearing stored credentials: %w", err)
			}
		}
	}

	m.provider.Replace(nil, "")
	m.logger.Info("github credentials cleared")
	return nil
}

func (m *CredentialManager) persist(ctx context.Context, token, username string) bool {
	if m.creds == nil {
		return false
	}

	err := m.creds.Set(ctx, CredentialService, CredentialKeyToken, token)
	if err == nil {
		err = m.creds.Set(ctx, CredentialService, CredentialKeyUsername, username)
	}
	if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		m.logger.Warn("credential encryption key not set, token kept in memory only")
		return false
	}
	if err != nil {
		m.logger.Error("failed to store github credentials", "error", err)
		return false
	}
	return true
}

// StoredCredentials returns the token and username persisted by a previous
// ApplyToken. Missing values come back empty.
func StoredCredentials(ctx context.Context, creds driven.CredentialStore) (token, username string, err error) {
	if creds == nil {
		return "", "", nil
	}

	token, err = creds.Get(ctx, CredentialService, CredentialKeyToken)
	if err != nil {
		return "", "", fmt.Errorf("reading stored token: %w", err)
	}
	username, err = creds.Get(ctx, CredentialService, CredentialKeyUsername)
	if err != nil {
		return "", "", fmt.Errorf("reading stored username: %w", err)
	}
	return token, username, nil
}
