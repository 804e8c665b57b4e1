package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned by a CredentialStore that was created
// without an encryption key. Credentials are never stored in plaintext.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set REVIEWSYNC_SECRET_KEY")

// CredentialStore defines the driven port for persisted secrets such as the
// GitHub token set at runtime.
type CredentialStore interface {
	// Get returns ("", nil) when no credential exists.
	Get(ctx context.Context, service, key string) (string, error)
	Set(ctx context.Context, service, key, value string) error
	Delete(ctx context.Context, service, key string) error
}
