package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

var _ driven.CredentialStore = (*CredentialRepo)(nil)

var errSealedTooShort = errors.New("sealed credential shorter than its nonce")

// CredentialRepo stores credentials sealed with AES-256-GCM. Each row holds
// base64(nonce || ciphertext || tag). Without a key the repo is disabled and
// every read or write fails with driven.ErrEncryptionKeyNotSet.
type CredentialRepo struct {
	db   *DB
	aead cipher.AEAD
}

// NewCredentialRepo builds the sealing cipher from key, which must be 32
// bytes. A nil key yields a disabled repo.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	repo := &CredentialRepo{db: db}
	if key == nil {
		return repo, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("credential key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("credential cipher: %w", err)
	}
	repo.aead, err = cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credential cipher: %w", err)
	}
	return repo, nil
}

// Enabled reports whether the repo can store credentials.
func (r *CredentialRepo) Enabled() bool {
	return r.aead != nil
}

func (r *CredentialRepo) Set(ctx context.Context, service, key, value string) error {
	sealed, err := r.seal(value)
	if err != nil {
		return err
	}

	_, err = r.db.Writer.ExecContext(ctx, `
		INSERT INTO credentials (service, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (service, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		service, key, sealed)
	if err != nil {
		return fmt.Errorf("set credential %s/%s: %w", service, key, err)
	}
	return nil
}

// Get returns the stored value, or "" when none exists.
func (r *CredentialRepo) Get(ctx context.Context, service, key string) (string, error) {
	if !r.Enabled() {
		return "", driven.ErrEncryptionKeyNotSet
	}

	var sealed string
	err := r.db.Reader.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE service = ? AND key = ?`, service, key).Scan(&sealed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("get credential %s/%s: %w", service, key, err)
	}

	value, err := r.open(sealed)
	if err != nil {
		return "", fmt.Errorf("unseal credential %s/%s: %w", service, key, err)
	}
	return value, nil
}

// Delete removes a credential. It works without a key so stale rows can
// always be cleared.
func (r *CredentialRepo) Delete(ctx context.Context, service, key string) error {
	_, err := r.db.Writer.ExecContext(ctx,
		`DELETE FROM credentials WHERE service = ? AND key = ?`, service, key)
	if err != nil {
		return fmt.Errorf("delete credential %s/%s: %w", service, key, err)
	}
	return nil
}

func (r *CredentialRepo) seal(value string) (string, error) {
	if !r.Enabled() {
		return "", driven.ErrEncryptionKeyNotSet
	}

	nonce := make([]byte, r.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("credential nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(r.aead.Seal(nonce, nonce, []byte(value), nil)), nil
}

func (r *CredentialRepo) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	n := r.aead.NonceSize()
	if len(raw) < n {
		return "", errSealedTooShort
	}
	value, err := r.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", err
	}
	return string(value), nil
}
