// Package auth issues and verifies API keys for the ingest endpoints.
//
// Keys are random secrets shown once at creation. The store keeps only a
// domain-separated SHA-256 digest and a short prefix for humans to
// recognise the key by.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/tally/internal/record"
	"github.com/roach88/tally/internal/store"
)

// KeyPrefix starts every plaintext key.
const KeyPrefix = "tly_"

// PrefixLen is how much of a plaintext key is stored for display.
const PrefixLen = 8

const secretBytes = 32

// ErrUnauthorized is returned for missing, unknown, malformed or revoked keys.
var ErrUnauthorized = errors.New("unauthorized")

// APIKey is the stored form of a key.
type APIKey = store.APIKey

// KeyStore is the persistence auth needs.
type KeyStore interface {
	WriteAPIKey(ctx context.Context, k APIKey) error
	APIKeyByDigest(ctx context.Context, digest string) (APIKey, error)
}

// NewKey generates a key. The plaintext is returned once and never stored.
func NewKey(name string, now time.Time) (string, APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", APIKey{}, errors.New("api key name is required")
	}

	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", APIKey{}, fmt.Errorf("generate key: %w", err)
	}
	plain := KeyPrefix + base64.RawURLEncoding.EncodeToString(secret)

	id, err := uuid.NewV7()
	if err != nil {
		return "", APIKey{}, fmt.Errorf("generate key id: %w", err)
	}

	return plain, APIKey{
		ID:        id.String(),
		Name:      name,
		Prefix:    plain[:PrefixLen],
		Digest:    DigestKey(plain),
		CreatedAt: now.UTC(),
	}, nil
}

// Issue generates a key and stores it.
func Issue(ctx context.Context, keys KeyStore, name string, now time.Time) (string, APIKey, error) {
	plain, k, err := NewKey(name, now)
	if err != nil {
		return "", APIKey{}, err
	}
	if err := keys.WriteAPIKey(ctx, k); err != nil {
		return "", APIKey{}, err
	}
	return plain, k, nil
}

// DigestKey returns the stored digest of a plaintext key.
func DigestKey(plain string) string {
	return record.Digest(record.DomainAPIKey, []byte(plain))
}

// Authenticator checks bearer tokens against stored keys.
type Authenticator struct {
	keys KeyStore
}

// NewAuthenticator creates an Authenticator backed by keys.
func NewAuthenticator(keys KeyStore) *Authenticator {
	return &Authenticator{keys: keys}
}

// Verify resolves a bearer token (with or without the "Bearer " scheme) to
// its key. Every rejection is ErrUnauthorized; store failures are returned
// wrapped.
func (a *Authenticator) Verify(ctx context.Context, bearer string) (APIKey, error) {
	plain := strings.TrimSpace(bearer)
	if scheme, rest, ok := strings.Cut(plain, " "); ok && strings.EqualFold(scheme, "Bearer") {
		plain = strings.TrimSpace(rest)
	}
	if !strings.HasPrefix(plain, KeyPrefix) || len(plain) <= len(KeyPrefix) {
		return APIKey{}, ErrUnauthorized
	}

	digest := DigestKey(plain)
	k, err := a.keys.APIKeyByDigest(ctx, digest)
	if errors.Is(err, store.ErrNotFound) {
		return APIKey{}, ErrUnauthorized
	}
	if err != nil {
		return APIKey{}, fmt.Errorf("verify api key: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(k.Digest), []byte(digest)) != 1 {
		return APIKey{}, ErrUnauthorized
	}
	if k.Revoked() {
		return APIKey{}, ErrUnauthorized
	}
	return k, nil
}
