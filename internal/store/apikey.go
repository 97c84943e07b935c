package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// APIKey is a stored ingest credential. Only the digest of the secret is kept.
type APIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Prefix    string    `json:"prefix"`
	Digest    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	RevokedAt time.Time `json:"revoked_at,omitzero"`
}

// Revoked reports whether the key has been revoked.
func (k APIKey) Revoked() bool {
	return !k.RevokedAt.IsZero()
}

// WriteAPIKey stores a new key. Digests are unique.
func (s *Store) WriteAPIKey(ctx context.Context, k APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, name, prefix, digest, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, NULL)
	`, k.ID, k.Name, k.Prefix, k.Digest, toMillis(k.CreatedAt))
	if err != nil {
		return fmt.Errorf("write api key: %w", err)
	}
	return nil
}

// APIKeyByDigest looks a key up by the digest of its secret.
// Returns ErrNotFound if no key matches. Revoked keys are returned as-is.
func (s *Store) APIKeyByDigest(ctx context.Context, digest string) (APIKey, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, prefix, digest, created_at, revoked_at
		FROM api_keys WHERE digest = ?
	`, digest)
	k, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return APIKey{}, fmt.Errorf("api key: %w", ErrNotFound)
	}
	if err != nil {
		return APIKey{}, fmt.Errorf("api key by digest: %w", err)
	}
	return k, nil
}

// ListAPIKeys returns all keys ordered by creation time, then id.
func (s *Store) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, prefix, digest, created_at, revoked_at
		FROM api_keys
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	keys := []APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("list api keys: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list api keys: iterate: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks a key revoked at the given time. Revoking an already
// revoked key keeps the original time. Returns ErrNotFound for unknown ids.
func (s *Store) RevokeAPIKey(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL
	`, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("api key %q: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row rowScanner) (APIKey, error) {
	var k APIKey
	var created int64
	var revoked sql.NullInt64
	if err := row.Scan(&k.ID, &k.Name, &k.Prefix, &k.Digest, &created, &revoked); err != nil {
		return APIKey{}, err
	}
	k.CreatedAt = fromMillis(created)
	if revoked.Valid {
		k.RevokedAt = fromMillis(revoked.Int64)
	}
	return k, nil
}
