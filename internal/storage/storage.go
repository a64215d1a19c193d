// Package storage persists uploaded and generated images. Blobs live in
// Postgres rather than an external object store, which keeps the single
// database the only stateful dependency and lets blob writes share the
// pool the rest of the service uses.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Blob is one stored image addressed by its key.
type Blob struct {
	Key         string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) (*Blob, error)
	Delete(ctx context.Context, key string) error
}

type postgresStore struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	query := `
		INSERT INTO blobs (key, content_type, data, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET content_type = $2, data = $3`

	_, err := s.pool.Exec(ctx, query, key, contentType, data)
	if err != nil {
		return fmt.Errorf("storing blob %s: %w", key, err)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, key string) (*Blob, error) {
	query := `SELECT key, content_type, data, created_at FROM blobs WHERE key = $1`

	blob := &Blob{}
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&blob.Key, &blob.ContentType, &blob.Data, &blob.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying blob %s: %w", key, err)
	}
	return blob, nil
}

func (s *postgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM blobs WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("deleting blob %s: %w", key, err)
	}
	return nil
}
