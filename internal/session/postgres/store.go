// Package postgres persists the client session in a single-row-per-profile table.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/gymbooking/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS client_sessions (
    profile     TEXT PRIMARY KEY,
    auth_token  TEXT NOT NULL,
    user_id     TEXT NOT NULL DEFAULT '',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store implements session.Store on Postgres.
type Store struct {
	pool    *pgxpool.Pool
	profile string
}

// NewStore constructs a Store. The store owns pool and closes it on Close.
func NewStore(pool *pgxpool.Pool, profile string) *Store {
	return &Store{pool: pool, profile: profile}
}

// Open connects to url and ensures the schema exists.
func Open(ctx context.Context, url, profile string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	store := NewStore(pool, profile)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the sessions table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Load implements session.Store. No row is an empty session.
func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	const query = `SELECT auth_token, user_id FROM client_sessions WHERE profile=$1`

	var sess domain.Session
	if err := s.pool.QueryRow(ctx, query, s.profile).Scan(&sess.AuthToken, &sess.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, nil
		}
		return domain.Session{}, err
	}
	return sess, nil
}

// Save implements session.Store.
func (s *Store) Save(ctx context.Context, sess domain.Session) error {
	const stmt = `INSERT INTO client_sessions (profile, auth_token, user_id, updated_at)
        VALUES ($1,$2,$3,NOW())
        ON CONFLICT (profile) DO UPDATE SET auth_token=EXCLUDED.auth_token, user_id=EXCLUDED.user_id, updated_at=NOW()`

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, stmt, s.profile, sess.AuthToken, sess.UserID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Clear implements session.Store.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM client_sessions WHERE profile=$1`, s.profile)
	return err
}

// Close implements session.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
