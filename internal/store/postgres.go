// Package store handles all database and cache interactions.
//
// postgres.go -- pgxpool connection setup and user/token queries.
// Creates a connection pool at startup, shared across all handlers.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable store for users, tokens, todos and audit rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool, pings it, and returns a ready-to-use store.
// Call once at startup from main.go...the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	// Ping db to make sure connection works
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// CheckHealth pings Postgres.
func (s *PostgresStore) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// notFound maps pgx.ErrNoRows onto ErrNotFound, leaves other errors alone.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const (
	insertUserSQL = `INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`
	insertTokenSQL = "INSERT INTO tokens (id, user_id, token_hash, expires_at) VALUES ($1, $2, $3, $4)"
)

// userInserter is satisfied by both *pgxpool.Pool and pgx.Tx.
type userInserter interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertUser(ctx context.Context, q userInserter, name, email, passwordHash string) (*User, error) {
	u := User{Name: name, Email: email, PasswordHash: passwordHash}
	err := q.QueryRow(ctx, insertUserSQL, name, email, passwordHash).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a user and returns the stored row.
// The caller hashes the password BEFORE calling this.
// Returns ErrDuplicateEmail on a unique violation of users.email.
func (s *PostgresStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*User, error) {
	return insertUser(ctx, s.pool, name, email, passwordHash)
}

// RegisterUser inserts a user and its first token in one transaction.
// Nothing is stored if either insert fails. Returns ErrDuplicateEmail like CreateUser.
func (s *PostgresStore) RegisterUser(ctx context.Context, name, email, passwordHash string, tokenID uuid.UUID, tokenHash []byte, expiresAt *time.Time) (*User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning register transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := insertUser(ctx, tx, name, email, passwordHash)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, insertTokenSQL, tokenID, u.ID, tokenHash, expiresAt); err != nil {
		return nil, fmt.Errorf("inserting token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing register transaction: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches a user for login verification.
// Returns ErrNotFound if no user has that email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at
		 FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetUserByID fetches a user by primary key. Returns ErrNotFound if absent.
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// CreateToken inserts a token without touching the user's other tokens (used at registration).
func (s *PostgresStore) CreateToken(ctx context.Context, id uuid.UUID, userID int64, tokenHash []byte, expiresAt *time.Time) error {
	_, err := s.pool.Exec(ctx, insertTokenSQL, id, userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}
	return nil
}

// ReplaceUserTokens deletes every token of the user and inserts the new one in one transaction.
// Two concurrent logins serialize on the delete; the later commit wins.
func (s *PostgresStore) ReplaceUserTokens(ctx context.Context, id uuid.UUID, userID int64, tokenHash []byte, expiresAt *time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning token transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM tokens WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("deleting previous tokens: %w", err)
	}
	if _, err := tx.Exec(ctx, insertTokenSQL, id, userID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing token transaction: %w", err)
	}
	return nil
}

// GetUserByTokenHash resolves a bearer token to its (non-expired) owner.
// Returns ErrNotFound if the token is unknown, revoked or expired.
func (s *PostgresStore) GetUserByTokenHash(ctx context.Context, tokenHash []byte) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.name, u.email, u.password_hash, u.created_at, u.updated_at
		 FROM tokens t JOIN users u ON u.id = t.user_id
		 WHERE t.token_hash = $1 AND (t.expires_at IS NULL OR t.expires_at > NOW())`,
		tokenHash,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// DeleteToken revokes a single token. Deleting an unknown token is not an error.
func (s *PostgresStore) DeleteToken(ctx context.Context, tokenHash []byte) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM tokens WHERE token_hash = $1", tokenHash)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// CleanupExpiredTokens removes tokens whose expiry passed more than retention ago.
// Returns number of rows deleted.
func (s *PostgresStore) CleanupExpiredTokens(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM tokens WHERE expires_at IS NOT NULL AND expires_at < $1",
		time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("cleaning up tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// WriteAuditLog inserts one audit row. Callers treat failures as non-fatal.
func (s *PostgresStore) WriteAuditLog(ctx context.Context, entry AuditEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_logs (user_id, todo_id, action, changes, ip_address)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.UserID, entry.TodoID, entry.Action, entry.Changes, entry.IPAddress)
	if err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}
