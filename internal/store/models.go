// models.go -- Shared domain types for the store package.
// Used by both Postgres (durable store) and Redis (cache + rate limit layer).
package store

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrNotFound is returned when a row lookup matches nothing.
// Wraps pgx.ErrNoRows so handlers never import pgx just to check for absence.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by CreateUser and RegisterUser when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrCacheMiss is returned by Get when the key is not cached.
// Callers use errors.Is to distinguish a true miss from a Redis infrastructure failure.
var ErrCacheMiss = errors.New("cache miss")

// ErrCacheDisabled is returned by CheckHealth on caches that have no remote backend.
// Callers use errors.Is to distinguish "not configured" from a real infrastructure failure.
var ErrCacheDisabled = errors.New("cache disabled")

// User represents a row in the users table.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Token represents a row in the tokens table.
// ExpiresAt is nil for tokens that never expire.
type Token struct {
	ID        uuid.UUID
	UserID    int64
	TokenHash []byte
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Todo represents a row in the todos table.
// JSON tags describe the cached shape, which keeps UserID so ownership
// can be checked on a cache hit.
type Todo struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TodoPatch carries the fields of a partial update. Nil pointer = leave column as is.
// ClearDescription sets description to NULL; it wins over Description.
type TodoPatch struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Completed        *bool
}

// Empty reports whether the patch changes nothing.
func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && !p.ClearDescription && p.Completed == nil
}

// RateLimit defines a fixed-window policy.
// Max requests are allowed per Window; the window is aligned to the clock.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// RateLimitResult is the outcome of a single Check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns whole seconds until the window resets, never below 1.
func (r RateLimitResult) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		return 1
	}
	return secs
}

// AuditEntry represents a row in the audit_logs table.
// Changes holds only the dirty fields as a raw JSON blob: {"field":{"old":..,"new":..}}.
// TodoID is kept after the todo is deleted so history survives.
type AuditEntry struct {
	UserID    int64
	TodoID    int64
	Action    string
	Changes   []byte
	IPAddress *string
}

// Audit actions.
const (
	AuditTodoCreated = "todo.created"
	AuditTodoUpdated = "todo.updated"
	AuditTodoDeleted = "todo.deleted"
)
