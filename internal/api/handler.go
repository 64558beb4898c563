// handler.go -- Dependencies shared by every HTTP handler and middleware.
package api

import (
	"context"
	"time"

	"github.com/MGallo-Code/ticklist/internal/policy"
	"github.com/MGallo-Code/ticklist/internal/query"
	"github.com/MGallo-Code/ticklist/internal/store"
	"github.com/gofrs/uuid/v5"
)

// Store defines database operations needed by the handlers.
// Satisfied by *store.PostgresStore. Defined here, at the consumer.
type Store interface {
	// RegisterUser inserts a user and its first token atomically.
	// Returns store.ErrDuplicateEmail if email is taken.
	RegisterUser(ctx context.Context, name, email, passwordHash string, tokenID uuid.UUID, tokenHash []byte, expiresAt *time.Time) (*store.User, error)

	// GetUserByEmail fetches user by email for login verification.
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)

	// ReplaceUserTokens revokes every token for userID and inserts the new one atomically.
	ReplaceUserTokens(ctx context.Context, id uuid.UUID, userID int64, tokenHash []byte, expiresAt *time.Time) error

	// GetUserByTokenHash resolves a bearer token. Returns store.ErrNotFound if unknown or expired.
	GetUserByTokenHash(ctx context.Context, tokenHash []byte) (*store.User, error)

	// DeleteToken revokes a single token.
	DeleteToken(ctx context.Context, tokenHash []byte) error

	CreateTodo(ctx context.Context, userID int64, title string, description *string, completed bool) (*store.Todo, error)
	GetTodo(ctx context.Context, id int64) (*store.Todo, error)
	ListTodos(ctx context.Context, p query.Plan) ([]store.Todo, int, error)
	UpdateTodo(ctx context.Context, id, ownerID int64, patch store.TodoPatch) (*store.Todo, error)
	DeleteTodo(ctx context.Context, id, ownerID int64) error

	// WriteAuditLog records a todo change. Failures are logged, never surfaced.
	WriteAuditLog(ctx context.Context, entry store.AuditEntry) error

	CheckHealth(ctx context.Context) error
}

// Cache memoizes serialized responses.
// Satisfied by *store.RedisCache and *store.MemoryCache.
type Cache interface {
	// Get returns store.ErrCacheMiss when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// SetTracked stores val and records key in group for DeleteGroup.
	SetTracked(ctx context.Context, group, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteGroup(ctx context.Context, group string) error

	// CheckHealth returns store.ErrCacheDisabled for in-process caches.
	CheckHealth(ctx context.Context) error
}

// RateLimiter counts one request against key and reports the window state.
// Satisfied by *store.RedisRateLimiter and *store.MemoryRateLimiter.
type RateLimiter interface {
	Check(ctx context.Context, key string, policy store.RateLimit) (store.RateLimitResult, error)
}

// Options tunes handler behaviour. Zero fields take the defaults below,
// except TokenTTL where zero means tokens never expire.
type Options struct {
	ShowTTL    time.Duration // default 10m
	ListTTL    time.Duration // default 5m
	TokenTTL   time.Duration
	MaxPerPage int             // default query.DefaultMaxPerPage
	APIPolicy  store.RateLimit // per user; default 60/min
	AuthPolicy store.RateLimit // per IP on register/login; default 10/min
}

func (o Options) withDefaults() Options {
	if o.ShowTTL <= 0 {
		o.ShowTTL = 10 * time.Minute
	}
	if o.ListTTL <= 0 {
		o.ListTTL = 5 * time.Minute
	}
	if o.MaxPerPage <= 0 {
		o.MaxPerPage = query.DefaultMaxPerPage
	}
	if o.APIPolicy.Max <= 0 || o.APIPolicy.Window <= 0 {
		o.APIPolicy = store.RateLimit{Max: 60, Window: time.Minute}
	}
	if o.AuthPolicy.Max <= 0 || o.AuthPolicy.Window <= 0 {
		o.AuthPolicy = store.RateLimit{Max: 10, Window: time.Minute}
	}
	return o
}

// Handler holds dependencies for all HTTP handlers and middleware.
type Handler struct {
	Store   Store
	Cache   Cache
	Limiter RateLimiter
	Guard   policy.Guard
	Opts    Options

	// Now overrides the clock for retry_after math; nil uses time.Now.
	Now func() time.Time
}

func (h *Handler) opts() Options {
	return h.Opts.withDefaults()
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
