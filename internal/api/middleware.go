// middleware.go

// Bearer authentication and rate limiting middleware.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strconv"

	"github.com/MGallo-Code/ticklist/internal/policy"
	"github.com/MGallo-Code/ticklist/internal/store"
)

// contextKey is unexported to prevent collisions with other packages using the same context.
type contextKey string

const userKey contextKey = "user"
const tokenHashKey contextKey = "token_hash"

// UserFromContext retrieves the authenticated user from context.
// Returns nil and false if RequireAuth hasn't run.
func UserFromContext(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(userKey).(*store.User)
	return u, ok && u != nil
}

// TokenHashFromContext retrieves the bearer token hash from context.
// Returns nil and false if RequireAuth hasn't run.
func TokenHashFromContext(ctx context.Context) ([]byte, bool) {
	hash, ok := ctx.Value(tokenHashKey).([]byte)
	return hash, ok
}

// actorFromContext returns the guard actor for the request, nil if anonymous.
func actorFromContext(ctx context.Context) *policy.Actor {
	u, ok := UserFromContext(ctx)
	if !ok {
		return nil
	}
	return &policy.Actor{ID: u.ID}
}

// RequireAuth resolves the bearer token to a user via the store.
// Injects user and token_hash into context on success; returns 401 on failure.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenHash, ok := bearerHash(r)
		if !ok {
			logWarn(r, "require auth failed", "reason", "missing_or_malformed_bearer")
			writeError(w, r, errUnauthenticated)
			return
		}

		user, err := h.Store.GetUserByTokenHash(r.Context(), tokenHash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logWarn(r, "require auth failed", "reason", "token_not_found")
				writeError(w, r, errUnauthenticated)
				return
			}
			InternalServerError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, tokenHashKey, tokenHash)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// KeyFunc derives the rate limit actor key for a request. Empty means skip limiting.
type KeyFunc func(r *http.Request) string

// ByUser keys on the authenticated user. Must run after RequireAuth.
func ByUser(r *http.Request) string {
	u, ok := UserFromContext(r.Context())
	if !ok {
		return ""
	}
	return "user:" + strconv.FormatInt(u.ID, 10)
}

// ByIP keys on the client address (as rewritten by chi's RealIP).
func ByIP(r *http.Request) string {
	if ip := clientIP(r); ip != nil {
		return "ip:" + *ip
	}
	return "ip:" + r.RemoteAddr
}

// clientIP returns the bare client IP, or nil if RemoteAddr isn't an address.
func clientIP(r *http.Request) *string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	s := addr.String()
	return &s
}

// RateLimit applies a fixed-window policy under scope, keyed by keyFn.
// Sets X-RateLimit-* headers on every response and rejects with 429 past the limit.
// Limiter failures fail open: the request proceeds and the error is logged.
func (h *Handler) RateLimit(scope string, limit store.RateLimit, keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := keyFn(r)
			if actor == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := h.Limiter.Check(r.Context(), scope+":"+actor, limit)
			if err != nil {
				logError(r, "rate limiter unavailable, allowing request", "error", err, "scope", scope)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := res.RetryAfter(h.now())
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				logInfo(r, "rate limit exceeded", "scope", scope, "key", actor)
				writeError(w, r, errRateLimited(retry))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimitAPI is RateLimit with the per-user API policy.
func (h *Handler) LimitAPI(next http.Handler) http.Handler {
	return h.RateLimit("api", h.opts().APIPolicy, ByUser)(next)
}

// LimitAuth is RateLimit with the per-IP policy for register and login.
func (h *Handler) LimitAuth(next http.Handler) http.Handler {
	return h.RateLimit("auth", h.opts().AuthPolicy, ByIP)(next)
}
