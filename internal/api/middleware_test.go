// middleware_test.go

// unit tests for RequireAuth, RateLimit and the limiter key functions.
package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/MGallo-Code/ticklist/internal/i18n"
	"github.com/MGallo-Code/ticklist/internal/store"
)

// contextCapture records what RequireAuth put in the request context.
type contextCapture struct {
	called    bool
	user      *store.User
	tokenHash []byte
}

func capturingHandler(c *contextCapture) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.user, _ = UserFromContext(r.Context())
		c.tokenHash, _ = TokenHashFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

// --- RequireAuth ---

func TestRequireAuth(t *testing.T) {
	t.Run("valid token passes user and hash through", func(t *testing.T) {
		env := newTestEnv(t)
		u, token := env.seedUser(t, "Alice", "alice@example.com", "x")

		var c contextCapture
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		env.h.RequireAuth(capturingHandler(&c)).ServeHTTP(w, r)

		if !c.called {
			t.Fatal("next handler should be called")
		}
		if c.user == nil || c.user.ID != u.ID {
			t.Errorf("user: expected id %d, got %+v", u.ID, c.user)
		}
		want, _ := bearerHash(r)
		if string(c.tokenHash) != string(want) {
			t.Error("token hash in context does not match the presented token")
		}
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Token abc"},
		{"garbage token", "Bearer not-a-token"},
		{"unknown token", "Bearer " + EncodeToken([32]byte{1, 2, 3})},
	}
	for _, tc := range tests {
		t.Run(tc.name+" returns 401", func(t *testing.T) {
			env := newTestEnv(t)

			var c contextCapture
			r := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			env.h.RequireAuth(capturingHandler(&c)).ServeHTTP(w, r)

			if c.called {
				t.Error("next handler should not be called")
			}
			body := assertError(t, w, http.StatusUnauthorized, CodeUnauthenticated)
			if body["message"] != i18n.MsgUnauthenticated {
				t.Errorf("message: expected %q, got %v", i18n.MsgUnauthenticated, body["message"])
			}
		})
	}

	t.Run("expired token returns 401", func(t *testing.T) {
		env := newTestEnv(t)
		// Expiry is stamped from the handler clock; set it far in the past.
		env.h.Opts.TokenTTL = time.Minute
		env.h.Now = func() time.Time { return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC) }
		_, token := env.seedUser(t, "Alice", "alice@example.com", "x")

		w := env.do("GET", "/auth/user", "", token)
		assertError(t, w, http.StatusUnauthorized, CodeUnauthenticated)
	})

	t.Run("store error returns 500", func(t *testing.T) {
		env := newTestEnv(t)
		_, token := env.seedUser(t, "Alice", "alice@example.com", "x")
		env.ms.GetUserByTokenErr = errors.New("db down")

		w := env.do("GET", "/auth/user", "", token)
		assertError(t, w, http.StatusInternalServerError, CodeInternal)
	})
}

// --- RateLimit ---

func TestRateLimit(t *testing.T) {
	t.Run("sets rate limit headers", func(t *testing.T) {
		env := newTestEnv(t)
		_, token := env.seedUser(t, "Alice", "alice@example.com", "x")

		w := env.do("GET", "/todos", "", token)
		assertStatus(t, w, http.StatusOK)
		if got := w.Header().Get("X-RateLimit-Limit"); got != "60" {
			t.Errorf("X-RateLimit-Limit: expected 60, got %q", got)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != "59" {
			t.Errorf("X-RateLimit-Remaining: expected 59, got %q", got)
		}
		wantReset := strconv.FormatInt(time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC).Unix(), 10)
		if got := w.Header().Get("X-RateLimit-Reset"); got != wantReset {
			t.Errorf("X-RateLimit-Reset: expected %s, got %q", wantReset, got)
		}
	})

	t.Run("request past the limit returns 429 with retry_after", func(t *testing.T) {
		env := newTestEnv(t)
		env.h.Opts.APIPolicy = store.RateLimit{Max: 3, Window: time.Minute}
		_, token := env.seedUser(t, "Alice", "alice@example.com", "x")

		for i := 0; i < 3; i++ {
			if w := env.do("GET", "/todos", "", token); w.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
			}
		}

		w := env.do("GET", "/todos", "", token)
		body := assertError(t, w, http.StatusTooManyRequests, CodeRateLimited)
		if body["retry_after"] != float64(45) {
			t.Errorf("retry_after: expected 45, got %v", body["retry_after"])
		}
		if got := w.Header().Get("Retry-After"); got != "45" {
			t.Errorf("Retry-After: expected 45, got %q", got)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
			t.Errorf("X-RateLimit-Remaining: expected 0, got %q", got)
		}
		if body["message"] != i18n.MsgTooManyRequests {
			t.Errorf("message: expected %q, got %v", i18n.MsgTooManyRequests, body["message"])
		}
	})

	t.Run("users are limited independently", func(t *testing.T) {
		env := newTestEnv(t)
		env.h.Opts.APIPolicy = store.RateLimit{Max: 1, Window: time.Minute}
		_, alice := env.seedUser(t, "Alice", "alice@example.com", "x")
		_, bob := env.seedUser(t, "Bob", "bob@example.com", "x")

		env.do("GET", "/todos", "", alice)
		if w := env.do("GET", "/todos", "", alice); w.Code != http.StatusTooManyRequests {
			t.Errorf("alice second request: expected 429, got %d", w.Code)
		}
		if w := env.do("GET", "/todos", "", bob); w.Code != http.StatusOK {
			t.Errorf("bob first request: expected 200, got %d", w.Code)
		}
	})

	t.Run("auth endpoints are limited per IP", func(t *testing.T) {
		env := newTestEnv(t)

		for i := 0; i < 10; i++ {
			w := env.do("POST", "/auth/login", `{}`, "")
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("request %d: expected 422, got %d", i+1, w.Code)
			}
		}
		w := env.do("POST", "/auth/register", `{}`, "")
		assertError(t, w, http.StatusTooManyRequests, CodeRateLimited)

		// Same route from a different address is unaffected.
		r := httptest.NewRequest("POST", "/auth/login", nil)
		r.RemoteAddr = "198.51.100.7:5555"
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, r)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("other IP: expected 422, got %d", rec.Code)
		}
	})

	t.Run("limiter failure lets the request through", func(t *testing.T) {
		env := newTestEnv(t)
		_, token := env.seedUser(t, "Alice", "alice@example.com", "x")
		env.ml.CheckErr = errors.New("redis down")

		w := env.do("GET", "/todos", "", token)
		assertStatus(t, w, http.StatusOK)
		if got := w.Header().Get("X-RateLimit-Limit"); got != "" {
			t.Errorf("X-RateLimit-Limit: expected no header, got %q", got)
		}
	})

	t.Run("empty key skips limiting", func(t *testing.T) {
		env := newTestEnv(t)
		env.ml.CheckErr = errors.New("should not be called")

		mw := env.h.RateLimit("test", store.RateLimit{Max: 1, Window: time.Minute}, func(*http.Request) string { return "" })
		var c contextCapture
		w := httptest.NewRecorder()
		mw(capturingHandler(&c)).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if !c.called {
			t.Error("next handler should be called")
		}
		if got := w.Header().Get("X-RateLimit-Limit"); got != "" {
			t.Errorf("X-RateLimit-Limit: expected no header, got %q", got)
		}
	})
}

// --- Key functions ---

func TestByIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:1234", "ip:192.0.2.1"},
		{"[2001:db8::1]:443", "ip:2001:db8::1"},
		{"203.0.113.9", "ip:203.0.113.9"},
		{"not-an-address", "ip:not-an-address"},
	}
	for _, tc := range tests {
		t.Run(tc.remote, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remote
			if got := ByIP(r); got != tc.want {
				t.Errorf("ByIP: expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestByUser(t *testing.T) {
	t.Run("anonymous request has no key", func(t *testing.T) {
		if got := ByUser(httptest.NewRequest("GET", "/", nil)); got != "" {
			t.Errorf("expected empty key, got %q", got)
		}
	})

	t.Run("authenticated request keys on user id", func(t *testing.T) {
		env := newTestEnv(t)
		u, token := env.seedUser(t, "Alice", "alice@example.com", "x")

		var got string
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		env.h.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = ByUser(r)
		})).ServeHTTP(httptest.NewRecorder(), r)

		if want := "user:" + strconv.FormatInt(u.ID, 10); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})
}
