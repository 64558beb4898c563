// auth_handler_test.go

// unit tests for Register, Login, Logout, CurrentUser and Check.
package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MGallo-Code/ticklist/internal/i18n"
)

const validRegisterBody = `{"name":"Alice","email":"Alice@Example.com","password":"password123","password_confirmation":"password123"}`

// assertAuthResponse checks the {message, data{user, token, token_type}} shape and returns the token.
func assertAuthResponse(t *testing.T, body map[string]any, wantMsg, wantEmail string) string {
	t.Helper()
	if body["message"] != wantMsg {
		t.Errorf("message: expected %q, got %v", wantMsg, body["message"])
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("data: expected object, got %v", body["data"])
	}
	if data["token_type"] != "Bearer" {
		t.Errorf("token_type: expected Bearer, got %v", data["token_type"])
	}
	user, ok := data["user"].(map[string]any)
	if !ok {
		t.Fatalf("data.user: expected object, got %v", data["user"])
	}
	if user["email"] != wantEmail {
		t.Errorf("user.email: expected %q, got %v", wantEmail, user["email"])
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("user must not expose password_hash")
	}
	token, _ := data["token"].(string)
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != 32 {
		t.Errorf("token: expected base64url of 32 bytes, got %q", token)
	}
	return token
}

// --- Register ---

func TestRegister(t *testing.T) {
	t.Run("valid input returns 201 with user and token", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("POST", "/auth/register", validRegisterBody, "")
		assertStatus(t, w, http.StatusCreated)
		body := decodeBody(t, w)
		token := assertAuthResponse(t, body, i18n.MsgRegistered, "alice@example.com")

		u, ok := env.ms.Users["alice@example.com"]
		if !ok {
			t.Fatal("user should be stored under the lowercased email")
		}
		if !strings.HasPrefix(u.PasswordHash, "$argon2id$") {
			t.Errorf("password should be stored as argon2id hash, got %q", u.PasswordHash)
		}
		if env.ms.TokenCount(u.ID) != 1 {
			t.Errorf("expected 1 token after register, got %d", env.ms.TokenCount(u.ID))
		}

		// The issued token authenticates immediately.
		if w := env.do("GET", "/auth/user", "", token); w.Code != http.StatusOK {
			t.Errorf("token from register should authenticate, got %d", w.Code)
		}
	})

	t.Run("duplicate email returns 422 on email", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "Alice", "alice@example.com", "x")

		w := env.do("POST", "/auth/register", validRegisterBody, "")
		body := assertError(t, w, http.StatusUnprocessableEntity, CodeValidation)
		msgs := fieldMessages(t, body, "email")
		if len(msgs) != 1 || msgs[0] != i18n.MsgEmailTaken {
			t.Errorf("errors.email: expected [%q], got %v", i18n.MsgEmailTaken, msgs)
		}
	})

	t.Run("empty body reports every required field", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("POST", "/auth/register", `{}`, "")
		body := assertError(t, w, http.StatusUnprocessableEntity, CodeValidation)
		if body["message"] != i18n.MsgValidationFailed {
			t.Errorf("message: expected %q, got %v", i18n.MsgValidationFailed, body["message"])
		}
		for _, field := range []string{"name", "email", "password"} {
			if len(fieldMessages(t, body, field)) == 0 {
				t.Errorf("expected an error for %s", field)
			}
		}
	})

	t.Run("password confirmation mismatch", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("POST", "/auth/register",
			`{"name":"A","email":"a@example.com","password":"password123","password_confirmation":"password124"}`, "")
		body := assertError(t, w, http.StatusUnprocessableEntity, CodeValidation)
		msgs := fieldMessages(t, body, "password")
		if len(msgs) != 1 || msgs[0] != i18n.MsgPasswordMismatch {
			t.Errorf("errors.password: expected [%q], got %v", i18n.MsgPasswordMismatch, msgs)
		}
	})

	t.Run("malformed JSON returns 422 on body", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("POST", "/auth/register", `{"name":`, "")
		body := assertError(t, w, http.StatusUnprocessableEntity, CodeValidation)
		if len(fieldMessages(t, body, "body")) != 1 {
			t.Errorf("expected one body error, got %v", body["errors"])
		}
	})

	t.Run("validation message follows Accept-Language", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("POST", "/auth/register", `{}`, "", "Accept-Language", "ja,en;q=0.5")
		body := assertError(t, w, http.StatusUnprocessableEntity, CodeValidation)
		if body["message"] != "入力内容に誤りがあります" {
			t.Errorf("message: expected Japanese text, got %v", body["message"])
		}
		if msgs := fieldMessages(t, body, "name"); len(msgs) != 1 || msgs[0] != "名前は必須です" {
			t.Errorf("errors.name: expected Japanese text, got %v", msgs)
		}
	})

	t.Run("store error returns 500", func(t *testing.T) {
		env := newTestEnv(t)
		env.ms.CreateUserErr = errors.New("db down")

		w := env.do("POST", "/auth/register", validRegisterBody, "")
		body := assertError(t, w, http.StatusInternalServerError, CodeInternal)
		if strings.Contains(w.Body.String(), "db down") {
			t.Error("internal error details must not leak")
		}
		if body["message"] != i18n.MsgInternal {
			t.Errorf("message: expected %q, got %v", i18n.MsgInternal, body["message"])
		}
	})

	t.Run("token store error returns 500 and leaves no user", func(t *testing.T) {
		env := newTestEnv(t)
		env.ms.CreateTokenErr = errors.New("db down")

		w := env.do("POST", "/auth/register", validRegisterBody, "")
		assertError(t, w, http.StatusInternalServerError, CodeInternal)
		if len(env.ms.Users) != 0 {
			t.Errorf("expected no stored user, got %d", len(env.ms.Users))
		}

		// A retry with the same email succeeds once the store recovers.
		env.ms.CreateTokenErr = nil
		w = env.do("POST", "/auth/register", validRegisterBody, "")
		assertStatus(t, w, http.StatusCreated)
	})
}

// --- Login ---

func TestLogin(t *testing.T) {
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	t.Run("valid credentials return 200 with a new token", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "Alice", "alice@example.com", hash)

		w := env.do("POST", "/auth/login", `{"email":"alice@example.com","password":"password123"}`, "")
		assertStatus(t, w, http.StatusOK)
		assertAuthResponse(t, decodeBody(t, w), i18n.MsgLoggedIn, "alice@example.com")
	})

	t.Run("login revokes earlier tokens", func(t *testing.T) {
		env := newTestEnv(t)
		u, oldToken := env.seedUser(t, "Alice", "alice@example.com", hash)

		w := env.do("POST", "/auth/login", `{"email":"alice@example.com","password":"password123"}`, "")
		assertStatus(t, w, http.StatusOK)
		newToken := assertAuthResponse(t, decodeBody(t, w), i18n.MsgLoggedIn, "alice@example.com")

		if env.ms.TokenCount(u.ID) != 1 {
			t.Errorf("expected exactly 1 live token, got %d", env.ms.TokenCount(u.ID))
		}
		if w := env.do("GET", "/auth/user", "", oldToken); w.Code != http.StatusUnauthorized {
			t.Errorf("old token: expected 401, got %d", w.Code)
		}
		if w := env.do("GET", "/auth/user", "", newToken); w.Code != http.StatusOK {
			t.Errorf("new token: expected 200, got %d", w.Code)
		}
	})

	t.Run("email match is case-insensitive", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "Alice", "alice@example.com", hash)

		w := env.do("POST", "/auth/login", `{"email":"  ALICE@example.COM ","password":"password123"}`, "")
		assertStatus(t, w, http.StatusOK)
	})

	t.Run("wrong password returns 401", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "Alice", "alice@example.com", hash)

		w := env.do("POST", "/auth/login", `{"email":"alice@example.com","password":"wrong-password"}`, "")
		body := assertError(t, w, http.StatusUnauthorized, CodeInvalidCredentials)
		if body["message"] != i18n.MsgInvalidCreds {
			t.Errorf("message: expected %q, got %v", i18n.MsgInvalidCreds, body["message"])
		}
	})

	t.Run("unknown email returns the same 401", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("POST", "/auth/login", `{"email":"nobody@example.com","password":"password123"}`, "")
		body := assertError(t, w, http.StatusUnauthorized, CodeInvalidCredentials)
		if body["message"] != i18n.MsgInvalidCreds {
			t.Errorf("message: expected %q, got %v", i18n.MsgInvalidCreds, body["message"])
		}
	})

	t.Run("missing password returns 422", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("POST", "/auth/login", `{"email":"alice@example.com"}`, "")
		body := assertError(t, w, http.StatusUnprocessableEntity, CodeValidation)
		if msgs := fieldMessages(t, body, "password"); len(msgs) != 1 || msgs[0] != i18n.MsgPasswordRequired {
			t.Errorf("errors.password: expected [%q], got %v", i18n.MsgPasswordRequired, msgs)
		}
	})

	t.Run("store error returns 500", func(t *testing.T) {
		env := newTestEnv(t)
		env.ms.GetUserByEmailErr = errors.New("db down")

		w := env.do("POST", "/auth/login", `{"email":"alice@example.com","password":"password123"}`, "")
		assertError(t, w, http.StatusInternalServerError, CodeInternal)
	})

	t.Run("token ttl sets an expiry", func(t *testing.T) {
		env := newTestEnv(t)
		env.h.Opts.TokenTTL = time.Hour
		u, _ := env.seedUser(t, "Alice", "alice@example.com", hash)

		w := env.do("POST", "/auth/login", `{"email":"alice@example.com","password":"password123"}`, "")
		assertStatus(t, w, http.StatusOK)

		for _, tok := range env.ms.Tokens {
			if tok.UserID != u.ID {
				continue
			}
			if tok.ExpiresAt == nil || !tok.ExpiresAt.Equal(limiterNow.Add(time.Hour)) {
				t.Errorf("expires_at: expected %v, got %v", limiterNow.Add(time.Hour), tok.ExpiresAt)
			}
		}
	})
}

// --- Logout ---

func TestLogout(t *testing.T) {
	t.Run("revokes the presented token", func(t *testing.T) {
		env := newTestEnv(t)
		_, token := env.seedUser(t, "Alice", "alice@example.com", "x")

		w := env.do("POST", "/auth/logout", "", token)
		assertStatus(t, w, http.StatusOK)
		body := decodeBody(t, w)
		if body["message"] != i18n.MsgLoggedOut {
			t.Errorf("message: expected %q, got %v", i18n.MsgLoggedOut, body["message"])
		}
		if body["status"] != "success" {
			t.Errorf("status: expected success, got %v", body["status"])
		}

		w = env.do("GET", "/auth/user", "", token)
		assertError(t, w, http.StatusUnauthorized, CodeUnauthenticated)
	})

	t.Run("without token returns 401", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("POST", "/auth/logout", "", "")
		assertError(t, w, http.StatusUnauthorized, CodeUnauthenticated)
	})

	t.Run("store error returns 500", func(t *testing.T) {
		env := newTestEnv(t)
		_, token := env.seedUser(t, "Alice", "alice@example.com", "x")
		env.ms.DeleteTokenErr = errors.New("db down")

		w := env.do("POST", "/auth/logout", "", token)
		assertError(t, w, http.StatusInternalServerError, CodeInternal)
	})
}

// --- CurrentUser / Check ---

func TestCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.seedUser(t, "Alice", "alice@example.com", "x")

	w := env.do("GET", "/auth/user", "", token)
	assertStatus(t, w, http.StatusOK)
	data, _ := decodeBody(t, w)["data"].(map[string]any)
	user, _ := data["user"].(map[string]any)
	if user == nil {
		t.Fatalf("data.user: expected object, got %q", w.Body.String())
	}
	if user["id"] != float64(u.ID) {
		t.Errorf("id: expected %d, got %v", u.ID, user["id"])
	}
	if user["name"] != "Alice" {
		t.Errorf("name: expected Alice, got %v", user["name"])
	}
	if user["created_at"] != formatTime(u.CreatedAt) {
		t.Errorf("created_at: expected %s, got %v", formatTime(u.CreatedAt), user["created_at"])
	}
	if user["updated_at"] != formatTime(u.UpdatedAt) {
		t.Errorf("updated_at: expected %s, got %v", formatTime(u.UpdatedAt), user["updated_at"])
	}
}

func TestCheck(t *testing.T) {
	t.Run("authenticated caller", func(t *testing.T) {
		env := newTestEnv(t)
		_, token := env.seedUser(t, "Alice", "alice@example.com", "x")

		w := env.do("GET", "/auth/check", "", token)
		assertStatus(t, w, http.StatusOK)
		body := decodeBody(t, w)
		if body["authenticated"] != true {
			t.Errorf("authenticated: expected true, got %v", body["authenticated"])
		}
		if body["message"] != i18n.MsgAuthenticated {
			t.Errorf("message: expected %q, got %v", i18n.MsgAuthenticated, body["message"])
		}
	})

	t.Run("anonymous caller gets 401", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("GET", "/auth/check", "", "")
		assertError(t, w, http.StatusUnauthorized, CodeUnauthenticated)
	})
}
