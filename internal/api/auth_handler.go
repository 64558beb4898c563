// auth_handler.go -- HTTP handlers for all /auth/* endpoints.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/MGallo-Code/ticklist/internal/i18n"
	"github.com/MGallo-Code/ticklist/internal/store"
	"github.com/gofrs/uuid/v5"
)

// userJSON is the public shape of a user. UpdatedAt is only sent by GET /auth/user.
type userJSON struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type authData struct {
	User      userJSON `json:"user"`
	Token     string   `json:"token"`
	TokenType string   `json:"token_type"`
}

type authResponse struct {
	Message string   `json:"message"`
	Data    authData `json:"data"`
}

// newToken is a freshly generated bearer token, not yet stored.
type newToken struct {
	plain     string
	id        uuid.UUID
	hash      []byte
	expiresAt *time.Time
}

// generateToken creates a token with an expiry from Opts.TokenTTL (nil when zero).
func (h *Handler) generateToken() (newToken, error) {
	token, tokenHash, err := GenerateToken()
	if err != nil {
		return newToken{}, err
	}
	tokenID, err := uuid.NewV7()
	if err != nil {
		return newToken{}, err
	}

	nt := newToken{plain: EncodeToken(*token), id: tokenID, hash: tokenHash[:]}
	if ttl := h.opts().TokenTTL; ttl > 0 {
		t := h.now().Add(ttl)
		nt.expiresAt = &t
	}
	return nt, nil
}

// Register handles POST /auth/register: name, email, password signup.
// Returns 201 with user and token, 422 for validation errors (including a taken email).
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	fields, verr := decodeFields(r)
	if verr != nil {
		logWarn(r, "failed to decode register input")
		writeError(w, r, verr)
		return
	}
	in, verr := validateRegister(fields)
	if verr != nil {
		writeError(w, r, verr)
		return
	}

	hashedPassword, err := HashPassword(in.Password)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	token, err := h.generateToken()
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	// User and first token commit in one transaction.
	user, err := h.Store.RegisterUser(r.Context(), in.Name, in.Email, hashedPassword, token.id, token.hash, token.expiresAt)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			logInfo(r, "registration attempted with existing email")
			writeError(w, r, fieldError("email", i18n.MsgEmailTaken))
			return
		}
		logError(r, "failed to create user", "error", err)
		InternalServerError(w, r, err)
		return
	}

	logInfo(r, "user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{
		Message: i18n.FromRequest(r).T(i18n.MsgRegistered),
		Data: authData{
			User:      userJSON{ID: user.ID, Name: user.Name, Email: user.Email, CreatedAt: formatTime(user.CreatedAt)},
			Token:     token.plain,
			TokenType: "Bearer",
		},
	})
}

// Login handles POST /auth/login: email + password authentication.
// Returns 200 with user and a fresh token (all earlier tokens revoked),
// 401 INVALID_CREDENTIALS for a bad pair, 422 for malformed input.
// Argon2id dummy-hash equalises timing when account doesn't exist.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	fields, verr := decodeFields(r)
	if verr != nil {
		logWarn(r, "failed to decode login input")
		writeError(w, r, verr)
		return
	}
	in, verr := validateLogin(fields)
	if verr != nil {
		writeError(w, r, verr)
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), in.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logError(r, "failed to fetch user for login", "error", err)
			InternalServerError(w, r, err)
			return
		}
		// Run dummy hash to equalise timing with found-user path.
		VerifyPassword(in.Password, dummyPasswordHash)
		logInfo(r, "login attempted with non-existent email")
		writeError(w, r, errInvalidCredentials)
		return
	}

	valid, err := VerifyPassword(in.Password, user.PasswordHash)
	if err != nil {
		logError(r, "password verification failed", "error", err, "user_id", user.ID)
		InternalServerError(w, r, err)
		return
	}
	if !valid {
		logInfo(r, "login attempted with incorrect password", "user_id", user.ID)
		writeError(w, r, errInvalidCredentials)
		return
	}

	token, err := h.generateToken()
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	// Revokes every earlier token in the same transaction.
	if err := h.Store.ReplaceUserTokens(r.Context(), token.id, user.ID, token.hash, token.expiresAt); err != nil {
		logError(r, "failed to issue token", "error", err, "user_id", user.ID)
		InternalServerError(w, r, err)
		return
	}

	logInfo(r, "user logged in successfully", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{
		Message: i18n.FromRequest(r).T(i18n.MsgLoggedIn),
		Data: authData{
			User:      userJSON{ID: user.ID, Name: user.Name, Email: user.Email, CreatedAt: formatTime(user.CreatedAt)},
			Token:     token.plain,
			TokenType: "Bearer",
		},
	})
}

// Logout handles POST /auth/logout: revokes the presented token only.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenHash, ok := TokenHashFromContext(r.Context())
	if !ok {
		logError(r, "logout called without token in context")
		InternalServerError(w, r, errors.New("missing auth context"))
		return
	}

	if err := h.Store.DeleteToken(r.Context(), tokenHash); err != nil {
		logError(r, "failed to delete token", "error", err)
		InternalServerError(w, r, err)
		return
	}

	logInfo(r, "user logged out")
	writeJSON(w, http.StatusOK, messageBody{
		Message: i18n.FromRequest(r).T(i18n.MsgLoggedOut),
		Status:  "success",
	})
}

// CurrentUser handles GET /auth/user.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		InternalServerError(w, r, errors.New("missing auth context"))
		return
	}

	type data struct {
		User userJSON `json:"user"`
	}
	writeJSON(w, http.StatusOK, struct {
		Data data `json:"data"`
	}{data{userJSON{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: formatTime(user.CreatedAt),
		UpdatedAt: formatTime(user.UpdatedAt),
	}}})
}

// Check handles GET /auth/check. Unauthenticated callers never get here;
// RequireAuth answers them with 401.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		InternalServerError(w, r, errors.New("missing auth context"))
		return
	}

	type data struct {
		User userJSON `json:"user"`
	}
	writeJSON(w, http.StatusOK, struct {
		Message       string `json:"message"`
		Authenticated bool   `json:"authenticated"`
		Data          data   `json:"data"`
	}{
		Message:       i18n.FromRequest(r).T(i18n.MsgAuthenticated),
		Authenticated: true,
		Data:          data{userJSON{ID: user.ID, Name: user.Name, Email: user.Email}},
	})
}
