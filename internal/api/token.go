// token.go

// Bearer token generation and parsing.
package api

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// GenerateToken returns 256-bit random bearer token and its SHA-256 hash.
// Token goes to the client; hash goes in storage.
func GenerateToken() (*[32]byte, *[32]byte, error) {
	var token [32]byte
	_, err := rand.Read(token[:])
	if err != nil {
		return nil, nil, fmt.Errorf("generating token with rand: %w", err)
	}
	hash := sha256.Sum256(token[:])
	return &token, &hash, nil
}

// EncodeToken is the client-facing form of a raw token.
func EncodeToken(token [32]byte) string {
	return base64.RawURLEncoding.EncodeToString(token[:])
}

// bearerHash extracts the token from "Authorization: Bearer <token>" and returns its hash.
// ok is false when the header is missing, malformed, or not a 32-byte token.
func bearerHash(r *http.Request) (hash []byte, ok bool) {
	header := r.Header.Get("Authorization")
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return nil, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil || len(raw) != 32 {
		return nil, false
	}
	sum := sha256.Sum256(raw)
	return sum[:], true
}
