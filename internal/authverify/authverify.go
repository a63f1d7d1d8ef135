// Package authverify implements the forward-auth verification endpoint
// (spec §6 "GET /auth/verify"): it reads a session cookie, verifies a
// signed session token against a key derived from JWT_SECRET, and reports
// whether the caller's proxy should let the request through.
package authverify

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookieName is the cookie the forward-auth check inspects.
	SessionCookieName = "session"
	// hmacInfo is the fixed context string the signing key is derived with,
	// per spec §6: HMAC-SHA256(secret, "access").
	hmacInfo = "access"
)

// deriveKey turns the raw JWT secret into the signing key via
// HMAC-SHA256(secret, "access"), so the session-signing key is never the
// bare secret itself.
func deriveKey(secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(hmacInfo))
	return mac.Sum(nil)
}

// Verifier checks forward-auth requests against a JWT secret.
type Verifier struct {
	key []byte
}

func New(jwtSecret string) *Verifier {
	return &Verifier{key: deriveKey(jwtSecret)}
}

// Handler implements "GET /auth/verify": 200 on a valid session cookie, a
// 302 redirect to /login?redirect=<original URI> otherwise.
func (v *Verifier) Handler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || !v.Valid(cookie.Value) {
		v.redirectToLogin(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Valid reports whether tokenString is a session token signed with this
// verifier's derived key and not expired.
func (v *Verifier) Valid(tokenString string) bool {
	if tokenString == "" {
		return false
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err == nil && token.Valid
}

func (v *Verifier) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	redirect := url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, "/login?redirect="+redirect, http.StatusFound)
}
