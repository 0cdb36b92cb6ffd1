package shared

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const (
	// CSRFCookieName is the cookie carrying the double-submit token.
	CSRFCookieName = "csrf"
	// CSRFFormField is the form field name carrying the CSRF token.
	CSRFFormField = "csrf_token"
)

// CSRFManager issues and verifies stateless double-submit CSRF tokens. The
// token is nonce.mac where mac = HMAC-SHA256(secret, nonce); the same value
// travels in a cookie and in the form body, so it works before any account
// session exists.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager using the provided secret key.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// EnsureToken returns the request's CSRF token, minting and setting the
// cookie when none is present or the existing one fails verification.
func (m *CSRFManager) EnsureToken(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(CSRFCookieName); err == nil {
		if m.validToken(cookie.Value) {
			return cookie.Value
		}
	}
	token := m.mintToken()
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// VerifyRequest compares the submitted token with the cookie token.
func (m *CSRFManager) VerifyRequest(r *http.Request, submitted string) error {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return ErrCSRFTokenMissing
	}
	if submitted == "" {
		return ErrCSRFTokenMissing
	}
	if !m.validToken(cookie.Value) {
		return ErrCSRFTokenMismatch
	}
	if !hmac.Equal([]byte(cookie.Value), []byte(submitted)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) mintToken() string {
	nonce := make([]byte, 16)
	_, _ = rand.Read(nonce)
	encoded := base64.RawURLEncoding.EncodeToString(nonce)
	return encoded + "." + m.sign(encoded)
}

func (m *CSRFManager) validToken(token string) bool {
	nonce, mac, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return false
	}
	return hmac.Equal([]byte(mac), []byte(m.sign(nonce)))
}

func (m *CSRFManager) sign(nonce string) string {
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
