package shared

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "sid"

// ParseCookieHeader parses a raw Cookie header into a name/value map.
// Pairs are separated by ';', names and values trimmed, values URL-decoded.
// Entries without '=' are ignored. On duplicate names the last occurrence
// wins. The codec never interprets token semantics.
func ParseCookieHeader(header string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		cookies[name] = value
	}
	return cookies
}

// SessionCookie builds the Set-Cookie value for a session token. The token is
// URL-encoded; attributes restrict the cookie to first-party top-level
// navigation and keep it out of script reach.
func SessionCookie(token string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    url.QueryEscape(token),
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie overwrites the session cookie with an empty value and an
// immediate expiry so the client drops it.
func ClearSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionTokenFromRequest extracts the session token from the request cookie
// header, empty string when absent or malformed.
func SessionTokenFromRequest(r *http.Request) string {
	return ParseCookieHeader(r.Header.Get("Cookie"))[SessionCookieName]
}
