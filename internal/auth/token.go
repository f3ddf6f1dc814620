package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerFromRequest extracts the bearer token from the Authorization
// header. Returns "" when the header is absent or not a Bearer scheme.
func BearerFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// TokenEqual compares two tokens without leaking length or content
// through timing.
func TokenEqual(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
