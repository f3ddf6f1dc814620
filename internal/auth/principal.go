// Package auth authenticates requests: bearer tokens compared in
// constant time, cookie-backed OAuth sessions, and the route guards the
// router mounts in front of protected handlers.
package auth

import (
	"context"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
)

// Principal is the resolved identity of an authenticated request.
// Bearer requests represent the server operator and are always admin.
type Principal struct {
	Email   string           `json:"email,omitempty"`
	Name    string           `json:"name,omitempty"`
	Picture string           `json:"picture,omitempty"`
	Admin   bool             `json:"admin"`
	Method  store.AuthMethod `json:"method"`
}

type principalKey struct{}

// ContextWithPrincipal stores p for downstream handlers.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the request identity, if authenticated.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
