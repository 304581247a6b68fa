// Package auth guards HTTP routes with bearer tokens. A Verifier turns a
// raw token into a Principal; Middleware extracts, verifies and stores it
// on the request context.
package auth

import (
	"context"
	"time"
)

// Principal describes an authenticated caller.
type Principal struct {
	Subject    string
	Roles      []string
	VerifiedAt time.Time
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Verifier validates a raw token.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Principal, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, raw string) (Principal, error)

func (f VerifierFunc) Verify(ctx context.Context, raw string) (Principal, error) { return f(ctx, raw) }
