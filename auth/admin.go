package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sbc-om/sbc-sub007/cache/ttl"
)

// AdminRole is granted to callers that present the admin token.
const AdminRole = "cache:admin"

// verifiedTokens bounds the memo of recently accepted admin tokens.
const verifiedTokens = 16

// AdminVerifier accepts a single shared secret stored as a bcrypt hash.
// Accepted tokens are remembered for a short while so that repeated admin
// calls do not pay the bcrypt cost each time. Rejections are never cached.
type AdminVerifier struct {
	hash     []byte
	accepted *ttl.Synced[Principal]
	now      func() time.Time
}

// NewAdminVerifier validates hash and builds a verifier. cacheTTL bounds
// how long an accepted token skips bcrypt.
func NewAdminVerifier(hash string, cacheTTL time.Duration, opts ...ttl.Option) (*AdminVerifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("auth: invalid admin token hash: %w", err)
	}
	if cacheTTL <= 0 {
		return nil, errors.New("auth: admin verify cache ttl must be positive")
	}
	return &AdminVerifier{
		hash:     []byte(hash),
		accepted: ttl.NewSynced[Principal](cacheTTL, verifiedTokens, opts...),
		now:      time.Now,
	}, nil
}

func (v *AdminVerifier) Verify(ctx context.Context, raw string) (Principal, error) {
	if raw == "" {
		return Principal{}, ErrTokenNotFound
	}
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}

	sum := sha256.Sum256([]byte(raw))
	key := hex.EncodeToString(sum[:])
	if p, ok := v.accepted.Get(key); ok {
		return p, nil
	}

	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(raw)); err != nil {
		return Principal{}, ErrTokenRejected
	}

	p := Principal{Subject: "admin", Roles: []string{AdminRole}, VerifiedAt: v.now()}
	v.accepted.Set(key, p)
	return p, nil
}

// Close releases the accepted-token cache.
func (v *AdminVerifier) Close() error { return v.accepted.Close() }

var _ Verifier = (*AdminVerifier)(nil)
