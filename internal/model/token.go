package model

import (
	"context"
	"time"
)

// TokenManager mints and parses signed session tokens. Parse reports
// ErrTokenMalformed or ErrTokenExpired; it does not consult revocation.
type TokenManager interface {
	Generate(userID string) (IssuedToken, error)
	Parse(token string) (TokenClaims, error)
}

// RevocationStore tracks token IDs revoked before their natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Cleanup(ctx context.Context, now time.Time) (int, error)
}

// IssuedToken is the result of a successful login.
type IssuedToken struct {
	Token     string
	TokenID   string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenClaims are the verified contents of a token.
type TokenClaims struct {
	TokenID   string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Identity is the authenticated caller of a request. It is produced only by
// token verification and is the sole source of a partition key.
type Identity struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}
