package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/chaisthra/vibetrack/internal/clock"
	"github.com/chaisthra/vibetrack/internal/model"
)

// Claims represents JWT claims with token type. The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
}

var _ model.TokenManager = (*JWT)(nil)

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey []byte
	ttl       time.Duration
	clock     clock.Clock
	parser    *jwt.Parser
}

const typeAccess = "access"

// NewJWT creates a token manager signing with secretKey. Every token it
// issues expires exactly ttl after its issue time.
func NewJWT(secretKey string, ttl time.Duration, clk clock.Clock) *JWT {
	return &JWT{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		clock:     clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(clk.Now),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// Generate creates a signed access token for userID.
func (j *JWT) Generate(userID string) (model.IssuedToken, error) {
	// NumericDate has second precision; truncate first so the returned
	// expiry matches what the token carries.
	now := j.clock.Now().Truncate(time.Second)
	expiresAt := now.Add(j.ttl)
	jti := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: typeAccess,
	})

	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return model.IssuedToken{
		Token:     tokenString,
		TokenID:   jti,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Parse validates signature, algorithm and expiry and returns the claims.
func (j *JWT) Parse(tokenString string) (model.TokenClaims, error) {
	claims := &Claims{}
	token, err := j.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.TokenClaims{}, model.ErrTokenExpired
		}
		return model.TokenClaims{}, fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
	}
	if !token.Valid {
		return model.TokenClaims{}, model.ErrTokenMalformed
	}
	if claims.TokenType != typeAccess {
		return model.TokenClaims{}, fmt.Errorf("%w: token type mismatch: %s", model.ErrTokenMalformed, claims.TokenType)
	}
	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return model.TokenClaims{}, fmt.Errorf("%w: missing required claims", model.ErrTokenMalformed)
	}

	return model.TokenClaims{
		TokenID:   claims.ID,
		UserID:    claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
