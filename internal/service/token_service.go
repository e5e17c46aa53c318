package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/chaisthra/vibetrack/internal/clock"
	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/metrics"
	"github.com/chaisthra/vibetrack/internal/model"
)

// TokenService issues, verifies and revokes session tokens. It composes
// the TokenManager, which owns signatures and expiry, with the
// RevocationStore, which owns logout.
type TokenService struct {
	manager model.TokenManager
	revoked model.RevocationStore
	clock   clock.Clock
	logger  *logger.Logger
}

func NewTokenService(manager model.TokenManager, revoked model.RevocationStore, clk clock.Clock, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, revoked: revoked, clock: clk, logger: logger}
}

// Issue mints a token for userID.
func (s *TokenService) Issue(_ context.Context, userID string) (model.IssuedToken, error) {
	issued, err := s.manager.Generate(userID)
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("issue access: %w", err)
	}
	s.logger.Debug("Token service: token issued",
		"username", userID,
		"jti", issued.TokenID,
		"expires_at", issued.ExpiresAt)
	return issued, nil
}

// Verify returns the identity bound to token. Failures are
// model.ErrTokenMalformed, model.ErrTokenExpired or model.ErrTokenRevoked.
func (s *TokenService) Verify(ctx context.Context, token string) (model.Identity, error) {
	claims, err := s.manager.Parse(token)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrTokenExpired):
			metrics.AuthFailure("expired")
			return model.Identity{}, model.ErrTokenExpired
		default:
			metrics.AuthFailure("malformed")
			return model.Identity{}, model.ErrTokenMalformed
		}
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		s.logger.Error("Token service: revocation check failed",
			"jti", claims.TokenID,
			"error", err.Error())
		return model.Identity{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		metrics.AuthFailure("revoked")
		return model.Identity{}, model.ErrTokenRevoked
	}

	return model.Identity{
		UserID:    claims.UserID,
		TokenID:   claims.TokenID,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Revoke invalidates token until its natural expiry. Revoking an expired,
// malformed or already revoked token succeeds without effect.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	claims, err := s.manager.Parse(token)
	if err != nil {
		s.logger.Debug("Token service: ignoring revoke of unusable token", "error", err.Error())
		return nil
	}

	if err := s.revoked.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		s.logger.Error("Token service: failed to revoke token",
			"jti", claims.TokenID,
			"error", err.Error())
		return fmt.Errorf("revoke token: %w", err)
	}

	s.logger.Info("Token service: token revoked",
		"username", claims.UserID,
		"jti", claims.TokenID)
	return nil
}

// Sweep drops revocation entries for tokens that have expired anyway.
func (s *TokenService) Sweep(ctx context.Context) (int, error) {
	removed, err := s.revoked.Cleanup(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("sweep revocations: %w", err)
	}
	if removed > 0 {
		s.logger.Debug("Token service: swept revocations", "removed", removed)
	}
	return removed, nil
}
