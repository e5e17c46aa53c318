package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/model"
)

// TokenVerifier resolves a bearer token to the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (model.Identity, error)
}

// Authenticate validates bearer tokens and binds the identity to the
// request context.
type Authenticate struct {
	tokens TokenVerifier
	logger *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokens TokenVerifier, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokens: tokens, logger: logger}
}

// Handle rejects the request with 401 unless it carries a valid token.
func (m *Authenticate) Handle(c *gin.Context) {
	token, ok := BearerToken(c.GetHeader("Authorization"))
	if !ok {
		Abort(c, http.StatusUnauthorized, "Unauthorized", "missing or malformed authorization header")
		return
	}

	id, err := m.tokens.Verify(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrTokenExpired):
			Abort(c, http.StatusUnauthorized, "Expired", "token expired")
		case errors.Is(err, model.ErrTokenRevoked):
			Abort(c, http.StatusUnauthorized, "Revoked", "token revoked")
		case errors.Is(err, model.ErrTokenMalformed):
			Abort(c, http.StatusUnauthorized, "Unauthorized", "invalid token")
		default:
			m.logger.Error("Authenticate: token verification failed", "error", err.Error())
			Abort(c, http.StatusInternalServerError, "Internal", "internal server error")
		}
		return
	}

	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
	c.Next()
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
