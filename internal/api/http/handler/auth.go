package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaisthra/vibetrack/internal/api/http/middleware"
	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/model"
	"github.com/chaisthra/vibetrack/internal/service"
)

// CredentialService defines registration, login and profile operations.
type CredentialService interface {
	Register(ctx context.Context, reg service.Registration) (string, error)
	VerifyLogin(ctx context.Context, username, password string) (model.Account, error)
	GetProfile(ctx context.Context, userID string) (model.Account, error)
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (model.Account, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

// TokenService defines token issue and revoke operations.
type TokenService interface {
	Issue(ctx context.Context, userID string) (model.IssuedToken, error)
	Revoke(ctx context.Context, token string) error
}

// Auth handles the public authentication endpoints.
type Auth struct {
	credentials CredentialService
	tokens      TokenService
	logger      *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(credentials CredentialService, tokens TokenService, logger *logger.Logger) *Auth {
	return &Auth{
		credentials: credentials,
		tokens:      tokens,
		logger:      logger,
	}
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email" binding:"omitempty,email"`
}

type registerResponse struct {
	UserID string `json:"userId"`
}

// Register creates an account.
func (h *Auth) Register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	h.logger.Debug("Auth handler: processing registration request", "username", req.Username)

	userID, err := h.credentials.Register(c.Request.Context(), service.Registration{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Email:       req.Email,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, registerResponse{UserID: userID})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login exchanges credentials for a session token.
func (h *Auth) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	account, err := h.credentials.VerifyLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	issued, err := h.tokens.Issue(c.Request.Context(), account.Username)
	if err != nil {
		h.logger.Error("Auth handler: failed to issue token",
			"username", account.Username,
			"error", err.Error())
		writeError(c, err)
		return
	}

	h.logger.Info("Auth handler: login completed",
		"username", account.Username,
		"jti", issued.TokenID)

	c.JSON(http.StatusOK, loginResponse{
		Token:     issued.Token,
		TokenType: "Bearer",
		ExpiresAt: issued.ExpiresAt,
	})
}

type logoutRequest struct {
	Token string `json:"token"`
}

// Logout revokes the token from the body, or else from the Authorization
// header. It answers 204 for unknown, expired and already revoked tokens.
func (h *Auth) Logout(c *gin.Context) {
	var req logoutRequest
	if err := bindJSON(c, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, invalidBody(err))
		return
	}

	token := req.Token
	if token == "" {
		token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}

	if token != "" {
		if err := h.tokens.Revoke(c.Request.Context(), token); err != nil {
			writeError(c, err)
			return
		}
	}

	c.Status(http.StatusNoContent)
}
