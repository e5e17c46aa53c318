package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/model"
)

// Account handles the caller's own profile.
type Account struct {
	credentials CredentialService
	logger      *logger.Logger
}

// NewAccount creates a new Account handler.
func NewAccount(credentials CredentialService, logger *logger.Logger) *Account {
	return &Account{credentials: credentials, logger: logger}
}

type preferencesResponse struct {
	Theme                string `json:"theme"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

type profileResponse struct {
	Username    string              `json:"username"`
	DisplayName string              `json:"display_name"`
	Email       string              `json:"email,omitempty"`
	Preferences preferencesResponse `json:"preferences"`
	CreatedAt   time.Time           `json:"created_at"`
	LastLoginAt *time.Time          `json:"last_login_at,omitempty"`
}

func newProfileResponse(a model.Account) profileResponse {
	return profileResponse{
		Username:    a.Username,
		DisplayName: a.Profile.DisplayName,
		Email:       a.Profile.Email,
		Preferences: preferencesResponse{
			Theme:                a.Profile.Preferences.Theme,
			NotificationsEnabled: a.Profile.Preferences.NotificationsEnabled,
		},
		CreatedAt:   a.CreatedAt,
		LastLoginAt: a.LastLoginAt,
	}
}

// Get returns the caller's profile.
func (h *Account) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	account, err := h.credentials.GetProfile(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(account))
}

type preferencesPatch struct {
	Theme                *string `json:"theme"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
}

type profilePatch struct {
	DisplayName *string           `json:"display_name"`
	Email       *string           `json:"email" binding:"omitempty,email"`
	Preferences *preferencesPatch `json:"preferences"`
}

// Update merges the supplied fields into the caller's profile.
func (h *Account) Update(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req profilePatch
	if err := bindJSON(c, &req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	update := model.ProfileUpdate{
		DisplayName: req.DisplayName,
		Email:       req.Email,
	}
	if req.Preferences != nil {
		update.Preferences = &model.PreferencesUpdate{
			Theme:                req.Preferences.Theme,
			NotificationsEnabled: req.Preferences.NotificationsEnabled,
		}
	}

	account, err := h.credentials.UpdateProfile(c.Request.Context(), id.UserID, update)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(account))
}

type passwordChange struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword replaces the caller's password. Existing tokens stay valid
// until they expire or are revoked.
func (h *Account) ChangePassword(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req passwordChange
	if err := bindJSON(c, &req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	if err := h.credentials.ChangePassword(c.Request.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
