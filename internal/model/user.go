package model

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// UserStore defines persistence operations for credential records.
type UserStore interface {
	Get(ctx context.Context, username string) (User, error)
	Create(ctx context.Context, user User) error
	Update(ctx context.Context, user User) error
}

// UserStatus is a soft lifecycle state. Users are never hard-deleted.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User represents a stored credential record.
type User struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Profile      Profile    `json:"profile"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Profile holds user-editable metadata.
type Profile struct {
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email,omitempty"`
	Preferences Preferences `json:"preferences"`
}

// Preferences are per-user UI settings.
type Preferences struct {
	Theme                string `json:"theme"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

// DefaultPreferences returns preferences assigned at registration.
func DefaultPreferences() Preferences {
	return Preferences{Theme: "dark", NotificationsEnabled: true}
}

// ProfileUpdate carries the fields a user may change. Nil fields are left
// untouched.
type ProfileUpdate struct {
	DisplayName *string
	Email       *string
	Preferences *PreferencesUpdate
}

// PreferencesUpdate is a partial change to Preferences.
type PreferencesUpdate struct {
	Theme                *string
	NotificationsEnabled *bool
}

// Apply merges the non-nil fields of u into p.
func (u PreferencesUpdate) Apply(p Preferences) Preferences {
	if u.Theme != nil {
		p.Theme = *u.Theme
	}
	if u.NotificationsEnabled != nil {
		p.NotificationsEnabled = *u.NotificationsEnabled
	}
	return p
}

// Account is the view of a user that may leave the credential store.
type Account struct {
	Username    string
	Profile     Profile
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// Account strips credential material from the user.
func (u User) Account() Account {
	return Account{
		Username:    u.Username,
		Profile:     u.Profile,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_-]{3,50}$`)

// CanonicalUsername lower-cases and validates a username. The result is the
// user's identifier and partition key, so it must stay filesystem-safe.
func CanonicalUsername(username string) (string, error) {
	canonical := strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(canonical) {
		return "", fmt.Errorf("%w: username must be 3-50 characters of letters, digits, '_' or '-'", ErrValidation)
	}
	return canonical, nil
}
