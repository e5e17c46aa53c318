package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/chaisthra/vibetrack/internal/clock"
	"github.com/chaisthra/vibetrack/internal/keylock"
	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/model"
)

const (
	minPasswordLen = 8
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordLen = 72

	maxDisplayNameLen = 100
)

var validate = validator.New()

// Registration is the input to Register.
type Registration struct {
	Username    string
	Password    string
	DisplayName string
	Email       string
}

// Credentials owns user credential records.
type Credentials struct {
	users  model.UserStore
	locks  *keylock.Locker
	clock  clock.Clock
	logger *logger.Logger
	cost   int

	// dummyHash is compared against when the user does not exist so that
	// unknown and known usernames take the same time to reject.
	dummyHash []byte
}

func NewCredentials(users model.UserStore, clk clock.Clock, logger *logger.Logger, bcryptCost int) (*Credentials, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("vibetrack-dummy-password-1"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}

	return &Credentials{
		users:     users,
		locks:     keylock.New(),
		clock:     clk,
		logger:    logger,
		cost:      bcryptCost,
		dummyHash: dummy,
	}, nil
}

// Register creates a user and returns the canonical username.
func (c *Credentials) Register(ctx context.Context, reg Registration) (string, error) {
	username, err := model.CanonicalUsername(reg.Username)
	if err != nil {
		return "", err
	}
	if err := checkPassword(reg.Password); err != nil {
		return "", err
	}

	profile := model.Profile{
		DisplayName: strings.TrimSpace(reg.DisplayName),
		Preferences: model.DefaultPreferences(),
	}
	if profile.DisplayName == "" {
		profile.DisplayName = username
	}
	if err := validateProfile(&profile, reg.Email); err != nil {
		return "", err
	}

	c.logger.Debug("Credentials: registering user", "username", username)

	unlock := c.locks.Lock(username)
	defer unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), c.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := c.clock.Now().UTC()
	user := model.User{
		Username:     username,
		PasswordHash: string(hash),
		Profile:      profile,
		Status:       model.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := c.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicateUser) {
			c.logger.Info("Credentials: username already taken", "username", username)
			return "", model.ErrDuplicateUser
		}
		c.logger.Error("Credentials: failed to create user",
			"username", username,
			"error", err.Error())
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	c.logger.Info("Credentials: user registered", "username", username)
	return username, nil
}

// VerifyLogin checks a username/password pair and stamps the login time.
// Every rejection is reported as model.ErrInvalidCredential.
func (c *Credentials) VerifyLogin(ctx context.Context, username, password string) (model.Account, error) {
	canonical, err := model.CanonicalUsername(username)
	if err != nil {
		c.burnCompare(password)
		return model.Account{}, model.ErrInvalidCredential
	}

	user, err := c.users.Get(ctx, canonical)
	if errors.Is(err, model.ErrNotFound) {
		c.burnCompare(password)
		return model.Account{}, model.ErrInvalidCredential
	}
	if err != nil {
		c.logger.Error("Credentials: failed to load user",
			"username", canonical,
			"error", err.Error())
		return model.Account{}, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		c.logger.Info("Credentials: password mismatch", "username", canonical)
		return model.Account{}, model.ErrInvalidCredential
	}
	if user.Status != model.UserStatusActive {
		c.logger.Info("Credentials: login attempt for disabled user", "username", canonical)
		return model.Account{}, model.ErrInvalidCredential
	}

	unlock := c.locks.Lock(canonical)
	defer unlock()

	// Reload under the lock so a concurrent profile edit is not lost.
	user, err = c.users.Get(ctx, canonical)
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to load user: %w", err)
	}
	now := c.clock.Now().UTC()
	user.LastLoginAt = &now
	if err := c.users.Update(ctx, user); err != nil {
		c.logger.Error("Credentials: failed to stamp last login",
			"username", canonical,
			"error", err.Error())
		return model.Account{}, fmt.Errorf("failed to update user: %w", err)
	}

	return user.Account(), nil
}

// GetProfile returns the account of userID.
func (c *Credentials) GetProfile(ctx context.Context, userID string) (model.Account, error) {
	user, err := c.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Account{}, model.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("failed to load user: %w", err)
	}
	return user.Account(), nil
}

// UpdateProfile merges the non-nil fields of update into the profile. The
// merge runs under the user's lock so concurrent partial updates compose.
func (c *Credentials) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (model.Account, error) {
	unlock := c.locks.Lock(userID)
	defer unlock()

	user, err := c.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Account{}, model.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("failed to load user: %w", err)
	}

	profile := user.Profile
	email := profile.Email
	if update.DisplayName != nil {
		profile.DisplayName = strings.TrimSpace(*update.DisplayName)
		if profile.DisplayName == "" {
			return model.Account{}, fmt.Errorf("%w: display name must not be empty", model.ErrValidation)
		}
	}
	if update.Email != nil {
		email = *update.Email
	}
	if update.Preferences != nil {
		profile.Preferences = update.Preferences.Apply(profile.Preferences)
	}
	if err := validateProfile(&profile, email); err != nil {
		return model.Account{}, err
	}

	user.Profile = profile
	user.UpdatedAt = c.clock.Now().UTC()
	if err := c.users.Update(ctx, user); err != nil {
		c.logger.Error("Credentials: failed to update profile",
			"username", userID,
			"error", err.Error())
		return model.Account{}, fmt.Errorf("failed to update user: %w", err)
	}

	c.logger.Info("Credentials: profile updated", "username", userID)
	return user.Account(), nil
}

// ChangePassword replaces the password after checking the current one.
func (c *Credentials) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := checkPassword(next); err != nil {
		return err
	}

	unlock := c.locks.Lock(userID)
	defer unlock()

	user, err := c.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return model.ErrInvalidCredential
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), c.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = c.clock.Now().UTC()

	if err := c.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	c.logger.Info("Credentials: password changed", "username", userID)
	return nil
}

func (c *Credentials) burnCompare(password string) {
	_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(password))
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d-%d bytes", model.ErrWeakCredential, minPasswordLen, maxPasswordLen)
	}

	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return fmt.Errorf("%w: password must contain a letter and a digit", model.ErrWeakCredential)
	}
	return nil
}

func validateProfile(p *model.Profile, email string) error {
	if len(p.DisplayName) > maxDisplayNameLen {
		return fmt.Errorf("%w: display name is too long", model.ErrValidation)
	}

	email = strings.TrimSpace(email)
	if email != "" {
		if err := validate.Var(email, "email,max=254"); err != nil {
			return fmt.Errorf("%w: invalid email address", model.ErrValidation)
		}
	}
	p.Email = email

	switch p.Preferences.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("%w: theme must be dark or light", model.ErrValidation)
	}
	return nil
}
