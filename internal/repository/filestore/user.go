package filestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/chaisthra/vibetrack/internal/keylock"
	"github.com/chaisthra/vibetrack/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

// UserRepository keeps one credential document per user.
type UserRepository struct {
	db    *Connection
	locks *keylock.Locker
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db:    db,
		locks: keylock.New(),
	}
}

func (r *UserRepository) Get(_ context.Context, username string) (model.User, error) {
	var user model.User
	err := r.db.Files.ReadJSON(r.db.userPath(username), &user)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Create stores a new user. It fails with model.ErrDuplicateUser when the
// username is taken.
func (r *UserRepository) Create(ctx context.Context, user model.User) error {
	unlock := r.locks.Lock(user.Username)
	defer unlock()

	path := r.db.userPath(user.Username)
	exists, err := r.db.Files.Exists(path)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if exists {
		return model.ErrDuplicateUser
	}

	if err := r.db.Files.WriteJSON(ctx, path, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update replaces an existing user.
func (r *UserRepository) Update(ctx context.Context, user model.User) error {
	unlock := r.locks.Lock(user.Username)
	defer unlock()

	path := r.db.userPath(user.Username)
	exists, err := r.db.Files.Exists(path)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if !exists {
		return model.ErrNotFound
	}

	if err := r.db.Files.WriteJSON(ctx, path, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
