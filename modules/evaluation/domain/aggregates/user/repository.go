package user

import (
	"context"

	"github.com/go-faster/errors"
)

var ErrUserNotFound = errors.New("user not found")

type Repository interface {
	// GetByEmail matches case-insensitively; email is normalized before lookup.
	GetByEmail(ctx context.Context, email string) (*User, error)
	// FindByName returns all users with the given (first_name_given, last_name)
	// pair, used for homonym detection.
	FindByName(ctx context.Context, firstNameGiven, lastName string) ([]*User, error)
	Managers(ctx context.Context) ([]*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	Count(ctx context.Context) (int64, error)
}
