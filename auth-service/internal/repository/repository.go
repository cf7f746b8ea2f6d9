package repository

import (
	"context"
	"errors"

	"github.com/fjod/rx_cart/auth-service/internal/domain"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail  = errors.New("email already registered")
)

// UserRepository stores user accounts keyed by normalized email.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
