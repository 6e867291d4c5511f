package users

import (
	"context"
	"errors"

	"lead-manager-backend/internal/auth"

	"go.mongodb.org/mongo-driver/mongo"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate resolves the user by email and checks the password hash.
// Unknown email, wrong password and deactivated account all collapse into
// the same error so the response never leaks which one it was.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if !user.Active {
		return User{}, ErrInvalidCredentials
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}
