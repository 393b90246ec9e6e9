package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mitienda/mitienda/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Register creates a customer account. The email is stored lowercased
// so lookups stay case-insensitive.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		FullName:     fullName,
		IsActive:     true,
	})
}

// GetUser loads a user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateProfile saves the contact and address defaults for a user.
func (s *Service) UpdateProfile(ctx context.Context, id int64, fullName, phone, address, city string) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.FullName = fullName
	user.Phone = phone
	user.Address = address
	user.City = city
	if err := s.repo.UpdateProfile(ctx, *user); err != nil {
		return nil, err
	}
	return user, nil
}

// IsStaff reports whether the user exists and holds the staff flag.
func (s *Service) IsStaff(ctx context.Context, id int64) bool {
	user, err := s.repo.FindByID(ctx, id)
	return err == nil && user.IsStaff && user.IsActive
}
