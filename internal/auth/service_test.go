package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mitienda/mitienda/internal/shared"
)

type memoryRepo struct {
	users  map[int64]*User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]*User)}
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	if u, ok := r.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) Create(ctx context.Context, user User) (*User, error) {
	if _, err := r.FindByEmail(ctx, user.Email); err == nil {
		return nil, shared.ErrDuplicate
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = &user
	copied := user
	return &copied, nil
}

func (r *memoryRepo) UpdateProfile(ctx context.Context, user User) error {
	existing, ok := r.users[user.ID]
	if !ok {
		return shared.ErrNotFound
	}
	existing.FullName = user.FullName
	existing.Phone = user.Phone
	existing.Address = user.Address
	existing.City = user.City
	return nil
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ana@Example.com", "sup3rsecret", "Ana Torres")
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", user.Email)
	require.NotEqual(t, "sup3rsecret", user.PasswordHash)

	got, err := svc.Authenticate(ctx, "ana@example.com", "sup3rsecret")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ana@example.com", "wrongpassword")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "sup3rsecret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, "ana@example.com", "sup3rsecret", "Ana")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "ANA@example.com", "otherpassword", "Other Ana")
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestAuthenticateRejectsInactiveAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, "ana@example.com", "sup3rsecret", "Ana")
	require.NoError(t, err)

	repo.users[user.ID].IsActive = false
	_, err = svc.Authenticate(ctx, "ana@example.com", "sup3rsecret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	user, err := svc.Register(ctx, "ana@example.com", "sup3rsecret", "Ana")
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, user.ID, "Ana Torres", "555-0101", "Av. Siempre Viva 742", "Springfield")
	require.NoError(t, err)
	require.Equal(t, "Av. Siempre Viva 742", updated.Address)

	reloaded, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Springfield", reloaded.City)
}

func TestIsStaff(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, "staff@example.com", "sup3rsecret", "Staff")
	require.NoError(t, err)
	require.False(t, svc.IsStaff(ctx, user.ID))

	repo.users[user.ID].IsStaff = true
	require.True(t, svc.IsStaff(ctx, user.ID))

	repo.users[user.ID].IsActive = false
	require.False(t, svc.IsStaff(ctx, user.ID))
	require.False(t, svc.IsStaff(ctx, 999))
}
