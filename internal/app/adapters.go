package app

import (
	"context"

	"github.com/mitienda/mitienda/internal/auth"
	"github.com/mitienda/mitienda/internal/checkout"
)

// ProfileAdapter exposes stored account details as checkout form
// defaults without coupling the auth package to checkout types.
type ProfileAdapter struct {
	users *auth.Service
}

// NewProfileAdapter builds a ProfileAdapter.
func NewProfileAdapter(users *auth.Service) *ProfileAdapter {
	return &ProfileAdapter{users: users}
}

// ShippingDefaults prefills the shipping form from the user's profile.
func (a *ProfileAdapter) ShippingDefaults(ctx context.Context, userID int64) (checkout.ShippingInfo, error) {
	user, err := a.users.GetUser(ctx, userID)
	if err != nil {
		return checkout.ShippingInfo{}, err
	}
	return checkout.ShippingInfo{
		FullName: user.FullName,
		Email:    user.Email,
		Phone:    user.Phone,
		Address1: user.Address,
		City:     user.City,
	}, nil
}

var _ checkout.ProfilePort = (*ProfileAdapter)(nil)
