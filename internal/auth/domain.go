package auth

import "time"

// User represents a customer or staff account. The address fields are
// optional defaults used to prefill the checkout form.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
	Address      string
	City         string
	IsStaff      bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
