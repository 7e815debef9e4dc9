package account

import "context"

// Store persists user accounts.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByStripeCustomer(ctx context.Context, customerID string) (*User, error)
	Update(ctx context.Context, u *User) error
}
