package client

import "context"

// Store persists clients.
type Store interface {
	Create(ctx context.Context, c *Client) error
	Get(ctx context.Context, id string) (*Client, error)
	ListByUser(ctx context.Context, userID string) ([]*Client, error)
	// CountByUser returns the total number of clients a user owns.
	// Recomputed on every entitlement check; never cached.
	CountByUser(ctx context.Context, userID string) (int, error)
	Update(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id string) error
}
