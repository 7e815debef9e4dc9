// Package client manages the client book: the people and companies a user
// invoices. Creation is gated by the tier's client count limit.
package client

import (
	"errors"
	"time"
)

// Errors
var (
	ErrClientNotFound = errors.New("client: not found")
	ErrPlanLimit      = errors.New("client: plan limit reached")
)

// Client represents one invoice recipient owned by a user.
type Client struct {
	ID      string `json:"id"`
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
