package client

import (
	"context"
	"fmt"
	"time"

	"github.com/quillbill/quillbill/internal/account"
	"github.com/quillbill/quillbill/internal/entitlement"
	"github.com/quillbill/quillbill/internal/idgen"
	"github.com/quillbill/quillbill/internal/metrics"
	"github.com/quillbill/quillbill/internal/plan"
	"github.com/quillbill/quillbill/internal/traces"
)

// Service provides client book business logic. Creation runs the client
// count gate against a freshly computed count before inserting.
type Service struct {
	store    Store
	accounts account.Store
	checker  *entitlement.Service
}

// NewService creates a new client service.
func NewService(store Store, accounts account.Store, checker *entitlement.Service) *Service {
	return &Service{store: store, accounts: accounts, checker: checker}
}

// CreateInput carries the fields a new client can set.
type CreateInput struct {
	Name    string
	Email   string
	Company string
	Address string
	Notes   string
}

// Create adds a client after the count gate passes. On denial it returns
// ErrPlanLimit plus the verdict so the caller can render the upgrade prompt.
//
// The count check and the insert are not atomic: two concurrent creates can
// both pass and overshoot the cap by one. That is accepted — this is a
// self-service usage cap, not a security boundary.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Client, *entitlement.Result, error) {
	ctx, span := traces.StartSpan(ctx, "client.create", traces.UserID(userID))
	defer span.End()

	// Fail closed: no profile, no create.
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load plan profile: %w", err)
	}

	count, err := s.store.CountByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count clients: %w", err)
	}

	res := s.checker.CheckCountLimit(user.Plan, plan.LimitClients, count)
	metrics.ObserveEntitlementCheck("client.create", res.Allowed)
	span.SetAttributes(traces.CheckAllowed(res.Allowed))
	if !res.Allowed {
		return nil, &res, ErrPlanLimit
	}

	now := time.Now()
	c := &Client{
		ID:        idgen.WithPrefix("cli_"),
		UserID:    userID,
		Name:      in.Name,
		Email:     in.Email,
		Company:   in.Company,
		Address:   in.Address,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, &res, nil
}

// Get returns a client owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*Client, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrClientNotFound
	}
	return c, nil
}

// List returns all clients a user owns.
func (s *Service) List(ctx context.Context, userID string) ([]*Client, error) {
	return s.store.ListByUser(ctx, userID)
}

// Update modifies a client owned by userID.
func (s *Service) Update(ctx context.Context, userID string, c *Client) error {
	existing, err := s.Get(ctx, userID, c.ID)
	if err != nil {
		return err
	}
	c.UserID = existing.UserID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	return s.store.Update(ctx, c)
}

// Delete removes a client owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
