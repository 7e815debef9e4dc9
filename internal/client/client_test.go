package client

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillbill/quillbill/internal/account"
	"github.com/quillbill/quillbill/internal/entitlement"
	"github.com/quillbill/quillbill/internal/plan"
)

func newTestService(t *testing.T, userPlan string) (*Service, string) {
	t.Helper()
	accounts := account.NewMemoryStore()
	user := &account.User{
		ID:    "usr_test",
		Email: "freelancer@example.com",
		Name:  "Test Freelancer",
		Plan:  userPlan,
	}
	require.NoError(t, accounts.Create(context.Background(), user))

	checker := entitlement.NewService(plan.DefaultCatalog())
	return NewService(NewMemoryStore(), accounts, checker), user.ID
}

func TestService_CreateAndGet(t *testing.T) {
	svc, userID := newTestService(t, "free")
	ctx := context.Background()

	created, res, err := svc.Create(ctx, userID, CreateInput{
		Name:  "Acme Corp",
		Email: "billing@acme.example",
	})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, userID, created.UserID)

	got, err := svc.Get(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Name)
}

func TestService_CreateDeniedAtFreeCap(t *testing.T) {
	svc, userID := newTestService(t, "free")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := svc.Create(ctx, userID, CreateInput{Name: fmt.Sprintf("Client %d", i)})
		require.NoError(t, err)
	}

	created, res, err := svc.Create(ctx, userID, CreateInput{Name: "One Too Many"})
	assert.ErrorIs(t, err, ErrPlanLimit)
	assert.Nil(t, created)
	require.NotNil(t, res)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "3")
	assert.Equal(t, plan.TierPro, res.UpgradeTo)

	list, err := svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestService_ProIsUncapped(t *testing.T) {
	svc, userID := newTestService(t, "pro")
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, res, err := svc.Create(ctx, userID, CreateInput{Name: fmt.Sprintf("Client %d", i)})
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
}

func TestService_UpgradeLiftsCapImmediately(t *testing.T) {
	accounts := account.NewMemoryStore()
	user := &account.User{ID: "usr_up", Email: "up@example.com", Plan: "free"}
	require.NoError(t, accounts.Create(context.Background(), user))

	checker := entitlement.NewService(plan.DefaultCatalog())
	svc := NewService(NewMemoryStore(), accounts, checker)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := svc.Create(ctx, user.ID, CreateInput{Name: fmt.Sprintf("Client %d", i)})
		require.NoError(t, err)
	}
	_, _, err := svc.Create(ctx, user.ID, CreateInput{Name: "Blocked"})
	require.ErrorIs(t, err, ErrPlanLimit)

	// Flip the plan the way the billing webhook would; the next check must
	// see it without any cache invalidation step.
	user.Plan = "pro"
	user.SubscriptionStatus = "active"
	require.NoError(t, accounts.Update(ctx, user))

	_, res, err := svc.Create(ctx, user.ID, CreateInput{Name: "Now Allowed"})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestService_OwnershipEnforced(t *testing.T) {
	svc, userID := newTestService(t, "free")
	ctx := context.Background()

	created, _, err := svc.Create(ctx, userID, CreateInput{Name: "Mine"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "usr_other", created.ID)
	assert.ErrorIs(t, err, ErrClientNotFound)

	err = svc.Delete(ctx, "usr_other", created.ID)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestService_Update(t *testing.T) {
	svc, userID := newTestService(t, "free")
	ctx := context.Background()

	created, _, err := svc.Create(ctx, userID, CreateInput{Name: "Before"})
	require.NoError(t, err)

	created.Name = "After"
	require.NoError(t, svc.Update(ctx, userID, created))

	got, err := svc.Get(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Name)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestMemoryStore_CountByUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		owner := "usr_a"
		if i%2 == 1 {
			owner = "usr_b"
		}
		require.NoError(t, store.Create(ctx, &Client{ID: fmt.Sprintf("cli_%d", i), UserID: owner}))
	}

	count, err := store.CountByUser(ctx, "usr_a")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
