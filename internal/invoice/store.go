package invoice

import (
	"context"
	"time"
)

// Store persists invoices.
type Store interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	// ListByUser returns invoices newest-first, starting after the cursor
	// position (both zero values mean from the top), up to limit entries.
	ListByUser(ctx context.Context, userID string, before time.Time, beforeID string, limit int) ([]*Invoice, error)
	// CountForMonth returns how many invoices the user created inside the
	// UTC calendar month containing ref. Recomputed on every entitlement
	// check; never cached.
	CountForMonth(ctx context.Context, userID string, ref time.Time) (int, error)
	// NextSequence returns the next per-user invoice sequence number for a
	// calendar year.
	NextSequence(ctx context.Context, userID string, year int) (int, error)
	// ListRecurringDue returns invoices whose recurring schedule has a next
	// date at or before now.
	ListRecurringDue(ctx context.Context, now time.Time) ([]*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, id string) error
}
