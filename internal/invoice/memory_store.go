package invoice

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory invoice store for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices map[string]*Invoice // by ID
	seqs     map[string]int      // "userID/year" -> last issued sequence
}

// NewMemoryStore creates a new in-memory invoice store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invoices: make(map[string]*Invoice),
		seqs:     make(map[string]int),
	}
}

func seqKey(userID string, year int) string {
	return fmt.Sprintf("%s/%d", userID, year)
}

func (m *MemoryStore) Create(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := copyInvoice(inv)
	m.invoices[inv.ID] = cp
	if inv.Seq > m.seqs[seqKey(inv.UserID, inv.Year)] {
		m.seqs[seqKey(inv.UserID, inv.Year)] = inv.Seq
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	return copyInvoice(inv), nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string, before time.Time, beforeID string, limit int) ([]*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.UserID != userID {
			continue
		}
		if !before.IsZero() {
			if inv.CreatedAt.After(before) {
				continue
			}
			if inv.CreatedAt.Equal(before) && inv.ID >= beforeID {
				continue
			}
		}
		out = append(out, copyInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountForMonth(_ context.Context, userID string, ref time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref = ref.UTC()
	count := 0
	for _, inv := range m.invoices {
		if inv.UserID != userID {
			continue
		}
		created := inv.CreatedAt.UTC()
		if created.Year() == ref.Year() && created.Month() == ref.Month() {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) NextSequence(_ context.Context, userID string, year int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seqs[seqKey(userID, year)] + 1, nil
}

func (m *MemoryStore) ListRecurringDue(_ context.Context, now time.Time) ([]*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.Recurring != nil && !inv.Recurring.NextDate.After(now) {
			out = append(out, copyInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Recurring.NextDate.Before(out[j].Recurring.NextDate) })
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrInvoiceNotFound
	}
	m.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[id]; !ok {
		return ErrInvoiceNotFound
	}
	delete(m.invoices, id)
	return nil
}

func copyInvoice(inv *Invoice) *Invoice {
	cp := *inv
	cp.Items = append([]LineItem(nil), inv.Items...)
	if inv.Recurring != nil {
		r := *inv.Recurring
		cp.Recurring = &r
	}
	if inv.PaidAt != nil {
		t := *inv.PaidAt
		cp.PaidAt = &t
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
