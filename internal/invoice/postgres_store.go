package invoice

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists invoices in PostgreSQL. Line items and the recurring
// schedule are stored as JSONB columns.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed invoice store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const invoiceColumns = `id, user_id, number, seq, year, client_id, client_name,
	client_email, status, items, currency, notes, template_id, issue_date,
	due_date, paid_at, recurring, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, inv *Invoice) error {
	items, recurring, err := marshalJSONCols(inv)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		inv.ID, inv.UserID, inv.Number, inv.Seq, inv.Year, nullString(inv.ClientID),
		inv.ClientName, inv.ClientEmail, string(inv.Status), items, inv.Currency,
		inv.Notes, inv.TemplateID, inv.IssueDate, inv.DueDate, inv.PaidAt,
		recurring, inv.CreatedAt, inv.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Invoice, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, ErrInvoiceNotFound
	}
	return inv, err
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID string, before time.Time, beforeID string, limit int) ([]*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id = $1`
	args := []interface{}{userID}
	if !before.IsZero() {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, before, beforeID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CountForMonth(ctx context.Context, userID string, ref time.Time) (int, error) {
	ref = ref.UTC()
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM invoices
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`,
		userID, start, end).Scan(&count)
	return count, err
}

func (p *PostgresStore) NextSequence(ctx context.Context, userID string, year int) (int, error) {
	var max int
	err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM invoices
		WHERE user_id = $1 AND year = $2`, userID, year).Scan(&max)
	return max + 1, err
}

func (p *PostgresStore) ListRecurringDue(ctx context.Context, now time.Time) ([]*Invoice, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE recurring IS NOT NULL
		  AND (recurring->>'nextDate')::timestamptz <= $1
		ORDER BY (recurring->>'nextDate')::timestamptz`, now)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, inv *Invoice) error {
	items, recurring, err := marshalJSONCols(inv)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE invoices SET client_id = $1, client_name = $2, client_email = $3,
			status = $4, items = $5, currency = $6, notes = $7, template_id = $8,
			issue_date = $9, due_date = $10, paid_at = $11, recurring = $12,
			updated_at = $13
		WHERE id = $14`,
		nullString(inv.ClientID), inv.ClientName, inv.ClientEmail,
		string(inv.Status), items, inv.Currency, inv.Notes, inv.TemplateID,
		inv.IssueDate, inv.DueDate, inv.PaidAt, recurring, inv.UpdatedAt, inv.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func marshalJSONCols(inv *Invoice) ([]byte, []byte, error) {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal line items: %w", err)
	}
	var recurring []byte
	if inv.Recurring != nil {
		recurring, err = json.Marshal(inv.Recurring)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal recurring schedule: %w", err)
		}
	}
	return items, recurring, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	inv := &Invoice{}
	var (
		clientID  sql.NullString
		status    string
		items     []byte
		recurring []byte
		paidAt    sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.UserID, &inv.Number, &inv.Seq, &inv.Year,
		&clientID, &inv.ClientName, &inv.ClientEmail, &status, &items,
		&inv.Currency, &inv.Notes, &inv.TemplateID, &inv.IssueDate, &inv.DueDate,
		&paidAt, &recurring, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.ClientID = clientID.String
	inv.Status = Status(status)
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal line items: %w", err)
	}
	if len(recurring) > 0 {
		inv.Recurring = &RecurringSchedule{}
		if err := json.Unmarshal(recurring, inv.Recurring); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recurring schedule: %w", err)
		}
	}
	if paidAt.Valid {
		t := paidAt.Time
		inv.PaidAt = &t
	}
	return inv, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Store = (*PostgresStore)(nil)
