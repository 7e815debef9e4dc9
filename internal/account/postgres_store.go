package account

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed account store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, email, name, business_name, business_address, tax_id, currency,
	plan, subscription_status, current_period_end, stripe_customer_id, stripe_subscription_id,
	created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, u *User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		u.ID, u.Email, u.Name, u.BusinessName, u.BusinessAddress, u.TaxID, u.Currency,
		u.Plan, u.SubscriptionStatus, u.CurrentPeriodEnd, u.StripeCustomerID, u.StripeSubscriptionID,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

func (p *PostgresStore) GetByStripeCustomer(ctx context.Context, customerID string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID))
}

func (p *PostgresStore) Update(ctx context.Context, u *User) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET name = $1, business_name = $2, business_address = $3, tax_id = $4,
			currency = $5, plan = $6, subscription_status = $7, current_period_end = $8,
			stripe_customer_id = $9, stripe_subscription_id = $10, updated_at = $11
		WHERE id = $12`,
		u.Name, u.BusinessName, u.BusinessAddress, u.TaxID,
		u.Currency, u.Plan, u.SubscriptionStatus, u.CurrentPeriodEnd,
		u.StripeCustomerID, u.StripeSubscriptionID, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	var (
		periodEnd sql.NullTime
		status    sql.NullString
		custID    sql.NullString
		subID     sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.BusinessName, &u.BusinessAddress,
		&u.TaxID, &u.Currency, &u.Plan, &status, &periodEnd, &custID, &subID,
		&u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if periodEnd.Valid {
		u.CurrentPeriodEnd = &periodEnd.Time
	}
	u.SubscriptionStatus = status.String
	u.StripeCustomerID = custID.String
	u.StripeSubscriptionID = subID.String
	return u, nil
}

var _ Store = (*PostgresStore)(nil)
