package client

import (
	"context"
	"database/sql"
)

// PostgresStore persists clients in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed client store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const clientColumns = `id, user_id, name, email, company, address, notes, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, c *Client) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.UserID, c.Name, c.Email, c.Company, c.Address, c.Notes,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Client, error) {
	return p.scanClient(p.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*Client, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Client
	for rows.Next() {
		c := &Client{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Company,
			&c.Address, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM clients WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (p *PostgresStore) Update(ctx context.Context, c *Client) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE clients SET name = $1, email = $2, company = $3, address = $4,
			notes = $5, updated_at = $6
		WHERE id = $7`,
		c.Name, c.Email, c.Company, c.Address, c.Notes, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (p *PostgresStore) scanClient(row *sql.Row) (*Client, error) {
	c := &Client{}
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Company,
		&c.Address, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

var _ Store = (*PostgresStore)(nil)
