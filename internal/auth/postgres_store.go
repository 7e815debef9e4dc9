package auth

import (
	"context"
	"database/sql"
)

// PostgresStore persists API tokens in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed auth store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Token) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO api_tokens (id, hash, user_id, name, created_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.Hash, t.UserID, t.Name, t.CreatedAt, t.ExpiresAt, t.Revoked)
	return err
}

func (p *PostgresStore) GetByHash(ctx context.Context, hash string) (*Token, error) {
	t := &Token{}
	var expiresAt, lastUsed sql.NullTime

	err := p.db.QueryRowContext(ctx, `
		SELECT id, hash, user_id, name, created_at, last_used, expires_at, revoked
		FROM api_tokens WHERE hash = $1
		  AND revoked = FALSE
		  AND (expires_at IS NULL OR expires_at > NOW())
	`, hash).Scan(
		&t.ID, &t.Hash, &t.UserID, &t.Name,
		&t.CreatedAt, &lastUsed, &expiresAt, &t.Revoked,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	if lastUsed.Valid {
		t.LastUsed = lastUsed.Time
	}
	return t, nil
}

func (p *PostgresStore) GetByUser(ctx context.Context, userID string) ([]*Token, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, hash, user_id, name, created_at, last_used, expires_at, revoked
		FROM api_tokens WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var toks []*Token
	for rows.Next() {
		t := &Token{}
		var expiresAt, lastUsed sql.NullTime

		if err := rows.Scan(
			&t.ID, &t.Hash, &t.UserID, &t.Name,
			&t.CreatedAt, &lastUsed, &expiresAt, &t.Revoked,
		); err != nil {
			return nil, err
		}

		if expiresAt.Valid {
			t.ExpiresAt = &expiresAt.Time
		}
		if lastUsed.Valid {
			t.LastUsed = lastUsed.Time
		}
		toks = append(toks, t)
	}
	return toks, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, t *Token) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE api_tokens SET last_used = $1, revoked = $2 WHERE id = $3
	`, t.LastUsed, t.Revoked, t.ID)
	return err
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE id = $1`, id)
	return err
}

var _ Store = (*PostgresStore)(nil)
