// Package auth provides API token authentication for QuillBill.
//
// Authentication model:
// - Public endpoints (signup, health, Stripe webhook): no auth required
// - Everything else requires a bearer token issued at signup
// - Tokens are random secrets; only a SHA-256 hash is stored
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Errors
var (
	ErrNoToken      = errors.New("auth: token required")
	ErrInvalidToken = errors.New("auth: invalid or expired token")
	ErrTokenNotFound = errors.New("auth: token not found")
)

// Token represents an issued API token.
type Token struct {
	ID        string     `json:"id"`
	Hash      string     `json:"-"` // SHA256 hash of the secret (stored)
	UserID    string     `json:"userId"`
	Name      string     `json:"name"` // Friendly name ("dashboard", "zapier", ...)
	CreatedAt time.Time  `json:"createdAt"`
	LastUsed  time.Time  `json:"lastUsed,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Revoked   bool       `json:"revoked"`
}

// Store persists API tokens.
type Store interface {
	Create(ctx context.Context, t *Token) error
	GetByHash(ctx context.Context, hash string) (*Token, error)
	GetByUser(ctx context.Context, userID string) ([]*Token, error)
	Update(ctx context.Context, t *Token) error
	Delete(ctx context.Context, id string) error
}

// Manager handles token issuance and validation.
type Manager struct {
	store Store
}

// NewManager creates a new auth manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Store exposes the backing store (handlers bind tokens to users directly).
func (m *Manager) Store() Store { return m.store }

// GenerateToken creates a new API token for a user.
// Returns the raw secret (shown once) and the stored metadata.
func (m *Manager) GenerateToken(ctx context.Context, userID, name string) (raw string, tok *Token, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, err
	}

	raw = "qb_" + hex.EncodeToString(b)

	tok = &Token{
		ID:        "tok_" + hex.EncodeToString(b[:8]),
		Hash:      hashToken(raw),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}

	if err := m.store.Create(ctx, tok); err != nil {
		return "", nil, err
	}

	return raw, tok, nil
}

// ValidateToken validates a raw token and returns its metadata.
func (m *Manager) ValidateToken(ctx context.Context, raw string) (*Token, error) {
	if raw == "" {
		return nil, ErrNoToken
	}

	raw = strings.TrimPrefix(raw, "Bearer ")
	raw = strings.TrimSpace(raw)

	if !strings.HasPrefix(raw, "qb_") {
		return nil, ErrInvalidToken
	}

	tok, err := m.store.GetByHash(ctx, hashToken(raw))
	if err != nil {
		return nil, ErrInvalidToken
	}

	if tok.Revoked {
		return nil, ErrInvalidToken
	}
	if tok.ExpiresAt != nil && time.Now().After(*tok.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	// Update last used (fire and forget)
	go func() {
		tok.LastUsed = time.Now()
		_ = m.store.Update(context.Background(), tok)
	}()

	return tok, nil
}

// ListTokens returns all tokens for a user.
func (m *Manager) ListTokens(ctx context.Context, userID string) ([]*Token, error) {
	return m.store.GetByUser(ctx, userID)
}

// RevokeToken revokes a token owned by the given user.
func (m *Manager) RevokeToken(ctx context.Context, tokenID, userID string) error {
	toks, err := m.store.GetByUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, t := range toks {
		if t.ID == tokenID {
			t.Revoked = true
			return m.store.Update(ctx, t)
		}
	}

	return ErrTokenNotFound
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
