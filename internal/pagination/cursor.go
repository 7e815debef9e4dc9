// Package pagination implements keyset cursors for list endpoints.
//
// A cursor is an opaque token that pins a position in a (created_at, id)
// ordered result set, so pages stay stable while new rows are inserted at
// the head. The stores translate a decoded cursor into a
// `(created_at, id) < ($before, $beforeID)` predicate.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor is returned for tokens this process did not mint.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is a decoded position in a result set.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Keyset returns the tuple for the store's keyset predicate.
func (c *Cursor) Keyset() (time.Time, string) {
	return c.CreatedAt, c.ID
}

// Encode mints an opaque token for the row at (createdAt, id).
func Encode(createdAt time.Time, id string) string {
	raw := strconv.FormatInt(createdAt.UnixNano(), 10) + "|" + id
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token. An empty token decodes to nil (first page).
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanosStr, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(nanosStr, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// ComputePage trims an over-fetched slice (limit+1 rows) down to the page
// and mints the next cursor from the last row kept. extractKey pulls the
// (createdAt, id) ordering key out of an item.
func ComputePage[T any](items []T, limit int, extractKey func(T) (time.Time, string)) (page []T, next string, hasMore bool) {
	if len(items) <= limit {
		return items, "", false
	}
	page = items[:limit]
	createdAt, id := extractKey(page[len(page)-1])
	return page, Encode(createdAt, id), true
}
