// Package pagination implements the keyset cursors used by the listing
// endpoints: task request feeds, open task browsing, payment history,
// conversations, and the notification feed. All of those lists order by
// created_at DESC with the row id as tiebreaker, so a cursor is that
// pair encoded as opaque base64.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size when a client sends no limit.
	DefaultLimit = 25
	// MaxLimit caps the page size regardless of what the client asks for.
	MaxLimit = 100
)

// Params carries the raw limit and cursor from a listing request.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the decoded keyset position: the created_at and id of the
// last row on the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps a client-supplied limit into [1, MaxLimit],
// substituting DefaultLimit for zero or negative values.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer is the normalized limit plus one sentinel row. Repos
// fetch the extra row to learn whether a next page exists without a
// second count query.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor serializes a keyset position into the opaque string
// handed to clients.
func EncodeCursor(cursor Cursor) string {
	position := fmt.Sprintf("%s|%s", cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID.String())
	return base64.StdEncoding.EncodeToString([]byte(position))
}

// ParseCursor decodes a client cursor. An empty string means the first
// page and yields a nil cursor without error.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	rowID, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{
		CreatedAt: createdAt,
		ID:        rowID,
	}, nil
}
