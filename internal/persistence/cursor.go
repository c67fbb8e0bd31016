// Package persistence contains helpers shared by the audit-log repository
// and its readers.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// AuditEntry is one persisted roster event.
type AuditEntry struct {
	EventID    string
	EventType  string
	Activity   string
	Email      string
	OccurredAt time.Time
	RecordedAt time.Time
}

// Cursor marks the last entry of a history page. Pages are ordered by
// (OccurredAt, EventID) descending.
type Cursor struct {
	OccurredAt time.Time
	EventID    string
}

// CursorAfter returns the cursor pointing past entry.
func CursorAfter(entry AuditEntry) *Cursor {
	return &Cursor{OccurredAt: entry.OccurredAt, EventID: entry.EventID}
}

// EncodeCursor serialises the cursor to a string token.
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", c.OccurredAt.UTC().Format(time.RFC3339Nano), c.EventID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses the encoded cursor token. An empty token yields a nil cursor.
func DecodeCursor(token string) (*Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, err
	}
	return &Cursor{OccurredAt: ts, EventID: parts[1]}, nil
}
