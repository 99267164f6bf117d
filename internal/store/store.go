// Package store keeps the local snapshot of fetched mail that rules are
// evaluated against.
package store

import (
	"context"
	"time"
)

// Message is one stored mail message. Received is always UTC; text fields
// are empty strings when the original message lacked them.
type Message struct {
	ID       string
	Sender   string
	To       string
	Subject  string
	Body     string
	Received time.Time
	Read     bool
}

// Store is the persistence surface the fetch and apply paths share.
type Store interface {
	// Upsert inserts the message or replaces the stored copy with the
	// same id.
	Upsert(ctx context.Context, m Message) error
	// Recent returns messages ordered by received time, newest first.
	// limit <= 0 returns everything.
	Recent(ctx context.Context, limit int) ([]Message, error)
	// SetRead updates the local read flag. A missing id is not an error.
	SetRead(ctx context.Context, id string, read bool) error
	Close() error
}
