package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the SQLite-backed Store.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the snapshot database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// received is stored as Unix milliseconds so ORDER BY sorts
	// chronologically regardless of text formatting.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL DEFAULT '',
			recipient TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			received INTEGER NOT NULL,
			read INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_received ON messages(received);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}

	return &DB{db: db}, nil
}

func (d *DB) Upsert(ctx context.Context, m Message) error {
	read := 0
	if m.Read {
		read = 1
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender, recipient, subject, body, received, read)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sender = excluded.sender,
			recipient = excluded.recipient,
			subject = excluded.subject,
			body = excluded.body,
			received = excluded.received,
			read = excluded.read
	`, m.ID, m.Sender, m.To, m.Subject, m.Body, m.Received.UTC().UnixMilli(), read)
	if err != nil {
		return fmt.Errorf("upsert message %s: %w", m.ID, err)
	}
	return nil
}

func (d *DB) Recent(ctx context.Context, limit int) ([]Message, error) {
	q := `SELECT id, sender, recipient, subject, body, received, read
		FROM messages ORDER BY received DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var recv int64
		var read int
		if err := rows.Scan(&m.ID, &m.Sender, &m.To, &m.Subject, &m.Body, &recv, &read); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Received = time.UnixMilli(recv).UTC()
		m.Read = read != 0
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func (d *DB) SetRead(ctx context.Context, id string, read bool) error {
	val := 0
	if read {
		val = 1
	}
	if _, err := d.db.ExecContext(ctx, `UPDATE messages SET read = ? WHERE id = ?`, val, id); err != nil {
		return fmt.Errorf("update read flag for %s: %w", id, err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

var _ Store = (*DB)(nil)
