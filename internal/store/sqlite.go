package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/onelane/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// An in-memory database lives per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev model.Event) (*model.JournalEntry, error) {
	s.logger.Debug("sql", "op", "insert", "table", "events", "seq", ev.Seq, "type", ev.Type)

	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (seq, type, vehicle_id, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		int64(ev.Seq), string(ev.Type), ev.VehicleID(), string(payload), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &model.JournalEntry{
		ID:        id,
		Seq:       ev.Seq,
		Type:      ev.Type,
		VehicleID: ev.VehicleID(),
		Payload:   ev,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, opts model.ListOptions) ([]*model.JournalEntry, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "events", "limit", opts.Limit, "offset", opts.Offset, "type", opts.Type)
	opts.Clamp()

	where := ""
	var args []any
	if opts.Type != "" {
		where = " WHERE type = ?"
		args = append(args, opts.Type)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, type, vehicle_id, payload, created_at FROM events`+where+
			` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		var seq int64
		var typ, payload, createdAt string
		if err := rows.Scan(&e.ID, &seq, &typ, &e.VehicleID, &payload, &createdAt); err != nil {
			return nil, 0, err
		}
		e.Seq = uint64(seq)
		e.Type = model.EventType(typ)
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, 0, fmt.Errorf("unmarshal event %d: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}
