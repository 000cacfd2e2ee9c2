// Package sqlstore persists observability events to a SQLite database so bus
// and runtime activity can be inspected after the process exits.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tailored-agentic-units/agentbus/observability"
)

const schema = `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		level INTEGER NOT NULL,
		source TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		data TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

// Store is an Observer that writes every event as one row. Write failures
// are logged and dropped; they never reach the emitter.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the database at path. Parent directories are created
// if needed.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sqlstore")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) OnEvent(ctx context.Context, event observability.Event) {
	var data []byte
	if len(event.Data) > 0 {
		encoded, err := json.Marshal(event.Data)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to encode event data",
				slog.String("type", string(event.Type)),
				slog.String("error", err.Error()),
			)
		} else {
			data = encoded
		}
	}

	_, err := s.db.ExecContext(
		context.WithoutCancel(ctx),
		`INSERT INTO events (type, level, source, timestamp, data) VALUES (?, ?, ?, ?, ?)`,
		string(event.Type),
		int(event.Level),
		event.Source,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		string(data),
	)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to persist event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// Recent returns up to limit events in chronological order, optionally
// restricted to a single event type.
func (s *Store) Recent(ctx context.Context, eventType observability.EventType, limit int) ([]observability.Event, error) {
	query := `SELECT type, level, source, timestamp, data FROM events`
	args := []any{}
	if eventType != "" {
		query += ` WHERE type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []observability.Event
	for rows.Next() {
		var (
			typ, source, ts string
			level           int
			data            sql.NullString
		)
		if err := rows.Scan(&typ, &level, &source, &ts, &data); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		timestamp, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}

		event := observability.Event{
			Type:      observability.EventType(typ),
			Level:     observability.Level(level),
			Source:    source,
			Timestamp: timestamp,
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &event.Data); err != nil {
				return nil, fmt.Errorf("decoding event data: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	for l, r := 0, len(events)-1; l < r; l, r = l+1, r-1 {
		events[l], events[r] = events[r], events[l]
	}
	return events, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
