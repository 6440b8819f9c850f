// Package sqlite implements a durable event log on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/eventlog"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	stream_type TEXT NOT NULL,
	stream_id   TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	name        TEXT NOT NULL,
	data        BLOB NOT NULL,
	recorded    INTEGER NOT NULL,
	PRIMARY KEY (stream_type, stream_id, seq)
);
`

// Log persists event streams in a SQLite database.
type Log struct {
	sqlDB *sql.DB
}

var _ eventlog.Log = &Log{}

// New opens the SQLite event log named by the configuration, creating the
// file and schema when absent.
func New(cfg config.EventLog) (eventlog.Log, error) {
	return Open(cfg.Path)
}

// Open opens a SQLite event log and applies the schema.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, fmt.Errorf("event log path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o750); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping event log: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply event log schema: %w", err)
	}
	return &Log{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (l *Log) Close() error {
	if l == nil || l.sqlDB == nil {
		return nil
	}
	return l.sqlDB.Close()
}

// Append adds events to a stream after checking the expected version.  The
// (stream, seq) primary key backstops the version check against concurrent
// writers in other processes.
func (l *Log) Append(
	ctx context.Context,
	streamType, streamID string,
	expectedVersion int64,
	events []eventlog.Event,
) ([]eventlog.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := l.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin append", err)
	}
	defer func() { _ = tx.Rollback() }()
	var version int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE stream_type = ? AND stream_id = ?`,
		streamType, streamID)
	if err := row.Scan(&version); err != nil {
		return nil, unavailable("read stream version", err)
	}
	if version != expectedVersion {
		return nil, eventlog.ErrVersionConflict
	}
	now := time.Now()
	stored := make([]eventlog.Event, 0, len(events))
	for i, ev := range events {
		ev.StreamType = streamType
		ev.StreamID = streamID
		ev.Sequence = expectedVersion + int64(i) + 1
		ev.Recorded = now
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (stream_type, stream_id, seq, name, data, recorded)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			ev.StreamType, ev.StreamID, ev.Sequence, ev.Name, ev.Data, ev.Recorded.UnixMilli())
		if err != nil {
			if isConstraintErr(err) {
				return nil, eventlog.ErrVersionConflict
			}
			return nil, unavailable("insert event", err)
		}
		stored = append(stored, ev)
	}
	if err := tx.Commit(); err != nil {
		if isConstraintErr(err) {
			return nil, eventlog.ErrVersionConflict
		}
		return nil, unavailable("commit append", err)
	}
	return stored, nil
}

// Read returns the full event sequence for one stream, oldest first.
func (l *Log) Read(
	ctx context.Context, streamType, streamID string,
) ([]eventlog.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := l.sqlDB.QueryContext(ctx,
		`SELECT seq, name, data, recorded FROM events
		 WHERE stream_type = ? AND stream_id = ? ORDER BY seq`,
		streamType, streamID)
	if err != nil {
		return nil, unavailable("read stream", err)
	}
	defer rows.Close()
	var events []eventlog.Event
	for rows.Next() {
		ev := eventlog.Event{StreamType: streamType, StreamID: streamID}
		var recorded int64
		if err := rows.Scan(&ev.Sequence, &ev.Name, &ev.Data, &recorded); err != nil {
			return nil, unavailable("scan event", err)
		}
		ev.Recorded = time.UnixMilli(recorded).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read stream", err)
	}
	return events, nil
}

// VisitAll walks every stored event grouped by stream.
func (l *Log) VisitAll(ctx context.Context, visit func(eventlog.Event) bool) error {
	rows, err := l.sqlDB.QueryContext(ctx,
		`SELECT stream_type, stream_id, seq, name, data, recorded FROM events
		 ORDER BY stream_type, stream_id, seq`)
	if err != nil {
		return unavailable("visit events", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var ev eventlog.Event
		var recorded int64
		if err := rows.Scan(&ev.StreamType, &ev.StreamID, &ev.Sequence,
			&ev.Name, &ev.Data, &recorded); err != nil {
			return unavailable("scan event", err)
		}
		ev.Recorded = time.UnixMilli(recorded).UTC()
		if !visit(ev) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return unavailable("visit events", err)
	}
	return nil
}

func isConstraintErr(err error) bool {
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3lib.SQLITE_CONSTRAINT ||
			code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, eventlog.ErrUnavailable, err)
}
