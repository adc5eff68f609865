package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/regatta/internal/domain/event"
	"github.com/okian/regatta/internal/domain/eventlog"
	_ "modernc.org/sqlite"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS race_events (
	log_id       TEXT    NOT NULL,
	seq          INTEGER NOT NULL,
	event_id     TEXT    NOT NULL,
	logical_time INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	author       TEXT    NOT NULL,
	pass_id      INTEGER NOT NULL,
	competitors  TEXT    NOT NULL,
	event_type   TEXT    NOT NULL,
	payload      TEXT    NOT NULL,
	revoked      INTEGER NOT NULL,
	PRIMARY KEY (log_id, seq)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_race_events_event ON race_events(log_id, event_id);
`

// Archive persists race logs to a single SQLite file. Rows keep the physical
// append order as seq, so a restored log replays exactly as it was recorded.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens the archive at path and creates the schema if missing.
func OpenArchive(path string) (*Archive, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("archive path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(archiveSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// SaveLog replaces the archived rows for one log with the given snapshot.
// The whole write happens in a single transaction.
func (a *Archive) SaveLog(ctx context.Context, logID string, stored []eventlog.StoredEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save log: %w", err)
	}
	if a == nil || a.db == nil {
		return ErrArchiveClosed
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM race_events WHERE log_id = ?", logID); err != nil {
		return fmt.Errorf("clear log %s: %w", logID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO race_events
	(log_id, seq, event_id, logical_time, created_at, author, pass_id, competitors, event_type, payload, revoked)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for seq, se := range stored {
		typ, body, err := event.MarshalPayload(se.Event.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload %s: %w", se.Event.ID, err)
		}
		competitors, err := json.Marshal(se.Event.Competitors)
		if err != nil {
			return fmt.Errorf("marshal competitors %s: %w", se.Event.ID, err)
		}
		revoked := 0
		if se.Revoked {
			revoked = 1
		}
		if _, err := stmt.ExecContext(ctx,
			logID,
			seq,
			se.Event.ID,
			se.Event.LogicalTime.UnixNano(),
			se.Event.CreatedAt.UnixNano(),
			se.Event.Author,
			se.Event.PassID,
			string(competitors),
			string(typ),
			string(body),
			revoked,
		); err != nil {
			return fmt.Errorf("insert event %s: %w", se.Event.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadLog returns the archived snapshot for one log in physical append order.
// An unknown log id yields an empty snapshot, not an error.
func (a *Archive) LoadLog(ctx context.Context, logID string) ([]eventlog.StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load log: %w", err)
	}
	if a == nil || a.db == nil {
		return nil, ErrArchiveClosed
	}

	rows, err := a.db.QueryContext(ctx, `
SELECT event_id, logical_time, created_at, author, pass_id, competitors, event_type, payload, revoked
FROM race_events WHERE log_id = ? ORDER BY seq`, logID)
	if err != nil {
		return nil, fmt.Errorf("query log %s: %w", logID, err)
	}
	defer rows.Close()

	var out []eventlog.StoredEvent
	for rows.Next() {
		var (
			id, author, competitorsJSON, typ, body string
			logicalNS, createdNS                   int64
			passID, revoked                        int
		)
		if err := rows.Scan(&id, &logicalNS, &createdNS, &author, &passID, &competitorsJSON, &typ, &body, &revoked); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		payload, err := event.UnmarshalPayload(event.Type(typ), []byte(body))
		if err != nil {
			return nil, fmt.Errorf("unmarshal payload %s: %w", id, err)
		}
		var competitors []string
		if err := json.Unmarshal([]byte(competitorsJSON), &competitors); err != nil {
			return nil, fmt.Errorf("unmarshal competitors %s: %w", id, err)
		}

		out = append(out, eventlog.StoredEvent{
			Event: event.Event{
				ID:          id,
				LogicalTime: time.Unix(0, logicalNS).UTC(),
				CreatedAt:   time.Unix(0, createdNS).UTC(),
				Author:      author,
				PassID:      passID,
				Competitors: competitors,
				Payload:     payload,
			},
			Revoked: revoked != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log %s: %w", logID, err)
	}
	return out, nil
}

// LogIDs lists the archived log ids in lexical order.
func (a *Archive) LogIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("log ids: %w", err)
	}
	if a == nil || a.db == nil {
		return nil, ErrArchiveClosed
	}

	rows, err := a.db.QueryContext(ctx, "SELECT DISTINCT log_id FROM race_events ORDER BY log_id")
	if err != nil {
		return nil, fmt.Errorf("query log ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan log id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log ids: %w", err)
	}
	return ids, nil
}
