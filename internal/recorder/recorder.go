// Package recorder keeps a log of device signals and zone pushes in SQLite
// so sessions can be replayed through the signal parser later.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/presence.report/internal/device"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/signal"
)

// DB is the recorder database.
type DB struct {
	*sql.DB

	Metrics *monitoring.Metrics
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	db := &DB{DB: sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Entry is one recorded signal.
type Entry struct {
	ID     int64         `json:"id"`
	Source string        `json:"source"`
	Rule   string        `json:"rule,omitempty"`
	At     time.Time     `json:"at"`
	Signal signal.Signal `json:"signal"`
}

// Record stores one signal received from source.
func (db *DB) Record(ctx context.Context, source string, sig signal.Signal, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO signals (source, identifier, value, unit, rule, ts_unix_nanos) VALUES (?, ?, ?, ?, ?, ?)`,
		source, sig.Identifier, sig.Value, sig.Unit, signal.Classify(sig.Identifier), at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record signal: %w", err)
	}
	db.Metrics.SignalRecorded()
	return nil
}

// Query selects recorded signals. Zero times leave that end open; Limit
// <= 0 returns everything.
type Query struct {
	Source string
	// Prefix matches the entity object id, e.g. "everything_presence_lite_ab12".
	Prefix string
	From   time.Time
	To     time.Time
	Limit  int
}

// Signals returns the matching entries in recording order.
func (db *DB) Signals(ctx context.Context, q Query) ([]Entry, error) {
	var where []string
	var args []any
	if q.Source != "" {
		where = append(where, "source = ?")
		args = append(args, q.Source)
	}
	if q.Prefix != "" {
		where = append(where, "identifier LIKE ? ESCAPE '\\'")
		args = append(args, "%."+escapeLike(strings.TrimSuffix(q.Prefix, "_"))+"\\_%")
	}
	if !q.From.IsZero() {
		where = append(where, "ts_unix_nanos >= ?")
		args = append(args, q.From.UnixNano())
	}
	if !q.To.IsZero() {
		where = append(where, "ts_unix_nanos <= ?")
		args = append(args, q.To.UnixNano())
	}

	query := `SELECT signal_id, source, identifier, value, unit, rule, ts_unix_nanos FROM signals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts_unix_nanos, signal_id"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var nanos int64
		if err := rows.Scan(&e.ID, &e.Source, &e.Signal.Identifier, &e.Signal.Value, &e.Signal.Unit, &e.Rule, &nanos); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, nanos).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Sources lists the distinct signal sources.
func (db *DB) Sources(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT source FROM signals ORDER BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Push is one recorded zone push.
type Push struct {
	ID           int64             `json:"id"`
	RoomID       string            `json:"room_id"`
	EntityPrefix string            `json:"entity_prefix"`
	Result       device.PushResult `json:"result"`
	At           time.Time         `json:"at"`
}

// RecordPush stores the outcome of a zone push.
func (db *DB) RecordPush(ctx context.Context, roomID, prefix string, res device.PushResult, at time.Time) error {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []device.PushWarning{}
	}
	b, err := json.Marshal(warnings)
	if err != nil {
		return err
	}
	ok := 0
	if res.OK {
		ok = 1
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO pushes (room_id, entity_prefix, ok, warnings_json, ts_unix_nanos) VALUES (?, ?, ?, ?, ?)`,
		roomID, prefix, ok, string(b), at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record push: %w", err)
	}
	return nil
}

// Pushes returns the most recent pushes for a room, newest first.
func (db *DB) Pushes(ctx context.Context, roomID string, limit int) ([]Push, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT push_id, room_id, entity_prefix, ok, warnings_json, ts_unix_nanos
		   FROM pushes WHERE room_id = ? ORDER BY ts_unix_nanos DESC, push_id DESC LIMIT ?`,
		roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Push
	for rows.Next() {
		var p Push
		var ok int
		var warnings string
		var nanos int64
		if err := rows.Scan(&p.ID, &p.RoomID, &p.EntityPrefix, &ok, &warnings, &nanos); err != nil {
			return nil, err
		}
		p.Result.OK = ok == 1
		if err := json.Unmarshal([]byte(warnings), &p.Result.Warnings); err != nil {
			return nil, fmt.Errorf("push %d warnings: %w", p.ID, err)
		}
		if len(p.Result.Warnings) == 0 {
			p.Result.Warnings = nil
		}
		p.At = time.Unix(0, nanos).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
