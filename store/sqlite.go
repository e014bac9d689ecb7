package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zephyrtronium/livecalc"
	"github.com/zephyrtronium/livecalc/expressions"
)

// SchemaVersion is the version of the database layout.
const SchemaVersion = "1"

// SQLite is a SQLite-backed store.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens or creates a SQLite store at the given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			snapshot TEXT NOT NULL,
			updated TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS history (
			session TEXT NOT NULL,
			slot INTEGER NOT NULL,
			expr TEXT NOT NULL,
			degrees INTEGER NOT NULL,
			value TEXT NOT NULL,
			time TEXT NOT NULL,
			PRIMARY KEY (session, slot)
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}
	s := &SQLite{db: db}
	version, err := s.metadata("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}
	switch version {
	case "":
		if err := s.setMetadata("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	case SchemaVersion:
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) metadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *SQLite) setMetadata(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// SaveSnapshot stores a session snapshot, replacing any saved under id.
func (s *SQLite) SaveSnapshot(id string, snap livecalc.Snapshot) error {
	if err := checkID(id); err != nil {
		return err
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, snapshot, updated) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET snapshot = excluded.snapshot, updated = excluded.updated
	`, id, string(b), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// LoadSnapshot retrieves the snapshot saved under id.
func (s *SQLite) LoadSnapshot(id string) (livecalc.Snapshot, bool, error) {
	if err := checkID(id); err != nil {
		return livecalc.Snapshot{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var text string
	err := s.db.QueryRow("SELECT snapshot FROM sessions WHERE id = ?", id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return livecalc.Snapshot{}, false, nil
	}
	if err != nil {
		return livecalc.Snapshot{}, false, err
	}
	var snap livecalc.Snapshot
	if err := json.Unmarshal([]byte(text), &snap); err != nil {
		return livecalc.Snapshot{}, false, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return snap, true, nil
}

// Sessions lists saved session IDs, most recently saved first.
func (s *SQLite) Sessions() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT id FROM sessions ORDER BY updated DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// History returns the history of a session.
func (s *SQLite) History(id string) expressions.HistoryStore {
	return &sqliteHistory{s: s, id: id}
}

type sqliteHistory struct {
	s  *SQLite
	id string
}

func (h *sqliteHistory) AddEntry(ctx context.Context, e expressions.Entry) error {
	if err := checkID(h.id); err != nil {
		return err
	}
	expr, err := json.Marshal(e.Expr)
	if err != nil {
		return err
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	_, err = h.s.db.ExecContext(ctx, `
		INSERT INTO history (session, slot, expr, degrees, value, time) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session, slot) DO UPDATE SET
			expr = excluded.expr, degrees = excluded.degrees,
			value = excluded.value, time = excluded.time
	`, h.id, int64(e.Slot), string(expr), e.Degrees, e.Value, e.Time.UTC().Format(time.RFC3339Nano))
	return err
}

func (h *sqliteHistory) UpdateEntry(ctx context.Context, e expressions.Entry) error {
	if err := checkID(h.id); err != nil {
		return err
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	r, err := h.s.db.ExecContext(ctx, "UPDATE history SET value = ? WHERE session = ? AND slot = ?", e.Value, h.id, int64(e.Slot))
	if err != nil {
		return err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &EntryError{Session: h.id, Slot: e.Slot}
	}
	return nil
}

func (h *sqliteHistory) Entries(ctx context.Context) ([]expressions.Entry, error) {
	if err := checkID(h.id); err != nil {
		return nil, err
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	rows, err := h.s.db.QueryContext(ctx, `
		SELECT slot, expr, degrees, value, time FROM history
		WHERE session = ? ORDER BY slot
	`, h.id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []expressions.Entry
	for rows.Next() {
		var (
			slot       int64
			expr, when string
			e          expressions.Entry
		)
		if err := rows.Scan(&slot, &expr, &e.Degrees, &e.Value, &when); err != nil {
			return nil, err
		}
		e.Slot = livecalc.Slot(slot)
		e.Expr = new(livecalc.Expr)
		if err := json.Unmarshal([]byte(expr), e.Expr); err != nil {
			return nil, fmt.Errorf("decoding history slot %d: %w", slot, err)
		}
		if e.Time, err = time.Parse(time.RFC3339Nano, when); err != nil {
			return nil, fmt.Errorf("decoding history slot %d: %w", slot, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
