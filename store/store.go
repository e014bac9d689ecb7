// Package store persists calculator sessions and the history of their
// preserved results.
package store

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/zephyrtronium/livecalc"
	"github.com/zephyrtronium/livecalc/expressions"
)

// Store holds session snapshots and per-session history.
type Store interface {
	livecalc.SnapshotStore
	// History returns the history store of a session. The ID is checked
	// when the result is used.
	History(id string) expressions.HistoryStore
	// Close releases resources.
	Close() error
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Memory)(nil)
)

// NewSessionID returns a new random session ID.
func NewSessionID() string {
	return uuid.New().String()
}

// IDError is an error for a session ID that is not a UUID.
type IDError struct {
	ID  string
	Err error
}

func (err *IDError) Error() string {
	return "invalid session id " + strconv.Quote(err.ID) + ": " + err.Err.Error()
}

func (err *IDError) Unwrap() error {
	return err.Err
}

// checkID returns an *IDError if id is not a session ID.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &IDError{ID: id, Err: err}
	}
	return nil
}

// EntryError is an error for an update to a history entry that doesn't exist.
type EntryError struct {
	Session string
	Slot    livecalc.Slot
}

func (err *EntryError) Error() string {
	return "session " + err.Session + " has no history slot " + strconv.FormatInt(int64(err.Slot), 10)
}
