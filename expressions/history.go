package expressions

import (
	"context"
	"strconv"
	"time"

	"github.com/zephyrtronium/livecalc"
)

// Entry is a preserved result.
type Entry struct {
	// Slot is the entry's history slot. Slots count up from 1.
	Slot livecalc.Slot `json:"slot"`
	// Expr is the expression that produced the result.
	Expr *livecalc.Expr `json:"expr"`
	// Degrees is whether trigonometric functions in Expr use degrees.
	Degrees bool `json:"degrees,omitempty"`
	// Value is the result as displayed.
	Value string `json:"value"`
	// Time is when the entry was preserved.
	Time time.Time `json:"time"`
}

// HistoryStore persists history entries. An Evaluator calls its methods from
// one goroutine at a time, in the order the entries change.
type HistoryStore interface {
	// AddEntry adds a new entry.
	AddEntry(ctx context.Context, e Entry) error
	// UpdateEntry replaces the value of an existing entry.
	UpdateEntry(ctx context.Context, e Entry) error
	// Entries returns all entries in slot order.
	Entries(ctx context.Context) ([]Entry, error)
}

// HistoryError is an error for a history that isn't numbered consecutively
// from 1.
type HistoryError struct {
	// Index is the position of the first misnumbered entry.
	Index int
	// Slot is the slot the entry claimed.
	Slot livecalc.Slot
}

func (err *HistoryError) Error() string {
	return "history entry " + strconv.Itoa(err.Index) + " has slot " + strconv.FormatInt(int64(err.Slot), 10)
}

// checkHistory verifies that entries are numbered consecutively and only
// refer to earlier slots.
func checkHistory(entries []Entry) error {
	for i, e := range entries {
		want := livecalc.Slot(i + 1)
		if e.Slot != want || e.Expr == nil {
			return &HistoryError{Index: i, Slot: e.Slot}
		}
		for _, t := range e.Expr.Tokens() {
			if t.Kind() == livecalc.KindResult && t.Slot() >= want {
				return &HistoryError{Index: i, Slot: e.Slot}
			}
		}
	}
	return nil
}
