package livecalc

// Builder holds the token sequence of an expression. Expr is the standard
// implementation; engines own the Builder for each slot.
type Builder interface {
	// Append adds a token at the end. The result is false if the token was
	// rejected, leaving the expression unchanged.
	Append(tok Token) bool
	// AddExponent appends a scientific-notation exponent like "E23" to the
	// number at the end.
	AddExponent(exp string) bool
	// Delete removes the last token.
	Delete()
	// Clear removes all tokens.
	Clear()
	RemoveTrailingAdditiveOperators()

	IsEmpty() bool
	HasTrailingConstant() bool
	HasTrailingAdditiveOperator() bool
	HasTrailingOperator() bool
	HasInterestingOps() bool
	HasTrigFunctions() bool

	// Text returns the expression as it is displayed.
	Text() string
	// Tokens returns a copy of the token sequence.
	Tokens() []Token
}

var _ Builder = (*Expr)(nil)

// ResultInfo describes a computed value.
type ResultInfo struct {
	// Text is the value formatted for display.
	Text string
	// Digits is the number of significant decimal digits in Text.
	Digits int
	// Prec is the binary precision at which the value was computed.
	Prec uint
}

// ResultSink receives the outcome of evaluation requests. Engines call its
// methods on the goroutine that drains their Poster, never concurrently.
type ResultSink interface {
	// OnEvaluated delivers the first value computed for a request.
	OnEvaluated(slot Slot, r ResultInfo)
	// OnCancelled reports that a request was cancelled without being quiet.
	OnCancelled(slot Slot)
	// OnReevaluated delivers a value confirmed at higher precision after
	// OnEvaluated.
	OnReevaluated(slot Slot, r ResultInfo)
	// OnError reports that evaluation failed, possibly after OnEvaluated.
	OnError(slot Slot, kind ErrorKind)
}

// Engine evaluates expressions in the background and keeps the history of
// preserved results. Every method is called from the foreground goroutine.
type Engine interface {
	// Main returns the builder of the main slot.
	Main() Builder
	// RequestEvaluation starts a speculative evaluation of a slot, replacing
	// any request outstanding for it.
	RequestEvaluation(slot Slot, sink ResultSink)
	// RequestResult starts an evaluation whose result the user asked for. It
	// continues at increasing precision after OnEvaluated until the value is
	// confirmed or found to be an error.
	RequestResult(slot Slot, sink ResultSink)
	// Cancel stops the request outstanding for a slot. Unless quiet, the
	// request's sink receives OnCancelled. The result reports whether there
	// was such a request.
	Cancel(slot Slot, quiet bool) bool
	// CancelAll cancels every outstanding request.
	CancelAll(quiet bool)
	// Collapse replaces the main expression with the result held in slot.
	Collapse(slot Slot)
	// Preserve adds the expression and value of slot to the history and
	// returns the new history slot.
	Preserve(slot Slot) Slot
	// Represerve marks the most recent history entry as the current result
	// again, for results restored rather than computed.
	Represerve()
	// MaxSlot returns the most recent history slot, or MainSlot if the
	// history is empty.
	MaxSlot() Slot
	// ClearMain empties the main expression and drops its result.
	ClearMain()
	DegreeMode() bool
	SetDegreeMode(degrees bool)
	// SaveState encodes the engine's expressions and history position.
	SaveState() ([]byte, error)
	// RestoreState replaces the engine's state with one from SaveState.
	RestoreState(b []byte) error
	// WaitForWrites blocks until asynchronous history writes are done.
	WaitForWrites()
}

// Display renders a session. A Session only ever tells its Display what to
// show; it never reads anything back.
type Display interface {
	// ShowFormula shows the formula text. unprocessed is the suffix of
	// formula holding pending text that is not yet part of the expression,
	// and cursor is the rune offset of the editing cursor.
	ShowFormula(formula, unprocessed string, cursor int)
	ClearResult()
	ShowResult(r ResultInfo)
	ShowError(kind ErrorKind)
	// AnimateResult begins the transition to showing r as the result. The
	// host calls Session.AnimationDone when it ends.
	AnimateResult(r ResultInfo)
	// AnimateError begins the transition to showing an error. The host calls
	// Session.AnimationDone when it ends.
	AnimateError(kind ErrorKind)
}

// StateObserver is notified of every state change of a session.
type StateObserver interface {
	StateChanged(from, to State)
}

// Poster runs functions on a foreground goroutine.
type Poster interface {
	Post(f func())
}

// Snapshot is the saved form of a session.
type Snapshot struct {
	State State `json:"state"`
	// Pending is the pending text, or nil if there was none.
	Pending *string `json:"pending,omitempty"`
	// Evaluator is the engine state from Engine.SaveState.
	Evaluator []byte `json:"evaluator,omitempty"`
	// ErrorKind is the error shown when State is Error.
	ErrorKind ErrorKind `json:"error,omitempty"`
}

// SnapshotStore persists session snapshots by session ID.
type SnapshotStore interface {
	SaveSnapshot(id string, s Snapshot) error
	// LoadSnapshot returns the snapshot saved for id. The second result is
	// false if there is none.
	LoadSnapshot(id string) (Snapshot, bool, error)
}
