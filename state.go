package livecalc

import "strconv"

// State is the display state of a calculator session.
type State uint8

const (
	// Input is the state while the user edits the formula. Live previews
	// may be computing.
	Input State = iota
	// Evaluate is the state after the user asks for a result and before it
	// arrives.
	Evaluate
	// Init is a restored session that was showing an error or was itself
	// restored before its evaluation completed.
	Init
	// InitForResult is a restored session that was showing a result.
	InitForResult
	// Animate is the transition from Evaluate to Result or Error. It is never
	// saved.
	Animate
	// Result shows the value of the formula.
	Result
	// Error shows an error for the formula.
	Error
)

//go:generate go mod edit -require=golang.org/x/tools@v0.1.0
//go:generate go mod download
//go:generate go run golang.org/x/tools/cmd/stringer -type=State
//go:generate go mod tidy

// MapFromSaved gives the state in which a restored session starts when it
// was saved in s. There is no evaluation running in a new process, so saved
// display states become states that wait for a fresh evaluation. Animate has
// no mapping; the second result is false for it and for unknown states.
func MapFromSaved(s State) (State, bool) {
	switch s {
	case Result, InitForResult:
		return InitForResult, true
	case Error, Init:
		return Init, true
	case Input, Evaluate:
		return s, true
	default:
		return s, false
	}
}

// ErrorKind is the kind of error shown for a formula.
type ErrorKind uint8

const (
	ErrNone ErrorKind = iota
	// ErrSyntax is a malformed or incomplete formula.
	ErrSyntax
	// ErrValueTooLarge is a result whose magnitude can't be represented.
	ErrValueTooLarge
	// ErrEngine is any other failure reported by the engine, such as a
	// domain error.
	ErrEngine
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrSyntax:
		return "syntax error"
	case ErrValueTooLarge:
		return "value too large"
	case ErrEngine:
		return "evaluation error"
	default:
		return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ErrorRecord is the error shown by a session in Error state.
type ErrorRecord struct {
	Kind ErrorKind
	Slot Slot
}
