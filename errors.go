package livecalc

import "strconv"

// StateError is an error restoring a session saved in a state that can't be
// restored.
type StateError struct {
	// State is the saved state.
	State State
}

func (err *StateError) Error() string {
	return "cannot restore session saved in state " + err.State.String()
}

// SavedTokenError is an error decoding a saved expression whose token
// sequence is not one the recognizer and builder would produce.
type SavedTokenError struct {
	// Index is the position of the token in the saved sequence.
	Index int
	// Text is the saved token text.
	Text string
}

func (err *SavedTokenError) Error() string {
	return "invalid saved token " + strconv.Quote(err.Text) + " at index " + strconv.Itoa(err.Index)
}
