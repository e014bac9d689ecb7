package expressions

import "strconv"

// InputError is an error with position information. Every error resulting from
// invalid input implements InputError.
type InputError interface {
	error
	// Pos returns the rune column, counting from 1, of the token that caused
	// the error. For calculator tokens, columns count the runes of the
	// formula as displayed.
	Pos() int
}

var (
	_ InputError = (*LexError)(nil)
	_ InputError = (*OperatorError)(nil)
	_ InputError = (*BracketError)(nil)
	_ InputError = (*CallError)(nil)
	_ InputError = (*EmptyExpressionError)(nil)
)

// at prefixes msg with a column.
func at(col int, msg string) string {
	return "col " + strconv.Itoa(col) + ": " + msg
}

// LexError is a token that can't be scanned.
type LexError struct {
	// Text is what was scanned of the token, including the rune that made
	// it invalid.
	Text string
	// Kind is "number" if the token was a number, or empty if the first
	// rune was already invalid.
	Kind string
	// Col is the column of the invalid rune.
	Col int
}

func (err *LexError) Error() string {
	if err.Kind == "" {
		return at(err.Col, "invalid token "+strconv.Quote(err.Text))
	}
	return at(err.Col, "invalid "+err.Kind+" "+strconv.Quote(err.Text))
}

func (err *LexError) Pos() int { return err.Col }

// OperatorError is an operator the parser doesn't understand where it
// appears, such as ! at the start of a term.
type OperatorError struct {
	Col      int
	Operator string
	// Unary is whether the parser was expecting a prefix operator.
	Unary bool
}

func (err *OperatorError) Error() string {
	if err.Unary {
		return at(err.Col, "unknown unary operator "+strconv.Quote(err.Operator))
	}
	return at(err.Col, "unknown binary operator "+strconv.Quote(err.Operator))
}

func (err *OperatorError) Pos() int { return err.Col }

// BracketError is a bracket left open, a close bracket with nothing to
// close, or a close bracket of the wrong shape.
type BracketError struct {
	Col int
	// Left is the open bracket, or empty if there was none.
	Left string
	// Right is the close bracket, or empty if the input ended first.
	Right string
}

func (err *BracketError) Error() string {
	switch {
	case err.Left == "":
		return at(err.Col, "close bracket "+err.Right+" with no open bracket")
	case err.Right == "":
		return at(err.Col, "open bracket "+err.Left+" with no close bracket")
	}
	return at(err.Col, "bracket "+err.Left+" closed by "+err.Right)
}

func (err *BracketError) Pos() int { return err.Col }

// CallError is a function call with a number of arguments the function
// doesn't take.
type CallError struct {
	Col  int
	Func string
	// Len is the number of arguments the call implied.
	Len int
}

func (err *CallError) Error() string {
	return at(err.Col, "cannot call "+err.Func+" with "+strconv.Itoa(err.Len)+" arguments")
}

func (err *CallError) Pos() int { return err.Col }

// EmptyExpressionError is a missing operand or an empty group.
type EmptyExpressionError struct {
	Col int
	// End is the token where an operand was expected, or empty at the end
	// of the input.
	End string
}

func (err *EmptyExpressionError) Error() string {
	switch {
	case err.End != "":
		return at(err.Col, "no expression before "+strconv.Quote(err.End))
	case err.Col <= 1:
		return at(err.Col, "no expression")
	}
	return at(err.Col, "no expression at end")
}

func (err *EmptyExpressionError) Pos() int { return err.Col }
