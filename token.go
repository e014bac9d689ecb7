package livecalc

import "strconv"

// Kind is the kind of a token.
type Kind uint8

const (
	KindNone Kind = iota
	// KindDigit is one of 0 through 9.
	KindDigit
	// KindDecimalPoint is the decimal point of a number.
	KindDecimalPoint
	// KindOperator is a binary operator + − × ÷ ^ or a suffix operator ! %.
	KindOperator
	// KindFunction is a named function. Every function other than √ carries
	// its own open parenthesis, e.g. "sin(".
	KindFunction
	// KindConstant is π or e.
	KindConstant
	// KindParen is an open or close parenthesis.
	KindParen
	// KindExponentMarker is a scientific-notation exponent attached to the
	// number before it, e.g. "E23".
	KindExponentMarker
	// KindResult is a collapsed result taken from a history slot.
	KindResult
)

//go:generate go mod edit -require=golang.org/x/tools@v0.1.0
//go:generate go mod download
//go:generate go run golang.org/x/tools/cmd/stringer -type=Kind -trimprefix=Kind
//go:generate go mod tidy

// Token is one unit of a calculator expression. Tokens come from Recognize,
// or from ResultToken when an engine collapses a result into an expression.
type Token struct {
	kind Kind
	text string
	slot Slot
}

// Kind returns the token's kind.
func (t Token) Kind() Kind {
	return t.kind
}

// Text returns the token as it is displayed in a formula.
func (t Token) Text() string {
	return t.text
}

// Slot returns the history slot of a KindResult token, or MainSlot for any
// other kind.
func (t Token) Slot() Slot {
	return t.slot
}

// Digit returns the value of a digit token, or -1 if t is not a digit.
func (t Token) Digit() int {
	if t.kind != KindDigit {
		return -1
	}
	return int(t.text[0] - '0')
}

// IsBinary reports whether t is one of the binary operators + − × ÷ ^.
func (t Token) IsBinary() bool {
	if t.kind != KindOperator {
		return false
	}
	switch t.text {
	case "+", "−", "×", "÷", "^":
		return true
	}
	return false
}

// IsSuffix reports whether t is a suffix operator, ! or %.
func (t Token) IsSuffix() bool {
	return t.kind == KindOperator && (t.text == "!" || t.text == "%")
}

// IsAdditive reports whether t is + or −.
func (t Token) IsAdditive() bool {
	return t.kind == KindOperator && (t.text == "+" || t.text == "−")
}

// Opens reports whether t leaves a group open: an open parenthesis or a
// function carrying its own.
func (t Token) Opens() bool {
	switch t.kind {
	case KindParen:
		return t.text == "("
	case KindFunction:
		return t.text[len(t.text)-1] == '('
	}
	return false
}

// Closes reports whether t is a close parenthesis.
func (t Token) Closes() bool {
	return t.kind == KindParen && t.text == ")"
}

// IsTrig reports whether t is a trigonometric function, whose value depends
// on the angle mode.
func (t Token) IsTrig() bool {
	if t.kind != KindFunction {
		return false
	}
	switch t.text {
	case "sin(", "cos(", "tan(", "asin(", "acos(", "atan(":
		return true
	}
	return false
}

func (t Token) String() string {
	if t.kind == KindResult {
		return t.kind.String() + ":" + t.text + "@" + strconv.FormatInt(int64(t.slot), 10)
	}
	return t.kind.String() + ":" + t.text
}

// ResultToken creates a token standing for the result held in a history slot.
// text is the result as it should appear in the formula. Panics if slot is
// the main slot.
func ResultToken(slot Slot, text string) Token {
	if slot == MainSlot {
		panic("livecalc: result token for main slot")
	}
	return Token{kind: KindResult, text: text, slot: slot}
}

// Slot identifies an expression held by an engine. The main slot is the
// expression being edited; history entries use positive slots.
type Slot int64

// MainSlot is the slot of the expression being edited.
const MainSlot Slot = 0
