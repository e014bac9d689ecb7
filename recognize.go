package livecalc

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MatchKind is the result of recognizing a position in input text.
type MatchKind uint8

const (
	// MatchNone means nothing at the position is calculator vocabulary.
	MatchNone MatchKind = iota
	// MatchSkip means the position holds whitespace or a grouping separator,
	// which produce no token.
	MatchSkip
	// MatchKey means the position holds a single key.
	MatchKey
	// MatchFunc means the position holds a function name and its open
	// parenthesis.
	MatchFunc
)

// Match is the result of Recognize.
type Match struct {
	Kind  MatchKind
	Token Token
	// End is the byte offset just past the recognized text.
	End int
}

// keys maps single runes to the tokens they produce.
var keys = map[rune]Token{
	'0': {kind: KindDigit, text: "0"},
	'1': {kind: KindDigit, text: "1"},
	'2': {kind: KindDigit, text: "2"},
	'3': {kind: KindDigit, text: "3"},
	'4': {kind: KindDigit, text: "4"},
	'5': {kind: KindDigit, text: "5"},
	'6': {kind: KindDigit, text: "6"},
	'7': {kind: KindDigit, text: "7"},
	'8': {kind: KindDigit, text: "8"},
	'9': {kind: KindDigit, text: "9"},
	'.': {kind: KindDecimalPoint, text: "."},

	'+': {kind: KindOperator, text: "+"},
	'-': {kind: KindOperator, text: "−"},
	'−': {kind: KindOperator, text: "−"},
	'*': {kind: KindOperator, text: "×"},
	'×': {kind: KindOperator, text: "×"},
	'/': {kind: KindOperator, text: "÷"},
	'÷': {kind: KindOperator, text: "÷"},
	'^': {kind: KindOperator, text: "^"},
	'!': {kind: KindOperator, text: "!"},
	'%': {kind: KindOperator, text: "%"},

	'(': {kind: KindParen, text: "("},
	')': {kind: KindParen, text: ")"},

	'π': {kind: KindConstant, text: "π"},
	'e': {kind: KindConstant, text: "e"},
	'E': {kind: KindConstant, text: "e"},

	'√': {kind: KindFunction, text: "√"},
}

// funcs lists function names that the recognizer turns into tokens, longest
// first so that e.g. asin is never read as a followed by sin.
var funcs = []struct {
	name string
	tok  Token
}{
	{"asin", Token{kind: KindFunction, text: "asin("}},
	{"acos", Token{kind: KindFunction, text: "acos("}},
	{"atan", Token{kind: KindFunction, text: "atan("}},
	{"sqrt", Token{kind: KindFunction, text: "√"}},
	{"sin", Token{kind: KindFunction, text: "sin("}},
	{"cos", Token{kind: KindFunction, text: "cos("}},
	{"tan", Token{kind: KindFunction, text: "tan("}},
	{"exp", Token{kind: KindFunction, text: "exp("}},
	{"log", Token{kind: KindFunction, text: "log("}},
	{"ln", Token{kind: KindFunction, text: "ln("}},
}

var (
	openParen = keys['(']
	times     = keys['×']
)

// Recognize matches the calculator vocabulary at byte offset pos in text.
//
// Function names match only when immediately followed by an open parenthesis,
// and the match consumes it. The function token for sqrt is √, which does not
// carry a parenthesis; callers append one explicitly when they see a MatchFunc
// whose token does not open a group. If nothing matches, the result has kind
// MatchNone and End equal to pos.
func Recognize(text string, pos int) Match {
	if pos >= len(text) {
		return Match{End: pos}
	}
	s := text[pos:]
	r, sz := utf8.DecodeRuneInString(s)
	if r == ',' || unicode.IsSpace(r) {
		return Match{Kind: MatchSkip, End: pos + sz}
	}
	for _, f := range funcs {
		if strings.HasPrefix(s, f.name) && strings.HasPrefix(s[len(f.name):], "(") {
			return Match{Kind: MatchFunc, Token: f.tok, End: pos + len(f.name) + 1}
		}
	}
	if strings.HasPrefix(s, "pi") {
		return Match{Kind: MatchKey, Token: keys['π'], End: pos + 2}
	}
	if tok, ok := keys[r]; ok {
		return Match{Kind: MatchKey, Token: tok, End: pos + sz}
	}
	return Match{End: pos}
}

// recognizeExponent matches a scientific-notation exponent at byte offset pos
// in text: e or E, an optional sign, and at least one digit. The second result
// is the offset just past the exponent.
func recognizeExponent(text string, pos int) (Token, int, bool) {
	if pos >= len(text) || (text[pos] != 'e' && text[pos] != 'E') {
		return Token{}, pos, false
	}
	i := pos + 1
	neg := false
	switch {
	case strings.HasPrefix(text[i:], "+"):
		i++
	case strings.HasPrefix(text[i:], "-"):
		neg = true
		i++
	case strings.HasPrefix(text[i:], "−"):
		neg = true
		i += len("−")
	}
	k := i
	for k < len(text) && '0' <= text[k] && text[k] <= '9' {
		k++
	}
	if k == i {
		return Token{}, pos, false
	}
	var b strings.Builder
	b.WriteByte('E')
	if neg {
		b.WriteString("−")
	}
	b.WriteString(text[i:k])
	return Token{kind: KindExponentMarker, text: b.String()}, k, true
}
