package expressions

import (
	"io"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/zephyrtronium/livecalc"
)

// keyLexer scans calculator tokens. Digits, decimal points, and exponent
// markers run together into numbers. Collapsed results become variables
// named by HistoryVar. Groups left open are closed at the end.
type keyLexer struct {
	unread
	toks []livecalc.Token
	// col is the rune column of toks[0] in the formula.
	col   int
	depth int
	// paren is the open parenthesis of the function just scanned.
	paren lexToken
	done  bool
}

func lexKeys(toks []livecalc.Token) *keyLexer {
	return &keyLexer{toks: toks, col: 1}
}

func (l *keyLexer) take() livecalc.Token {
	t := l.toks[0]
	l.toks = l.toks[1:]
	l.col += utf8.RuneCountInString(t.Text())
	return t
}

// next scans the next token. It follows the same protocol as textLexer.
func (l *keyLexer) next() (lexToken, error) {
	if tok, ok := l.pop(); ok {
		return tok, nil
	}
	if l.paren.kind != tokenNone {
		tok := l.paren
		l.paren = lexToken{}
		return tok, nil
	}
	if len(l.toks) == 0 {
		switch {
		case l.depth > 0:
			l.depth--
			return lexToken{text: ")", kind: tokenClose, pos: l.col}, nil
		case l.done:
			return lexToken{}, io.EOF
		}
		l.done = true
		return lexToken{kind: tokenEOF, pos: l.col}, nil
	}
	pos := l.col
	t := l.take()
	switch t.Kind() {
	case livecalc.KindDigit, livecalc.KindDecimalPoint, livecalc.KindExponentMarker:
		text, ok := l.number(t)
		if !ok {
			return lexToken{pos: pos}, &LexError{Text: text, Kind: "number", Col: pos}
		}
		return lexToken{text: text, kind: tokenNum, pos: pos}, nil
	case livecalc.KindOperator:
		// The parser knows − × ÷ as well as their ASCII forms.
		return lexToken{text: t.Text(), kind: tokenOp, pos: pos}, nil
	case livecalc.KindFunction:
		name := strings.TrimSuffix(t.Text(), "(")
		if name == "√" {
			name = "sqrt"
		}
		if t.Opens() {
			l.depth++
			l.paren = lexToken{text: "(", kind: tokenOpen, pos: l.col - 1}
		}
		return lexToken{text: name, kind: tokenIdent, pos: pos}, nil
	case livecalc.KindConstant:
		name := t.Text()
		if name == "π" {
			name = "pi"
		}
		return lexToken{text: name, kind: tokenIdent, pos: pos}, nil
	case livecalc.KindParen:
		if t.Opens() {
			l.depth++
			return lexToken{text: "(", kind: tokenOpen, pos: pos}, nil
		}
		l.depth--
		return lexToken{text: ")", kind: tokenClose, pos: pos}, nil
	case livecalc.KindResult:
		return lexToken{text: HistoryVar(t.Slot()), kind: tokenIdent, pos: pos}, nil
	}
	return lexToken{pos: pos}, &LexError{Text: t.Text(), Col: pos}
}

// number scans the number starting with t. The result is false unless the
// number has digits, at most one decimal point, and at most one exponent
// with digits of its own.
func (l *keyLexer) number(t livecalc.Token) (string, bool) {
	var (
		b                     strings.Builder
		digits, point, marker bool
	)
	ok := true
	for {
		switch t.Kind() {
		case livecalc.KindExponentMarker:
			e := strings.Replace(t.Text()[1:], "−", "-", 1)
			ok = ok && !marker && strings.ContainsAny(e, "0123456789")
			marker = true
			b.WriteByte('e')
			b.WriteString(e)
		case livecalc.KindDigit:
			ok = ok && !marker
			digits = true
			b.WriteString(t.Text())
		default:
			ok = ok && !point && !marker
			point = true
			b.WriteString(t.Text())
		}
		if len(l.toks) == 0 || !isNumberKey(l.toks[0]) {
			return b.String(), ok && digits
		}
		t = l.take()
	}
}

func isNumberKey(t livecalc.Token) bool {
	switch t.Kind() {
	case livecalc.KindDigit, livecalc.KindDecimalPoint, livecalc.KindExponentMarker:
		return true
	}
	return false
}

// ParseTokens parses a calculator expression. Collapsed results are
// variables named by HistoryVar. Groups left open are closed at the end.
func ParseTokens(toks []livecalc.Token, opts ...ParseOption) (*Expr, error) {
	return parse(lexKeys(toks), opts)
}

// Refs lists the history slots of the collapsed results in toks, each once,
// in order of first appearance.
func Refs(toks []livecalc.Token) []livecalc.Slot {
	var refs []livecalc.Slot
	for _, t := range toks {
		if t.Kind() == livecalc.KindResult && !slices.Contains(refs, t.Slot()) {
			refs = append(refs, t.Slot())
		}
	}
	return refs
}

// HistoryVar returns the variable name by which parsed calculator
// expressions refer to a history slot.
func HistoryVar(slot livecalc.Slot) string {
	return "_h" + strconv.FormatInt(int64(slot), 10)
}
