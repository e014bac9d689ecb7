package expressions

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"
)

type lexToken struct {
	text string
	kind tokenKind
	// pos is the rune column where the token starts, counting from 1.
	pos int
}

func (t lexToken) String() string {
	return t.kind.String() + ":" + t.text + "@" + strconv.Itoa(t.pos)
}

type tokenKind int

const (
	tokenNone tokenKind = iota
	// tokenEOF ends every input exactly once.
	tokenEOF
	// tokenNum is a number, possibly with an exponent, or infinity.
	tokenNum
	// tokenIdent names a variable or a function.
	tokenIdent
	tokenOp
	tokenOpen
	tokenClose
)

//go:generate go mod edit -require=golang.org/x/tools@v0.1.0
//go:generate go mod download
//go:generate go run golang.org/x/tools/cmd/stringer -type=tokenKind -trimprefix=token
//go:generate go mod tidy

// scanner supplies tokens to the parser. The parser may push back the last
// token it took so that next returns it again.
type scanner interface {
	next() (lexToken, error)
	push(tok lexToken)
	must() lexToken
}

// unread holds a token pushed back to a scanner.
type unread struct {
	tok lexToken
}

// push unreads a token. Panics if there is already one.
func (u *unread) push(tok lexToken) {
	if u.tok.kind != tokenNone {
		panic("expressions: double push")
	}
	u.tok = tok
}

// must takes the pushed token. Panics if there is none.
func (u *unread) must() lexToken {
	tok, ok := u.pop()
	if !ok {
		panic("expressions: no pushed token")
	}
	return tok
}

func (u *unread) pop() (lexToken, bool) {
	tok := u.tok
	u.tok = lexToken{}
	return tok, tok.kind != tokenNone
}

// Operators contains the runes which are considered to be operators. ! and %
// are suffix operators; the rest are binary, and + and - are also prefix.
const Operators = "+-−*/^×÷!%"

// runeTokens holds the tokens that are a single rune.
var runeTokens = map[rune]lexToken{
	'+': {text: "+", kind: tokenOp},
	'-': {text: "-", kind: tokenOp},
	'−': {text: "−", kind: tokenOp},
	'*': {text: "*", kind: tokenOp},
	'×': {text: "×", kind: tokenOp},
	'/': {text: "/", kind: tokenOp},
	'÷': {text: "÷", kind: tokenOp},
	'^': {text: "^", kind: tokenOp},
	'!': {text: "!", kind: tokenOp},
	'%': {text: "%", kind: tokenOp},
	'(': {text: "(", kind: tokenOpen},
	'[': {text: "[", kind: tokenOpen},
	'{': {text: "{", kind: tokenOpen},
	')': {text: ")", kind: tokenClose},
	']': {text: "]", kind: tokenClose},
	'}': {text: "}", kind: tokenClose},
	'∞': {text: "∞", kind: tokenNum},
	'√': {text: "sqrt", kind: tokenIdent},
}

// closers maps each open bracket to the close bracket that matches it.
var closers = map[string]string{
	"(": ")",
	"[": "]",
	"{": "}",
}

// textLexer scans expression source text.
type textLexer struct {
	unread
	src io.RuneScanner
	// col is the number of runes read.
	col  int
	done bool
}

func lexText(src io.RuneScanner) *textLexer {
	return &textLexer{src: src}
}

func (l *textLexer) read() (rune, error) {
	r, _, err := l.src.ReadRune()
	if err == nil {
		l.col++
	}
	return r, err
}

// unreadRune unreads the last rune read. Panics if the source can't.
func (l *textLexer) unreadRune() {
	if err := l.src.UnreadRune(); err != nil {
		panic(err)
	}
	l.col--
}

// next scans the next token. At the end of the input it returns one EOF
// token, then io.EOF. An invalid rune gives a LexError along with a token
// holding only its position; scanning can continue after it.
func (l *textLexer) next() (lexToken, error) {
	if tok, ok := l.pop(); ok {
		return tok, nil
	}
	if l.done {
		return lexToken{}, io.EOF
	}
	r, err := l.read()
	for err == nil && unicode.IsSpace(r) {
		r, err = l.read()
	}
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return lexToken{pos: l.col + 1}, err
		}
		l.done = true
		return lexToken{kind: tokenEOF, pos: l.col + 1}, nil
	}
	pos := l.col
	switch {
	case '0' <= r && r <= '9', r == '.':
		text, err := l.number(r)
		if err != nil {
			return lexToken{pos: pos}, err
		}
		return lexToken{text: text, kind: tokenNum, pos: pos}, nil
	case r == '_', unicode.IsLetter(r):
		text, err := l.ident(r)
		if err != nil {
			return lexToken{pos: pos}, err
		}
		if text == "inf" || text == "Inf" {
			return lexToken{text: text, kind: tokenNum, pos: pos}, nil
		}
		return lexToken{text: text, kind: tokenIdent, pos: pos}, nil
	}
	tok, ok := runeTokens[r]
	if !ok {
		return lexToken{pos: pos}, &LexError{Text: string(r), Col: pos}
	}
	tok.pos = pos
	return tok, nil
}

// number scans a number starting with r: digits with at most one decimal
// point, then optionally e or E with an optional sign and more digits. The
// number ends at a space or at a rune that is its own token. A − in the
// exponent is written as -.
func (l *textLexer) number(r rune) (string, error) {
	var (
		b                          strings.Builder
		digits, point, marker, exp bool
		prev                       rune
	)
	for {
		ok := true
		switch {
		case '0' <= r && r <= '9':
			if marker {
				exp = true
			} else {
				digits = true
			}
		case r == '.':
			ok = !point && !marker
			point = true
		case r == 'e', r == 'E':
			ok = digits && !marker
			marker = true
		case (r == '+' || r == '-' || r == '−') && (prev == 'e' || prev == 'E'):
			if r == '−' {
				r = '-'
			}
		case unicode.IsSpace(r), isRuneToken(r):
			l.unreadRune()
			return l.endNumber(b.String(), digits && (exp || !marker))
		default:
			ok = false
		}
		b.WriteRune(r)
		if !ok {
			return "", &LexError{Text: b.String(), Kind: "number", Col: l.col}
		}
		prev = r
		var err error
		r, err = l.read()
		if errors.Is(err, io.EOF) {
			return l.endNumber(b.String(), digits && (exp || !marker))
		}
		if err != nil {
			return "", err
		}
	}
}

func (l *textLexer) endNumber(text string, ok bool) (string, error) {
	if !ok {
		return "", &LexError{Text: text, Kind: "number", Col: l.col}
	}
	return text, nil
}

// ident scans a name starting with r.
func (l *textLexer) ident(r rune) (string, error) {
	var b strings.Builder
	for {
		b.WriteRune(r)
		var err error
		r, err = l.read()
		switch {
		case errors.Is(err, io.EOF):
			return b.String(), nil
		case err != nil:
			return "", err
		case r == '_', r == '.', unicode.IsLetter(r), unicode.IsDigit(r):
		default:
			l.unreadRune()
			return b.String(), nil
		}
	}
}

func isRuneToken(r rune) bool {
	_, ok := runeTokens[r]
	return ok
}
