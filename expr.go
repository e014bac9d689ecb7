package livecalc

import (
	"encoding/json"
	"strings"
)

// Expr is a token sequence that only accepts tokens which keep it a plausible
// prefix of a calculator expression. It implements Builder.
//
// The zero value is an empty expression ready to use.
type Expr struct {
	toks []Token
}

// NewExpr creates an expression from a sequence of tokens, dropping any that
// Append would reject.
func NewExpr(toks ...Token) *Expr {
	e := new(Expr)
	for _, tok := range toks {
		e.Append(tok)
	}
	return e
}

// last returns the last token, or the zero token if e is empty.
func (e *Expr) last() Token {
	if len(e.toks) == 0 {
		return Token{}
	}
	return e.toks[len(e.toks)-1]
}

// number returns the tokens of the number being entered at the end of e.
func (e *Expr) number() []Token {
	i := len(e.toks)
	for i > 0 {
		switch e.toks[i-1].kind {
		case KindDigit, KindDecimalPoint, KindExponentMarker:
			i--
			continue
		}
		break
	}
	return e.toks[i:]
}

// depth returns the number of unclosed groups in e.
func (e *Expr) depth() int {
	n := 0
	for _, t := range e.toks {
		switch {
		case t.Opens():
			n++
		case t.Closes():
			n--
		}
	}
	return n
}

// Append adds a token to the end of the expression. The result is false if
// the token cannot follow the expression as it stands, in which case the
// expression is unchanged. A binary operator other than − replaces any
// binary operators already at the end; − can follow anything, since it may be
// a prefix.
func (e *Expr) Append(tok Token) bool {
	last := e.last()
	switch tok.kind {
	case KindDigit:
		if last.kind == KindExponentMarker {
			return false
		}
	case KindDecimalPoint:
		for _, t := range e.number() {
			if t.kind == KindDecimalPoint || t.kind == KindExponentMarker {
				return false
			}
		}
	case KindExponentMarker:
		if last.kind != KindDigit {
			return false
		}
	case KindOperator:
		switch {
		case tok.IsSuffix():
			if len(e.toks) == 0 || last.IsBinary() || last.kind == KindFunction || last.Opens() {
				return false
			}
		case tok.text == "−":
			// Always a valid prefix. Typed keys remove trailing additive
			// operators first, so only pasted text stacks them.
		default:
			i := len(e.toks)
			for i > 0 && e.toks[i-1].IsBinary() {
				i--
			}
			if i == 0 || e.toks[i-1].Opens() || e.toks[i-1].kind == KindFunction {
				return false
			}
			e.toks = e.toks[:i]
		}
	case KindParen:
		if tok.Closes() {
			if e.depth() <= 0 || last.IsBinary() || last.kind == KindFunction || last.Opens() {
				return false
			}
		}
	case KindFunction, KindConstant, KindResult:
		// always ok
	default:
		return false
	}
	e.toks = append(e.toks, tok)
	return true
}

// AddExponent appends a scientific-notation exponent such as "E23" or "e-5"
// to the number at the end of the expression.
func (e *Expr) AddExponent(exp string) bool {
	tok, end, ok := recognizeExponent(exp, 0)
	if !ok || end != len(exp) {
		return false
	}
	return e.Append(tok)
}

// Delete removes the last token.
func (e *Expr) Delete() {
	if len(e.toks) > 0 {
		e.toks = e.toks[:len(e.toks)-1]
	}
}

// Clear removes all tokens.
func (e *Expr) Clear() {
	e.toks = e.toks[:0]
}

// RemoveTrailingAdditiveOperators removes any + and − at the end.
func (e *Expr) RemoveTrailingAdditiveOperators() {
	for len(e.toks) > 0 && e.last().IsAdditive() {
		e.toks = e.toks[:len(e.toks)-1]
	}
}

// IsEmpty reports whether the expression has no tokens.
func (e *Expr) IsEmpty() bool {
	return len(e.toks) == 0
}

// Len returns the number of tokens.
func (e *Expr) Len() int {
	return len(e.toks)
}

// HasTrailingConstant reports whether the expression ends with a value that a
// following digit must not extend: a constant or a collapsed result.
func (e *Expr) HasTrailingConstant() bool {
	k := e.last().kind
	return k == KindConstant || k == KindResult
}

// HasTrailingAdditiveOperator reports whether the expression ends with + or −.
func (e *Expr) HasTrailingAdditiveOperator() bool {
	return e.last().IsAdditive()
}

// HasTrailingOperator reports whether the expression ends with a binary
// operator.
func (e *Expr) HasTrailingOperator() bool {
	return e.last().IsBinary()
}

// HasInterestingOps reports whether evaluating the expression could produce
// anything other than the number already written. A leading − doesn't count.
func (e *Expr) HasInterestingOps() bool {
	toks := e.toks
	if len(toks) > 0 && toks[0].kind == KindOperator && toks[0].text == "−" {
		toks = toks[1:]
	}
	if len(toks) == 1 && toks[0].kind == KindResult {
		return false
	}
	for _, t := range toks {
		switch t.kind {
		case KindDigit, KindDecimalPoint, KindExponentMarker:
		default:
			return true
		}
	}
	return false
}

// HasTrigFunctions reports whether the expression's value depends on the
// angle mode.
func (e *Expr) HasTrigFunctions() bool {
	for _, t := range e.toks {
		if t.IsTrig() {
			return true
		}
	}
	return false
}

// Tokens returns a copy of the expression's tokens.
func (e *Expr) Tokens() []Token {
	return append([]Token(nil), e.toks...)
}

// Text returns the expression as displayed, with digit grouping in the
// integer parts of numbers.
func (e *Expr) Text() string {
	var b strings.Builder
	for i := 0; i < len(e.toks); {
		if e.toks[i].kind != KindDigit {
			b.WriteString(e.toks[i].text)
			i++
			continue
		}
		k := i
		for k < len(e.toks) && e.toks[k].kind == KindDigit {
			k++
		}
		// Digits after a decimal point are never grouped.
		if i > 0 && e.toks[i-1].kind == KindDecimalPoint {
			for _, t := range e.toks[i:k] {
				b.WriteString(t.text)
			}
		} else {
			for j, t := range e.toks[i:k] {
				if j > 0 && (k-i-j)%3 == 0 {
					b.WriteByte(',')
				}
				b.WriteString(t.text)
			}
		}
		i = k
	}
	return b.String()
}

func (e *Expr) String() string {
	return e.Text()
}

type savedToken struct {
	Text string `json:"t"`
	Slot Slot   `json:"s,omitempty"`
}

// MarshalJSON encodes the expression as the display text of each token.
func (e *Expr) MarshalJSON() ([]byte, error) {
	v := make([]savedToken, len(e.toks))
	for i, t := range e.toks {
		v[i] = savedToken{Text: t.text, Slot: t.slot}
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes an expression encoded by MarshalJSON. Each token is
// recognized again, so saved data cannot produce tokens the recognizer would
// not.
func (e *Expr) UnmarshalJSON(b []byte) error {
	var v []savedToken
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	e.toks = e.toks[:0]
	for i, s := range v {
		tok, ok := recognizeSaved(s)
		if !ok || !e.Append(tok) {
			return &SavedTokenError{Index: i, Text: s.Text}
		}
	}
	return nil
}

// recognizeSaved converts a saved token back into a token.
func recognizeSaved(s savedToken) (Token, bool) {
	if s.Slot != MainSlot {
		return ResultToken(s.Slot, s.Text), true
	}
	if tok, end, ok := recognizeExponent(s.Text, 0); ok && end == len(s.Text) {
		return tok, true
	}
	m := Recognize(s.Text, 0)
	if m.Kind != MatchKey && m.Kind != MatchFunc {
		return Token{}, false
	}
	return m.Token, m.End == len(s.Text)
}
