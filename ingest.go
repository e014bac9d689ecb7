package livecalc

import (
	"unicode"
	"unicode/utf8"
)

// Mode is how input text reached the session.
type Mode uint8

const (
	// Explicit is text typed by the user one key at a time.
	Explicit Mode = iota
	// Batch is text pasted or inserted all at once. Batch input reads
	// scientific notation like 6.02E23 as a number, where typed input reads
	// E as the constant e.
	Batch
)

// Ingest appends text to the end of the formula. Any pending text is
// recognized again followed by text. If some of it can't be recognized, it
// stays pending from that point on.
func (s *Session) Ingest(text string, mode Mode) {
	s.beginEdit()
	s.ingest(text, mode)
}

func (s *Session) ingest(text string, mode Mode) {
	text = s.pending + text
	s.pending = ""
	if text != "" {
		s.leaveDisplayState(text)
	}
	s.feed(text, mode)
	s.afterFormulaChange()
}

// leaveDisplayState moves to Input before inserting text, deciding from the
// first thing in text whether a shown result continues into the new
// expression.
func (s *Session) leaveDisplayState(text string) {
	switch s.state {
	case Error, Init:
		s.setState(Input)
	case Result, InitForResult:
		m := Recognize(text, 0)
		for m.Kind == MatchSkip {
			m = Recognize(text, m.End)
		}
		s.switchToInput(m)
	}
}

// feed recognizes text and appends it to the main expression. It stops at
// the first text it can't recognize and makes the rest pending.
func (s *Session) feed(text string, mode Mode) {
	b := s.engine.Main()
	first := true
	lastWasDigit := false
	for pos := 0; pos < len(text); {
		m := Recognize(text, pos)
		if m.Kind == MatchSkip {
			pos = m.End
			continue
		}
		if mode == Batch && lastWasDigit {
			if _, end, ok := recognizeExponent(text, pos); ok {
				b.AddExponent(text[pos:end])
				pos = end
				lastWasDigit = false
				first = false
				continue
			}
		}
		if m.Kind == MatchNone {
			s.pending = text[pos:]
			return
		}
		tok := m.Token
		isNum := tok.kind == KindDigit || tok.kind == KindDecimalPoint
		if first && isNum && b.HasTrailingConstant() {
			// A digit can't extend a constant or result.
			b.Append(times)
		}
		first = false
		lastWasDigit = tok.kind == KindDigit || lastWasDigit && tok.kind == KindDecimalPoint
		if mode == Explicit && s.state == Input && tok.kind == KindOperator && tok.text == "−" {
			b.RemoveTrailingAdditiveOperators()
		}
		b.Append(tok)
		if m.Kind == MatchFunc && !tok.Opens() {
			b.Append(openParen)
		}
		pos = m.End
	}
}

// InsertAtCursor inserts text at the cursor.
func (s *Session) InsertAtCursor(text string) {
	s.beginEdit()
	s.insertAtCursor(text)
}

func (s *Session) insertAtCursor(text string) {
	raw := []rune(s.Formula())
	c := s.Cursor()
	n := significant(raw[:c]) + significant([]rune(text))
	s.retokenize(string(raw[:c])+text+string(raw[c:]), n)
}

// ReplaceSelection replaces the selected text, or inserts at the cursor if
// there is no selection.
func (s *Session) ReplaceSelection(text string) {
	s.beginEdit()
	s.replaceSelection(text)
}

func (s *Session) replaceSelection(text string) {
	raw := []rune(s.Formula())
	start, end := s.selection()
	n := significant(raw[:start]) + significant([]rune(text))
	s.retokenize(string(raw[:start])+text+string(raw[end:]), n)
}

// removeAtCursor deletes the rune before the cursor. A grouping separator
// before the cursor stands for the digit before it.
func (s *Session) removeAtCursor() {
	raw := []rune(s.Formula())
	c := s.Cursor()
	k := c - 1
	if raw[k] == ',' && k > 0 {
		k--
	}
	n := significant(raw[:k])
	s.retokenize(string(raw[:k])+string(raw[k+1:]), n)
}

// retokenize replaces the whole formula with text and places the cursor
// after the first n significant runes. Token boundaries don't follow
// arbitrary cursor positions, so the expression is always rebuilt.
func (s *Session) retokenize(text string, n int) {
	switch s.state {
	case Error, Init, Result, InitForResult:
		// The text already holds everything shown, so there is nothing
		// to collapse.
		s.setState(Input)
	}
	s.engine.ClearMain()
	s.pending = ""
	s.feed(text, Batch)
	f := []rune(s.Formula())
	s.cursor = cursorAt(f, n)
	if s.cursor >= len(f) {
		s.cursor = -1
	}
	s.selEnd = s.cursor
	s.afterFormulaChange()
}

// SetSelection sets the cursor and selection as rune offsets into Formula.
// Equal offsets set the cursor with no selection.
func (s *Session) SetSelection(start, end int) {
	n := utf8.RuneCountInString(s.Formula())
	start = clamp(start, 0, n)
	end = clamp(end, start, n)
	if start == n {
		s.cursor, s.selEnd = -1, -1
		return
	}
	s.cursor, s.selEnd = start, end
}

// Cursor returns the rune offset of the cursor in Formula.
func (s *Session) Cursor() int {
	n := utf8.RuneCountInString(s.Formula())
	if s.cursor < 0 || s.cursor > n {
		return n
	}
	return s.cursor
}

func (s *Session) selection() (int, int) {
	c := s.Cursor()
	e := s.selEnd
	n := utf8.RuneCountInString(s.Formula())
	if s.cursor < 0 || e < c || e > n {
		return c, c
	}
	return c, e
}

func (s *Session) hasSelection() bool {
	start, end := s.selection()
	return start != end
}

func (s *Session) atEnd() bool {
	return s.Cursor() == utf8.RuneCountInString(s.Formula())
}

// significant counts the runes that cursor positions are measured in.
// Grouping separators and spaces come and go as the formula is rebuilt.
func significant(rs []rune) int {
	n := 0
	for _, r := range rs {
		if r != ',' && !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// cursorAt returns the offset just after the first n significant runes of f.
func cursorAt(f []rune, n int) int {
	if n <= 0 {
		return 0
	}
	for i, r := range f {
		if r != ',' && !unicode.IsSpace(r) {
			n--
			if n == 0 {
				return i + 1
			}
		}
	}
	return len(f)
}

func clamp(x, lo, hi int) int {
	switch {
	case x < lo:
		return lo
	case x > hi:
		return hi
	}
	return x
}
