package main

import "github.com/zephyrtronium/livecalc"

// display remembers what a session last showed.
type display struct {
	result livecalc.ResultInfo
	shown  bool
	err    livecalc.ErrorKind
}

func (d *display) ShowFormula(formula, unprocessed string, cursor int) {}

func (d *display) ClearResult() {
	d.shown = false
	d.err = livecalc.ErrNone
}

func (d *display) ShowResult(r livecalc.ResultInfo) {
	d.result, d.shown = r, true
	d.err = livecalc.ErrNone
}

func (d *display) ShowError(kind livecalc.ErrorKind) {
	d.err = kind
	d.shown = false
}

func (d *display) AnimateResult(r livecalc.ResultInfo) {
	d.ShowResult(r)
}

func (d *display) AnimateError(kind livecalc.ErrorKind) {
	d.ShowError(kind)
}

// answer is the text to print for the session's formula.
func (d *display) answer(s *livecalc.Session) string {
	if rec, ok := s.Error(); ok {
		return "error: " + rec.Kind.String()
	}
	if d.err != livecalc.ErrNone {
		return "error: " + d.err.String()
	}
	if d.shown {
		return d.result.Text
	}
	// Nothing to evaluate, like a bare number.
	return s.Formula()
}
