package livecalc

import (
	"io"
	"log"
)

// Session is the editing and evaluation state of one calculator. It takes
// user events, keeps the Engine's main expression and the pending text in
// step with them, and turns the Engine's asynchronous answers into display
// states.
//
// A Session is not safe for concurrent use. All methods, including the
// ResultSink methods called by the Engine, must run on one goroutine.
type Session struct {
	engine    Engine
	display   Display
	log       *log.Logger
	observers []StateObserver

	state   State
	pending string
	// cursor is the rune offset of the cursor in the formula, or -1 for the
	// end. selEnd is the end of the selection starting at cursor, or equal
	// to cursor if there is none.
	cursor, selEnd int
	errKind        ErrorKind
	// animTo is the state in which the current animation ends.
	animTo State
	result ResultInfo
}

// SessionOption is an option for creating a session.
type SessionOption interface {
	sessionOption(*Session)
}

type (
	logopt struct{ l *log.Logger }
	obsopt struct{ o StateObserver }
)

func (o logopt) sessionOption(s *Session) { s.log = o.l }
func (o obsopt) sessionOption(s *Session) { s.observers = append(s.observers, o.o) }

// WithLogger sets the logger for faults the session can't report otherwise,
// like a callback for a slot it doesn't own. The default discards them.
func WithLogger(l *log.Logger) SessionOption {
	return logopt{l}
}

// WithObserver adds a state observer.
func WithObserver(o StateObserver) SessionOption {
	return obsopt{o}
}

// NewSession creates a session in Input state over the engine's main
// expression. If display is nil, nothing is displayed.
func NewSession(engine Engine, display Display, opts ...SessionOption) *Session {
	if display == nil {
		display = nopDisplay{}
	}
	s := &Session{
		engine:  engine,
		display: display,
		log:     log.New(io.Discard, "", 0),
		cursor:  -1,
		selEnd:  -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.sessionOption(s)
		}
	}
	return s
}

// AddObserver adds an observer of state changes.
func (s *Session) AddObserver(o StateObserver) {
	s.observers = append(s.observers, o)
}

// RemoveObserver removes an observer. The result is false if o was not
// observing s.
func (s *Session) RemoveObserver(o StateObserver) bool {
	for i, v := range s.observers {
		if v == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return true
		}
	}
	return false
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Pending returns the text after the expression that hasn't been recognized.
func (s *Session) Pending() string {
	return s.pending
}

// Formula returns the formula as displayed: the expression followed by any
// pending text.
func (s *Session) Formula() string {
	return s.engine.Main().Text() + s.pending
}

// Error returns the error being shown. The second result is false unless the
// session is in Error state.
func (s *Session) Error() (ErrorRecord, bool) {
	if s.state != Error {
		return ErrorRecord{}, false
	}
	return ErrorRecord{Kind: s.errKind, Slot: MainSlot}, true
}

// setState changes the state and notifies observers. Moving to Input clears
// the error.
func (s *Session) setState(to State) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	if to == Input {
		s.errKind = ErrNone
	}
	for _, o := range s.observers {
		o.StateChanged(from, to)
	}
}

// redisplay shows the formula with the pending text highlighted.
func (s *Session) redisplay() {
	s.display.ShowFormula(s.Formula(), s.pending, s.Cursor())
}

// cancelUnrequested quietly cancels a live preview so that it can't race the
// edit in progress.
func (s *Session) cancelUnrequested() {
	if s.state == Input {
		s.engine.Cancel(MainSlot, true)
	}
}

// cancelIfEvaluating cancels an evaluation the user asked for. The result
// reports whether there was one.
func (s *Session) cancelIfEvaluating(quiet bool) bool {
	if s.state != Evaluate {
		return false
	}
	s.engine.Cancel(MainSlot, quiet)
	return true
}

// finishAnimation ends any animation in progress so that user events apply
// to the state the animation leads to.
func (s *Session) finishAnimation() {
	if s.state == Animate {
		s.AnimationDone()
	}
}

// beginEdit cancels evaluations that an edit makes obsolete. The result
// reports whether that included an evaluation the user asked for.
func (s *Session) beginEdit() bool {
	s.finishAnimation()
	if s.state == Evaluate {
		return s.cancelIfEvaluating(false)
	}
	// Previews, restored evaluations, and results still being refined are
	// all about to describe a different formula.
	s.engine.Cancel(MainSlot, true)
	return false
}

// evaluateInstantIfNecessary requests a live preview if the expression could
// have a value worth showing.
func (s *Session) evaluateInstantIfNecessary() {
	if s.state == Input && s.engine.Main().HasInterestingOps() {
		s.engine.RequestEvaluation(MainSlot, s)
	}
}

// afterFormulaChange redisplays the formula, returns to Input, and starts a
// preview unless there is pending text.
func (s *Session) afterFormulaChange() {
	s.redisplay()
	s.setState(Input)
	s.display.ClearResult()
	if s.pending != "" {
		// The expression may be unchanged, but its value is no longer the
		// formula's.
		s.engine.Cancel(MainSlot, true)
		return
	}
	s.evaluateInstantIfNecessary()
}

// Type handles text typed by the user, usually a single key. "=" asks for the
// result.
func (s *Session) Type(text string) {
	if text == "=" {
		s.Evaluate()
		return
	}
	s.beginEdit()
	s.insert(text, Explicit)
}

// Paste handles text pasted at the cursor or over the selection.
func (s *Session) Paste(text string) {
	s.beginEdit()
	s.insert(text, Batch)
}

func (s *Session) insert(text string, mode Mode) {
	switch {
	case s.hasSelection():
		s.replaceSelection(text)
	case s.atEnd():
		s.ingest(text, mode)
	default:
		s.insertAtCursor(text)
	}
}

// Evaluate asks for the result of the formula. It does nothing unless the
// session is in Input and the expression has an operation to evaluate.
// Pending text or a trailing operator is a syntax error without asking the
// engine.
func (s *Session) Evaluate() {
	s.finishAnimation()
	s.cancelUnrequested()
	if s.state != Input {
		return
	}
	b := s.engine.Main()
	switch {
	case s.pending != "":
		s.setState(Evaluate)
		s.OnError(MainSlot, ErrSyntax)
	case b.HasTrailingOperator():
		s.display.ClearResult()
		s.setState(Evaluate)
		s.OnError(MainSlot, ErrSyntax)
	case b.HasInterestingOps():
		s.setState(Evaluate)
		s.engine.RequestResult(MainSlot, s)
	}
}

// Delete removes one unit of input before the cursor, or the selection. If
// the user had asked for a result that is still being computed, Delete only
// cancels that.
func (s *Session) Delete() {
	s.finishAnimation()
	if s.Cursor() == 0 && !s.hasSelection() {
		return
	}
	if s.state == Result {
		return
	}
	if s.beginEdit() {
		return
	}
	s.setState(Input)
	switch {
	case s.hasSelection():
		s.replaceSelection("")
		return
	case !s.atEnd():
		s.removeAtCursor()
		return
	case s.pending != "":
		r := []rune(s.pending)
		s.pending = string(r[:len(r)-1])
	default:
		s.engine.Main().Delete()
	}
	s.afterFormulaChange()
}

// Clear empties the formula. It does nothing if the formula is already empty.
func (s *Session) Clear() {
	s.finishAnimation()
	if s.engine.Main().IsEmpty() && s.pending == "" {
		return
	}
	s.engine.Cancel(MainSlot, true)
	s.pending = ""
	s.cursor, s.selEnd = -1, -1
	s.display.ClearResult()
	s.engine.ClearMain()
	s.setState(Input)
	s.redisplay()
}

// ToggleMode switches between degrees and radians. A result that depends on
// the mode is collapsed into a new expression first, so it keeps the value it
// had in the old mode.
func (s *Session) ToggleMode() {
	s.finishAnimation()
	s.cancelIfEvaluating(false)
	deg := !s.engine.DegreeMode()
	if s.state == Result && s.engine.Main().HasTrigFunctions() {
		s.engine.Collapse(s.engine.MaxSlot())
		s.redisplay()
	}
	s.engine.SetDegreeMode(deg)
	if s.state != Result {
		s.setState(Input)
		s.display.ClearResult()
	}
	if s.pending == "" {
		s.evaluateInstantIfNecessary()
	}
}

// AnimationDone ends the animation started by Display.AnimateResult or
// Display.AnimateError.
func (s *Session) AnimationDone() {
	if s.state != Animate {
		return
	}
	s.setState(s.animTo)
	switch s.state {
	case Error:
		s.display.ShowError(s.errKind)
	case Result:
		s.display.ShowResult(s.result)
	}
}

// PrepareForHistory readies the session for the user to browse history. The
// result is false if the session can't allow that yet.
func (s *Session) PrepareForHistory() bool {
	switch s.state {
	case Animate:
		s.AnimationDone()
		return false
	case Evaluate:
		s.cancelIfEvaluating(true)
		s.setState(Input)
		return true
	case Init:
		// The restored evaluation could change the state while history is
		// showing.
		return false
	}
	return true
}

// switchToInput leaves a displayed result for editing. A binary or suffix
// operator continues from the last preserved result; anything else, or an
// empty history, starts over.
func (s *Session) switchToInput(m Match) {
	last := s.engine.MaxSlot()
	if last > MainSlot && (m.Kind == MatchKey || m.Kind == MatchFunc) && (m.Token.IsBinary() || m.Token.IsSuffix()) {
		s.engine.Collapse(last)
	} else {
		s.engine.ClearMain()
	}
	s.setState(Input)
}

// onResult moves to showing a computed result, preserving it in history.
func (s *Session) onResult(animate, preserved bool) {
	if preserved {
		s.engine.Represerve()
	} else {
		s.engine.Preserve(MainSlot)
	}
	s.cursor, s.selEnd = -1, -1
	if animate {
		s.animTo = Result
		s.setState(Animate)
		s.display.AnimateResult(s.result)
		return
	}
	s.setState(Result)
	s.display.ShowResult(s.result)
}

// OnEvaluated implements ResultSink.
func (s *Session) OnEvaluated(slot Slot, r ResultInfo) {
	if slot != MainSlot {
		s.log.Printf("livecalc: evaluation result for unexpected slot %d", slot)
		return
	}
	s.result = r
	switch s.state {
	case Input:
		s.display.ShowResult(r)
	case Evaluate, Init, InitForResult, Result:
		s.onResult(s.state == Evaluate, s.state == InitForResult || s.state == Result)
	default:
		s.log.Printf("livecalc: evaluation result in state %v", s.state)
	}
}

// OnReevaluated implements ResultSink.
func (s *Session) OnReevaluated(slot Slot, r ResultInfo) {
	if slot != MainSlot {
		s.log.Printf("livecalc: reevaluation result for unexpected slot %d", slot)
		return
	}
	s.result = r
	switch s.state {
	case Input, Result:
		s.display.ShowResult(r)
	}
}

// OnCancelled implements ResultSink.
func (s *Session) OnCancelled(slot Slot) {
	if slot != MainSlot {
		s.log.Printf("livecalc: cancellation for unexpected slot %d", slot)
		return
	}
	if s.state != Error {
		s.setState(Input)
		s.display.ClearResult()
	}
}

// OnError implements ResultSink.
func (s *Session) OnError(slot Slot, kind ErrorKind) {
	if slot != MainSlot {
		s.log.Printf("livecalc: error for unexpected slot %d: %v", slot, kind)
		return
	}
	switch s.state {
	case Evaluate:
		s.errKind = kind
		s.animTo = Error
		s.setState(Animate)
		s.display.AnimateError(kind)
	case Animate:
		// A result still animating was wrong after all.
		s.errKind = kind
		s.animTo = Error
	case Init, InitForResult, Result:
		s.errKind = kind
		s.setState(Error)
		s.display.ShowError(kind)
	case Error:
		// Already showing an error.
	default:
		s.display.ClearResult()
	}
}

var _ ResultSink = (*Session)(nil)

type nopDisplay struct{}

func (nopDisplay) ShowFormula(string, string, int) {}
func (nopDisplay) ClearResult()                    {}
func (nopDisplay) ShowResult(ResultInfo)           {}
func (nopDisplay) ShowError(ErrorKind)             {}
func (nopDisplay) AnimateResult(ResultInfo)        {}
func (nopDisplay) AnimateError(ErrorKind)          {}
