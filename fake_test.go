package livecalc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeRequest struct {
	slot     Slot
	sink     ResultSink
	required bool
}

// fakeEngine is an Engine that records calls and completes requests only
// when told to.
type fakeEngine struct {
	main    *Expr
	history []string
	req     *fakeRequest
	calls   []string
	deg     bool

	restoreErr  error
	represerved int
	waited      int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{main: new(Expr)}
}

func (f *fakeEngine) Main() Builder { return f.main }

func (f *fakeEngine) RequestEvaluation(slot Slot, sink ResultSink) {
	f.calls = append(f.calls, "eval")
	f.req = &fakeRequest{slot: slot, sink: sink}
}

func (f *fakeEngine) RequestResult(slot Slot, sink ResultSink) {
	f.calls = append(f.calls, "result")
	f.req = &fakeRequest{slot: slot, sink: sink, required: true}
}

func (f *fakeEngine) Cancel(slot Slot, quiet bool) bool {
	if quiet {
		f.calls = append(f.calls, "cancel-quiet")
	} else {
		f.calls = append(f.calls, "cancel")
	}
	had := f.req != nil
	f.req = nil
	return had
}

func (f *fakeEngine) CancelAll(quiet bool) {
	f.calls = append(f.calls, "cancel-all")
	f.req = nil
}

func (f *fakeEngine) Collapse(slot Slot) {
	f.calls = append(f.calls, fmt.Sprint("collapse ", slot))
	f.main = NewExpr(ResultToken(slot, f.history[slot-1]))
}

func (f *fakeEngine) Preserve(slot Slot) Slot {
	f.calls = append(f.calls, "preserve")
	f.history = append(f.history, "v"+f.main.Text())
	return Slot(len(f.history))
}

func (f *fakeEngine) Represerve() {
	f.calls = append(f.calls, "represerve")
	f.represerved++
}

func (f *fakeEngine) MaxSlot() Slot { return Slot(len(f.history)) }

func (f *fakeEngine) ClearMain() {
	f.calls = append(f.calls, "clear")
	f.main = new(Expr)
}

func (f *fakeEngine) DegreeMode() bool       { return f.deg }
func (f *fakeEngine) SetDegreeMode(deg bool) { f.deg = deg }

func (f *fakeEngine) SaveState() ([]byte, error) {
	return json.Marshal(f.main)
}

func (f *fakeEngine) RestoreState(b []byte) error {
	if f.restoreErr != nil {
		return f.restoreErr
	}
	e := new(Expr)
	if err := json.Unmarshal(b, e); err != nil {
		return err
	}
	f.main = e
	return nil
}

func (f *fakeEngine) WaitForWrites() { f.waited++ }

// complete delivers a first result for the outstanding request. Speculative
// requests end there.
func (f *fakeEngine) complete(t *testing.T, text string) {
	t.Helper()
	if f.req == nil {
		t.Fatal("no outstanding request")
	}
	r := f.req
	if !r.required {
		f.req = nil
	}
	r.sink.OnEvaluated(r.slot, ResultInfo{Text: text, Digits: len(text), Prec: 64})
}

// fail reports an error for the outstanding request and ends it.
func (f *fakeEngine) fail(t *testing.T, kind ErrorKind) {
	t.Helper()
	if f.req == nil {
		t.Fatal("no outstanding request")
	}
	r := f.req
	f.req = nil
	r.sink.OnError(r.slot, kind)
}

func (f *fakeEngine) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeEngine) reset() {
	f.calls = nil
}

var _ Engine = (*fakeEngine)(nil)

// recordDisplay is a Display that records what it was told.
type recordDisplay struct {
	events      []string
	formula     string
	unprocessed string
	cursor      int
}

func (d *recordDisplay) ShowFormula(formula, unprocessed string, cursor int) {
	d.formula, d.unprocessed, d.cursor = formula, unprocessed, cursor
	d.events = append(d.events, "formula:"+formula)
}

func (d *recordDisplay) ClearResult() { d.events = append(d.events, "clear") }

func (d *recordDisplay) ShowResult(r ResultInfo) {
	d.events = append(d.events, "result:"+r.Text)
}

func (d *recordDisplay) ShowError(kind ErrorKind) {
	d.events = append(d.events, "error:"+kind.String())
}

func (d *recordDisplay) AnimateResult(r ResultInfo) {
	d.events = append(d.events, "animate-result:"+r.Text)
}

func (d *recordDisplay) AnimateError(kind ErrorKind) {
	d.events = append(d.events, "animate-error:"+kind.String())
}

func (d *recordDisplay) last() string {
	if len(d.events) == 0 {
		return ""
	}
	return d.events[len(d.events)-1]
}

type recordObserver struct {
	changes []string
}

func (o *recordObserver) StateChanged(from, to State) {
	o.changes = append(o.changes, from.String()+"->"+to.String())
}

func newTestSession(opts ...SessionOption) (*Session, *fakeEngine, *recordDisplay) {
	f := newFakeEngine()
	d := new(recordDisplay)
	return NewSession(f, d, opts...), f, d
}

// texts returns the display texts of the main expression's tokens.
func texts(b Builder) []string {
	toks := b.Tokens()
	r := make([]string, len(toks))
	for i, t := range toks {
		r[i] = t.Text()
	}
	return r
}

func join(v []string) string {
	return strings.Join(v, " ")
}

// typeKeys types each rune of s as a separate key.
func typeKeys(s *Session, keys string) {
	for _, r := range keys {
		s.Type(string(r))
	}
}

// toResult drives a session through evaluating src to the Result state.
func toResult(t *testing.T, s *Session, f *fakeEngine, src, val string) {
	t.Helper()
	s.Paste(src)
	s.Evaluate()
	if s.State() != Evaluate {
		t.Fatalf("state after Evaluate is %v, not Evaluate", s.State())
	}
	f.complete(t, val)
	s.AnimationDone()
	if s.State() != Result {
		t.Fatalf("state after animation is %v, not Result", s.State())
	}
}

var errRestore = errors.New("bad engine state")
