package expressions

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zephyrtronium/livecalc"
)

// recordSink is a ResultSink that records what it receives.
type recordSink struct {
	events []string
	// onEval is called after recording OnEvaluated.
	onEval func(slot livecalc.Slot, r livecalc.ResultInfo)
}

func (s *recordSink) OnEvaluated(slot livecalc.Slot, r livecalc.ResultInfo) {
	s.events = append(s.events, "eval:"+r.Text)
	if s.onEval != nil {
		s.onEval(slot, r)
	}
}

func (s *recordSink) OnCancelled(slot livecalc.Slot) {
	s.events = append(s.events, "cancel")
}

func (s *recordSink) OnReevaluated(slot livecalc.Slot, r livecalc.ResultInfo) {
	s.events = append(s.events, "reeval:"+r.Text)
}

func (s *recordSink) OnError(slot livecalc.Slot, kind livecalc.ErrorKind) {
	s.events = append(s.events, "error:"+kind.String())
}

// build appends keys to b. Parts starting with E are exponents.
func build(t *testing.T, b livecalc.Builder, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if len(p) > 1 && p[0] == 'E' {
			if !b.AddExponent(p) {
				t.Fatalf("exponent %q rejected after %q", p, b.Text())
			}
			continue
		}
		m := livecalc.Recognize(p, 0)
		if (m.Kind != livecalc.MatchKey && m.Kind != livecalc.MatchFunc) || m.End != len(p) {
			t.Fatalf("%q is not one key: %+v", p, m)
		}
		if !b.Append(m.Token) {
			t.Fatalf("%q rejected after %q", p, b.Text())
		}
	}
}

// pump runs the loop until done reports true.
func pump(t *testing.T, l *livecalc.Loop, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for !done() {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("gave up waiting: %v", err)
		}
		l.RunPending()
	}
}

// idle reports whether e has no outstanding requests.
func idle(e *Evaluator) func() bool {
	return func() bool { return !e.Busy() }
}

func newTestEvaluator(opts ...EvaluatorOption) (*Evaluator, *livecalc.Loop) {
	l := livecalc.NewLoop()
	opts = append([]EvaluatorOption{InitialPrec(64), MaxPrec(256)}, opts...)
	return NewEvaluator(l, opts...), l
}

func TestEvaluatorRequests(t *testing.T) {
	cases := []struct {
		name     string
		parts    []string
		deg      bool
		required bool
		events   []string
	}{
		{"speculative", []string{"1", "+", "2"}, false, false, []string{"eval:3"}},
		{"speculative-third", []string{"1", "÷", "3"}, false, false, []string{"eval:0.3333333333333333"}},
		{"confirmed", []string{"1", "+", "1"}, false, true, []string{"eval:2"}},
		{"fact", []string{"5", "!"}, false, true, []string{"eval:120"}},
		{"pct", []string{"2", "0", "0", "×", "5", "%"}, false, true, []string{"eval:10"}},
		{"large", []string{"2", "E23", "×", "5"}, false, true, []string{"eval:1E24"}},
		{"small", []string{"1", ".", "5", "E−5"}, false, true, []string{"eval:1.5E−5"}},
		{"negative", []string{"1", "−", "3"}, false, true, []string{"eval:−2"}},
		{"unclosed", []string{"2", "×", "(", "1", "+", "2"}, false, true, []string{"eval:6"}},
		{"degrees", []string{"sin(", "3", "0"}, true, true, []string{"eval:0.5"}},
		{"syntax", []string{"5", "+"}, false, true, []string{"error:syntax error"}},
		{"domain", []string{"1", "÷", "0"}, false, true, []string{"error:evaluation error"}},
		{"too-large", []string{"1", "0", "^", "1", "0", "^", "1", "0"}, false, true, []string{"error:value too large"}},
		{"tan90", []string{"tan(", "9", "0"}, true, true, []string{"error:evaluation error"}},
		// The negative value is lost to rounding at first and found at higher
		// precision.
		{"refined-error", []string{"√", "(", "0", "−", "1", "E−20"}, false, true, []string{"eval:0", "error:evaluation error"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, l := newTestEvaluator()
			e.SetDegreeMode(c.deg)
			build(t, e.Main(), c.parts...)
			var s recordSink
			if c.required {
				e.RequestResult(livecalc.MainSlot, &s)
			} else {
				e.RequestEvaluation(livecalc.MainSlot, &s)
			}
			pump(t, l, idle(e))
			if strings.Join(s.events, " ") != strings.Join(c.events, " ") {
				t.Errorf("wrong events:\n\twant %q\n\tgot  %q", c.events, s.events)
			}
		})
	}
}

func TestEvaluatorRefines(t *testing.T) {
	e, l := newTestEvaluator()
	build(t, e.Main(), "1", "÷", "3")
	var s recordSink
	s.onEval = func(slot livecalc.Slot, r livecalc.ResultInfo) {
		if r.Prec != 64 {
			t.Errorf("first result at precision %d", r.Prec)
		}
		e.Preserve(slot)
	}
	e.RequestResult(livecalc.MainSlot, &s)
	pump(t, l, idle(e))
	if len(s.events) != 3 {
		t.Fatalf("wrong number of events: %q", s.events)
	}
	if s.events[0] != "eval:0.3333333333333333" {
		t.Errorf("wrong first result %q", s.events[0])
	}
	for _, ev := range s.events[1:] {
		if !strings.HasPrefix(ev, "reeval:0.33333333333333333333") {
			t.Errorf("wrong refined result %q", ev)
		}
	}
	h := e.History()
	if len(h) != 1 {
		t.Fatalf("wrong history %+v", h)
	}
	last := strings.TrimPrefix(s.events[2], "reeval:")
	if h[0].Value != last {
		t.Errorf("history has %q, want latest value %q", h[0].Value, last)
	}
	if h[0].Expr.Text() != "1÷3" {
		t.Errorf("history has expression %q", h[0].Expr.Text())
	}
}

func TestEvaluatorCancel(t *testing.T) {
	e, l := newTestEvaluator()
	if e.Cancel(livecalc.MainSlot, false) {
		t.Error("cancelled a request that doesn't exist")
	}
	build(t, e.Main(), "2", "^", "1", "0", "0", "0")
	var s recordSink
	e.RequestResult(livecalc.MainSlot, &s)
	if !e.Cancel(livecalc.MainSlot, false) {
		t.Error("couldn't cancel outstanding request")
	}
	pump(t, l, func() bool { return len(s.events) > 0 })
	if strings.Join(s.events, " ") != "cancel" {
		t.Errorf("wrong events %q", s.events)
	}

	// Quiet cancels say nothing, and stale results never arrive.
	var q recordSink
	e.RequestResult(livecalc.MainSlot, &q)
	if !e.Cancel(livecalc.MainSlot, true) {
		t.Error("couldn't cancel outstanding request")
	}
	build(t, e.Main(), "+", "1")
	e.RequestEvaluation(livecalc.MainSlot, &q)
	pump(t, l, idle(e))
	if len(q.events) != 1 || !strings.HasPrefix(q.events[0], "eval:1.07150860718626") {
		t.Errorf("wrong events %q", q.events)
	}
}

func TestEvaluatorReplaces(t *testing.T) {
	e, l := newTestEvaluator()
	build(t, e.Main(), "1", "+", "1")
	var s recordSink
	e.RequestEvaluation(livecalc.MainSlot, &s)
	build(t, e.Main(), "+", "1")
	e.RequestEvaluation(livecalc.MainSlot, &s)
	pump(t, l, idle(e))
	if strings.Join(s.events, " ") != "eval:3" {
		t.Errorf("wrong events %q", s.events)
	}
}

func TestEvaluatorCancelAll(t *testing.T) {
	e, l := newTestEvaluator()
	build(t, e.Main(), "9", "9", "9", "9", "!")
	var s recordSink
	e.RequestResult(livecalc.MainSlot, &s)
	e.CancelAll(false)
	if !idle(e)() {
		t.Error("requests outstanding after CancelAll")
	}
	pump(t, l, func() bool { return len(s.events) > 0 })
	if strings.Join(s.events, " ") != "cancel" {
		t.Errorf("wrong events %q", s.events)
	}
}

func TestEvaluatorHistory(t *testing.T) {
	e, l := newTestEvaluator()
	if e.MaxSlot() != livecalc.MainSlot {
		t.Errorf("empty evaluator has max slot %d", e.MaxSlot())
	}
	var s recordSink
	s.onEval = func(slot livecalc.Slot, r livecalc.ResultInfo) { e.Preserve(slot) }

	build(t, e.Main(), "2", "×", "3")
	e.RequestResult(livecalc.MainSlot, &s)
	pump(t, l, idle(e))
	if e.MaxSlot() != 1 {
		t.Fatalf("max slot is %d after preserving", e.MaxSlot())
	}
	e.Collapse(1)
	toks := e.Main().Tokens()
	if len(toks) != 1 || toks[0].Kind() != livecalc.KindResult || toks[0].Slot() != 1 || toks[0].Text() != "6" {
		t.Fatalf("wrong collapsed expression %v", toks)
	}

	build(t, e.Main(), "+", "1")
	e.RequestResult(livecalc.MainSlot, &s)
	pump(t, l, idle(e))
	if e.MaxSlot() != 2 {
		t.Fatalf("max slot is %d after preserving", e.MaxSlot())
	}
	e.Collapse(2)
	build(t, e.Main(), "×")
	e.Main().Append(livecalc.ResultToken(1, "6"))
	e.RequestResult(livecalc.MainSlot, &s)
	pump(t, l, idle(e))
	want := "eval:6 eval:7 eval:42"
	if got := strings.Join(s.events, " "); got != want {
		t.Errorf("wrong events:\n\twant %q\n\tgot  %q", want, got)
	}

	// Restoring into a new evaluator keeps the history and the expression.
	b, err := e.SaveState()
	if err != nil {
		t.Fatalf("couldn't save: %v", err)
	}
	f, fl := newTestEvaluator()
	if err := f.RestoreState(b); err != nil {
		t.Fatalf("couldn't restore: %v", err)
	}
	if f.MaxSlot() != 3 {
		t.Errorf("restored max slot is %d", f.MaxSlot())
	}
	if got, want := f.Main().Text(), e.Main().Text(); got != want {
		t.Errorf("restored main %q, want %q", got, want)
	}
	var r recordSink
	f.RequestResult(livecalc.MainSlot, &r)
	pump(t, fl, idle(f))
	if got := strings.Join(r.events, " "); got != "eval:42" {
		t.Errorf("restored evaluation gave %q", got)
	}
}

func TestEvaluatorCollapseUnknown(t *testing.T) {
	e, _ := newTestEvaluator()
	defer func() {
		if recover() == nil {
			t.Error("collapsing an unknown slot didn't panic")
		}
	}()
	e.Collapse(1)
}

func TestEvaluatorHistoryDegrees(t *testing.T) {
	e, l := newTestEvaluator()
	var s recordSink
	s.onEval = func(slot livecalc.Slot, r livecalc.ResultInfo) { e.Preserve(slot) }
	e.SetDegreeMode(true)
	build(t, e.Main(), "sin(", "3", "0")
	e.RequestResult(livecalc.MainSlot, &s)
	pump(t, l, idle(e))
	if h := e.History(); len(h) != 1 || !h[0].Degrees {
		t.Fatalf("wrong history %+v", h)
	}
	// The entry keeps its own mode after the main expression changes modes.
	e.SetDegreeMode(false)
	e.Collapse(1)
	build(t, e.Main(), "×", "4")
	e.RequestResult(livecalc.MainSlot, &s)
	pump(t, l, idle(e))
	if got := strings.Join(s.events, " "); got != "eval:0.5 eval:2" {
		t.Errorf("wrong events %q", got)
	}
}

func TestEvaluatorClearMain(t *testing.T) {
	e, l := newTestEvaluator()
	build(t, e.Main(), "4", "!")
	var s recordSink
	e.RequestResult(livecalc.MainSlot, &s)
	e.ClearMain()
	if !e.Main().IsEmpty() {
		t.Errorf("main not empty: %q", e.Main().Text())
	}
	if !idle(e)() {
		t.Error("request outstanding after ClearMain")
	}
	l.RunPending()
	if len(s.events) != 0 {
		t.Errorf("events after clear: %q", s.events)
	}
}

func TestEvaluatorRestoreErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"json", `{"main":`},
		{"token", `{"main":[{"t":"?"}]}`},
		{"misnumbered", `{"main":[],"history":[{"slot":2,"expr":[{"t":"1"}],"value":"1"}]}`},
		{"no-expr", `{"main":[],"history":[{"slot":1,"value":"1"}]}`},
		{"forward-ref", `{"main":[],"history":[{"slot":1,"expr":[{"t":"1","s":1}],"value":"1"}]}`},
		{"main-ref", `{"main":[{"t":"1","s":2}],"history":[{"slot":1,"expr":[{"t":"1"}],"value":"1"}]}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, _ := newTestEvaluator()
			build(t, e.Main(), "7")
			if err := e.RestoreState([]byte(c.data)); err == nil {
				t.Errorf("restoring %s succeeded", c.data)
			}
			if e.Main().Text() != "7" || e.MaxSlot() != 0 {
				t.Errorf("failed restore changed evaluator: %q, %d", e.Main().Text(), e.MaxSlot())
			}
		})
	}
	var herr *HistoryError
	e, _ := newTestEvaluator()
	err := e.RestoreState([]byte(cases[2].data))
	if !errors.As(err, &herr) || herr.Slot != 2 {
		t.Errorf("wrong error %#v", err)
	}
}

// memHistory is a HistoryStore in memory.
type memHistory struct {
	mu      sync.Mutex
	entries []Entry
	adds    int
	updates int
	fail    error
}

func (m *memHistory) AddEntry(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.adds++
	m.entries = append(m.entries, e)
	return nil
}

func (m *memHistory) UpdateEntry(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.updates++
	m.entries[e.Slot-1].Value = e.Value
	return nil
}

func (m *memHistory) Entries(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...), m.fail
}

func TestEvaluatorWritesHistory(t *testing.T) {
	var store memHistory
	when := time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC)
	e, l := newTestEvaluator(WithHistory(&store), Clock(func() time.Time { return when }))
	var s recordSink
	s.onEval = func(slot livecalc.Slot, r livecalc.ResultInfo) { e.Preserve(slot) }
	build(t, e.Main(), "2", "÷", "3")
	e.RequestResult(livecalc.MainSlot, &s)
	pump(t, l, idle(e))
	e.WaitForWrites()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.adds != 1 || store.updates != 2 {
		t.Errorf("wrong writes: %d adds, %d updates", store.adds, store.updates)
	}
	if len(store.entries) != 1 {
		t.Fatalf("wrong entries %+v", store.entries)
	}
	got := store.entries[0]
	if got.Value != e.History()[0].Value || !got.Time.Equal(when) || got.Slot != 1 {
		t.Errorf("wrong entry %+v", got)
	}

	f, _ := newTestEvaluator(WithHistory(&memHistory{entries: store.entries}))
	if err := f.LoadHistory(context.Background()); err != nil {
		t.Fatalf("couldn't load history: %v", err)
	}
	if f.MaxSlot() != 1 {
		t.Errorf("loaded max slot %d", f.MaxSlot())
	}
}

func TestEvaluatorWriteFailures(t *testing.T) {
	var buf bytes.Buffer
	store := memHistory{fail: errors.New("disk full")}
	e, l := newTestEvaluator(WithHistory(&store), Logger(log.New(&buf, "", 0)))
	var s recordSink
	s.onEval = func(slot livecalc.Slot, r livecalc.ResultInfo) { e.Preserve(slot) }
	build(t, e.Main(), "1", "+", "1")
	e.RequestResult(livecalc.MainSlot, &s)
	pump(t, l, idle(e))
	e.WaitForWrites()
	if !strings.Contains(buf.String(), "disk full") {
		t.Errorf("failure not logged: %q", buf.String())
	}
	// The history is kept in memory anyway.
	if e.MaxSlot() != 1 {
		t.Errorf("max slot %d", e.MaxSlot())
	}
	if err := e.LoadHistory(context.Background()); err == nil {
		t.Error("loading from a failing store succeeded")
	}
}

func TestRepreserve(t *testing.T) {
	e, l := newTestEvaluator()
	var s recordSink
	s.onEval = func(slot livecalc.Slot, r livecalc.ResultInfo) { e.Preserve(slot) }
	build(t, e.Main(), "1", "÷", "7")
	e.RequestEvaluation(livecalc.MainSlot, &s)
	pump(t, l, idle(e))
	b, err := e.SaveState()
	if err != nil {
		t.Fatal(err)
	}
	// A restored result is refined into the entry it came from rather than
	// preserved again.
	f, fl := newTestEvaluator()
	if err := f.RestoreState(b); err != nil {
		t.Fatal(err)
	}
	var r recordSink
	r.onEval = func(slot livecalc.Slot, ri livecalc.ResultInfo) { f.Represerve() }
	f.RequestResult(livecalc.MainSlot, &r)
	pump(t, fl, idle(f))
	h := f.History()
	if len(h) != 1 {
		t.Fatalf("wrong history %+v", h)
	}
	if !strings.HasPrefix(h[0].Value, "0.142857142857142857142857") {
		t.Errorf("entry not refined: %q", h[0].Value)
	}
}

func TestFormatResult(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		prec   uint
		text   string
		digits int
	}{
		{"zero", "0", 64, "0", 1},
		{"negzero", "-0", 64, "0", 1},
		{"int", "123456", 64, "123456", 6},
		{"frac", "1.5", 64, "1.5", 2},
		{"neg", "-2", 64, "−2", 1},
		{"small", "0.00123", 64, "0.00123", 3},
		{"tiny", "1.5e-5", 64, "1.5E−5", 2},
		{"large", "1e23", 64, "1E23", 1},
		{"neglarge", "-2.5e30", 64, "−2.5E30", 2},
		{"third", "0.333333333333333333333333333", 64, "0.3333333333333333", 16},
		{"large-128", "1e24", 128, "1E24", 1},
		{"large-256", "1e24", 256, "1E24", 1},
		{"wide-256", "1e15", 256, "1000000000000000", 1},
		{"tiny-256", "1.5e-5", 256, "1.5E−5", 2},
		{"low-prec", "3", 4, "3", 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, ok := new(big.Float).SetPrec(c.prec).SetString(c.src)
			if !ok {
				t.Fatalf("bad number %q", c.src)
			}
			r := formatResult(v, c.prec)
			if r.Text != c.text || r.Digits != c.digits || r.Prec != c.prec {
				t.Errorf("want %q with %d digits at %d, got %+v", c.text, c.digits, c.prec, r)
			}
		})
	}
}
