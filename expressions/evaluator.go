package expressions

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zephyrtronium/livecalc"
)

// Evaluator is a livecalc.Engine that evaluates calculator expressions with
// this package. Evaluation happens on background goroutines; results are
// delivered through a livecalc.Poster. All methods must be called from the
// goroutine that runs the Poster's functions.
type Evaluator struct {
	post    livecalc.Poster
	main    *livecalc.Expr
	deg     bool
	entries []Entry
	reqs    map[livecalc.Slot]*request
	intent  uint64
	// latest is the most recent value delivered for the main slot.
	latest string
	// mainEntry is the history slot that refined main results update, or
	// MainSlot if none.
	mainEntry livecalc.Slot

	initial uint
	max     uint
	history HistoryStore
	log     *log.Logger
	now     func() time.Time

	wmu     sync.Mutex
	wq      []func(context.Context) error
	writing bool
	writes  sync.WaitGroup
}

var _ livecalc.Engine = (*Evaluator)(nil)

// request is an outstanding evaluation.
type request struct {
	intent   uint64
	cancel   context.CancelFunc
	sink     livecalc.ResultSink
	required bool
}

// EvaluatorOption is an option for creating an Evaluator.
type EvaluatorOption interface {
	evalOption()
}

type (
	initprecopt uint
	maxprecopt  uint
	historyopt  struct{ h HistoryStore }
	logopt      struct{ l *log.Logger }
	clockopt    func() time.Time
)

func (initprecopt) evalOption() {}
func (maxprecopt) evalOption()  {}
func (historyopt) evalOption()  {}
func (logopt) evalOption()      {}
func (clockopt) evalOption()    {}

// InitialPrec sets the precision of the first evaluation of every request.
// The default is 64.
func InitialPrec(prec uint) EvaluatorOption {
	return initprecopt(prec)
}

// MaxPrec sets the precision past which a requested result is no longer
// refined. The default is 1024.
func MaxPrec(prec uint) EvaluatorOption {
	return maxprecopt(prec)
}

// WithHistory sets a store to which preserved results are written.
func WithHistory(h HistoryStore) EvaluatorOption {
	return historyopt{h}
}

// Logger sets the logger for failures the evaluator can't report otherwise,
// like failed history writes. By default, nothing is logged.
func Logger(l *log.Logger) EvaluatorOption {
	return logopt{l}
}

// Clock sets the function that timestamps history entries.
func Clock(now func() time.Time) EvaluatorOption {
	return clockopt(now)
}

// NewEvaluator creates an evaluator with an empty main expression and
// history. post runs result deliveries on the foreground goroutine.
func NewEvaluator(post livecalc.Poster, opts ...EvaluatorOption) *Evaluator {
	e := Evaluator{
		post:    post,
		main:    new(livecalc.Expr),
		reqs:    make(map[livecalc.Slot]*request),
		initial: 64,
		max:     1024,
		log:     log.New(io.Discard, "", 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		switch opt := opt.(type) {
		case initprecopt:
			e.initial = uint(opt)
		case maxprecopt:
			e.max = uint(opt)
		case historyopt:
			e.history = opt.h
		case logopt:
			e.log = opt.l
		case clockopt:
			e.now = opt
		default:
			panic("expressions: unknown option type")
		}
	}
	if e.initial < 16 {
		e.initial = 16
	}
	if e.max < e.initial {
		e.max = e.initial
	}
	return &e
}

// Main returns the main expression.
func (e *Evaluator) Main() livecalc.Builder {
	return e.main
}

// RequestEvaluation evaluates a slot once at the initial precision.
func (e *Evaluator) RequestEvaluation(slot livecalc.Slot, sink livecalc.ResultSink) {
	e.start(slot, sink, false)
}

// RequestResult evaluates a slot at the initial precision, then again at
// doubled precision until the displayed value stops changing or the maximum
// precision is reached.
func (e *Evaluator) RequestResult(slot livecalc.Slot, sink livecalc.ResultSink) {
	e.start(slot, sink, true)
}

func (e *Evaluator) start(slot livecalc.Slot, sink livecalc.ResultSink, required bool) {
	e.Cancel(slot, true)
	if slot == livecalc.MainSlot {
		e.mainEntry = livecalc.MainSlot
	}
	j := e.job(slot)
	e.intent++
	ctx, cancel := context.WithCancel(context.Background())
	r := &request{intent: e.intent, cancel: cancel, sink: sink, required: required}
	e.reqs[slot] = r
	go e.run(ctx, slot, r, j)
}

// Cancel stops the request outstanding for slot.
func (e *Evaluator) Cancel(slot livecalc.Slot, quiet bool) bool {
	r := e.reqs[slot]
	if r == nil {
		return false
	}
	r.cancel()
	delete(e.reqs, slot)
	if slot == livecalc.MainSlot {
		e.mainEntry = livecalc.MainSlot
	}
	if !quiet {
		e.post.Post(func() {
			// A newer request means the sink has moved on.
			if cur := e.reqs[slot]; cur != nil && cur.intent > r.intent {
				return
			}
			r.sink.OnCancelled(slot)
		})
	}
	return true
}

// Busy reports whether any request is outstanding.
func (e *Evaluator) Busy() bool {
	return len(e.reqs) > 0
}

// CancelAll cancels every outstanding request.
func (e *Evaluator) CancelAll(quiet bool) {
	for slot := range e.reqs {
		e.Cancel(slot, quiet)
	}
}

// Collapse replaces the main expression with the result held in a history
// slot. Panics if there is no such slot.
func (e *Evaluator) Collapse(slot livecalc.Slot) {
	ent := e.entry(slot)
	e.Cancel(livecalc.MainSlot, true)
	e.main = livecalc.NewExpr(livecalc.ResultToken(slot, ent.Value))
}

// Preserve adds the main expression and its latest value to the history.
// Panics if slot is not the main slot.
func (e *Evaluator) Preserve(slot livecalc.Slot) livecalc.Slot {
	if slot != livecalc.MainSlot {
		panic("expressions: preserve slot " + strconv.FormatInt(int64(slot), 10))
	}
	ent := Entry{
		Slot:    livecalc.Slot(len(e.entries) + 1),
		Expr:    livecalc.NewExpr(e.main.Tokens()...),
		Degrees: e.deg,
		Value:   e.latest,
		Time:    e.now(),
	}
	e.entries = append(e.entries, ent)
	e.mainEntry = ent.Slot
	if e.history != nil {
		e.write(func(ctx context.Context) error { return e.history.AddEntry(ctx, ent) })
	}
	return ent.Slot
}

// Represerve makes the most recent history entry receive refined values of
// the main expression, as though it had just been preserved.
func (e *Evaluator) Represerve() {
	if len(e.entries) == 0 {
		return
	}
	e.mainEntry = e.MaxSlot()
	e.refine()
}

// refine updates the entry preserved from the main expression with its latest
// value.
func (e *Evaluator) refine() {
	if e.mainEntry == livecalc.MainSlot || e.latest == "" {
		return
	}
	ent := &e.entries[e.mainEntry-1]
	if ent.Value == e.latest {
		return
	}
	ent.Value = e.latest
	if e.history != nil {
		up := *ent
		e.write(func(ctx context.Context) error { return e.history.UpdateEntry(ctx, up) })
	}
}

// MaxSlot returns the most recent history slot.
func (e *Evaluator) MaxSlot() livecalc.Slot {
	return livecalc.Slot(len(e.entries))
}

// ClearMain empties the main expression.
func (e *Evaluator) ClearMain() {
	e.Cancel(livecalc.MainSlot, true)
	e.main.Clear()
	e.latest = ""
}

// DegreeMode returns whether the main expression uses degrees.
func (e *Evaluator) DegreeMode() bool {
	return e.deg
}

// SetDegreeMode sets whether the main expression uses degrees.
func (e *Evaluator) SetDegreeMode(degrees bool) {
	e.deg = degrees
}

// History returns a copy of the history entries.
func (e *Evaluator) History() []Entry {
	return append([]Entry(nil), e.entries...)
}

// LoadHistory replaces the history with the entries in the evaluator's
// history store. It does nothing if there is no store.
func (e *Evaluator) LoadHistory(ctx context.Context) error {
	if e.history == nil {
		return nil
	}
	entries, err := e.history.Entries(ctx)
	if err != nil {
		return err
	}
	if err := checkHistory(entries); err != nil {
		return err
	}
	e.CancelAll(true)
	e.entries = entries
	e.mainEntry = livecalc.MainSlot
	return nil
}

// engineState is the saved form of an Evaluator.
type engineState struct {
	Main    *livecalc.Expr `json:"main"`
	Degrees bool           `json:"degrees,omitempty"`
	History []Entry        `json:"history,omitempty"`
}

// SaveState encodes the main expression, angle mode, and history.
func (e *Evaluator) SaveState() ([]byte, error) {
	return json.Marshal(engineState{Main: e.main, Degrees: e.deg, History: e.entries})
}

// RestoreState replaces the evaluator's state with one from SaveState. On
// error, the evaluator is unchanged.
func (e *Evaluator) RestoreState(b []byte) error {
	var s engineState
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s.Main == nil {
		s.Main = new(livecalc.Expr)
	}
	if err := checkHistory(s.History); err != nil {
		return err
	}
	for _, t := range s.Main.Tokens() {
		if t.Kind() == livecalc.KindResult && int(t.Slot()) > len(s.History) {
			return &HistoryError{Index: len(s.History), Slot: t.Slot()}
		}
	}
	e.CancelAll(true)
	e.main = s.Main
	e.deg = s.Degrees
	e.entries = s.History
	e.latest = ""
	e.mainEntry = livecalc.MainSlot
	return nil
}

// WaitForWrites blocks until history writes are finished.
func (e *Evaluator) WaitForWrites() {
	e.writes.Wait()
}

// write queues a history write. Writes happen in order on one goroutine.
func (e *Evaluator) write(f func(context.Context) error) {
	e.writes.Add(1)
	e.wmu.Lock()
	e.wq = append(e.wq, f)
	start := !e.writing
	e.writing = true
	e.wmu.Unlock()
	if start {
		go e.drain()
	}
}

func (e *Evaluator) drain() {
	for {
		e.wmu.Lock()
		if len(e.wq) == 0 {
			e.writing = false
			e.wmu.Unlock()
			return
		}
		f := e.wq[0]
		e.wq = e.wq[1:]
		e.wmu.Unlock()
		if err := f(context.Background()); err != nil {
			e.log.Print("expressions: writing history: ", err)
		}
		e.writes.Done()
	}
}

func (e *Evaluator) entry(slot livecalc.Slot) *Entry {
	if slot <= livecalc.MainSlot || int(slot) > len(e.entries) {
		panic("expressions: no history slot " + strconv.FormatInt(int64(slot), 10))
	}
	return &e.entries[slot-1]
}

// source is one slot's expression as it was when evaluation began.
type source struct {
	toks []livecalc.Token
	refs []livecalc.Slot
	deg  bool
}

// job is everything needed to evaluate a slot away from the foreground: the
// slot's source and that of every history entry it refers to.
type job map[livecalc.Slot]source

func (e *Evaluator) job(slot livecalc.Slot) job {
	j := make(job)
	pending := []livecalc.Slot{slot}
	for len(pending) > 0 {
		s := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if _, ok := j[s]; ok {
			continue
		}
		var (
			toks []livecalc.Token
			deg  bool
		)
		if s == livecalc.MainSlot {
			toks, deg = e.main.Tokens(), e.deg
		} else {
			ent := e.entry(s)
			toks, deg = ent.Expr.Tokens(), ent.Degrees
		}
		refs := Refs(toks)
		j[s] = source{toks: toks, refs: refs, deg: deg}
		pending = append(pending, refs...)
	}
	return j
}

// parsed is a job with its sources parsed.
type parsed struct {
	exprs map[livecalc.Slot]*Expr
	j     job
}

func (j job) parse() (*parsed, error) {
	p := parsed{exprs: make(map[livecalc.Slot]*Expr, len(j)), j: j}
	for slot, s := range j {
		x, err := ParseTokens(s.toks)
		if err != nil {
			return nil, err
		}
		p.exprs[slot] = x
	}
	return &p, nil
}

// eval evaluates a slot at a precision. memo holds values of slots already
// evaluated at the same precision.
func (p *parsed) eval(slot livecalc.Slot, prec uint, memo map[livecalc.Slot]*big.Float) (*big.Float, error) {
	if v := memo[slot]; v != nil {
		return v, nil
	}
	s := p.j[slot]
	opts := []ContextOption{Prec(prec), Degrees(s.deg), Strict(true)}
	for _, ref := range s.refs {
		v, err := p.eval(ref, prec, memo)
		if err != nil {
			return nil, err
		}
		opts = append(opts, SetVar(HistoryVar(ref), v))
	}
	ctx := NewContext(opts...)
	v := ctx.Eval(p.exprs[slot])
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	memo[slot] = v
	return v, nil
}

// run evaluates a request in the background and posts what it finds.
func (e *Evaluator) run(ctx context.Context, slot livecalc.Slot, r *request, j job) {
	p, err := j.parse()
	if err != nil {
		e.fail(ctx, slot, r, err)
		return
	}
	var last string
	for prec := e.initial; ; prec *= 2 {
		if prec > e.max {
			prec = e.max
		}
		v, err := p.eval(slot, prec, make(map[livecalc.Slot]*big.Float))
		if err != nil {
			e.fail(ctx, slot, r, err)
			return
		}
		info := formatResult(v, prec)
		done := !r.required || prec >= e.max || info.Text == last
		switch {
		case last == "":
			e.deliver(ctx, slot, r, done, func() { r.sink.OnEvaluated(slot, info) }, info)
		case info.Text != last:
			e.deliver(ctx, slot, r, done, func() { r.sink.OnReevaluated(slot, info) }, info)
		default:
			e.deliver(ctx, slot, r, done, nil, info)
		}
		if done || ctx.Err() != nil {
			return
		}
		last = info.Text
	}
}

// deliver posts f to run if r is still the slot's current request. If done,
// the request ends.
func (e *Evaluator) deliver(ctx context.Context, slot livecalc.Slot, r *request, done bool, f func(), info livecalc.ResultInfo) {
	if ctx.Err() != nil {
		return
	}
	e.post.Post(func() {
		cur := e.reqs[slot]
		if cur == nil || cur.intent != r.intent {
			return
		}
		if done {
			delete(e.reqs, slot)
			r.cancel()
		}
		if slot == livecalc.MainSlot {
			e.latest = info.Text
			e.refine()
		}
		if f != nil {
			f()
		}
	})
}

func (e *Evaluator) fail(ctx context.Context, slot livecalc.Slot, r *request, err error) {
	if ctx.Err() != nil {
		return
	}
	kind := Classify(err)
	e.post.Post(func() {
		cur := e.reqs[slot]
		if cur == nil || cur.intent != r.intent {
			return
		}
		delete(e.reqs, slot)
		r.cancel()
		r.sink.OnError(slot, kind)
	})
}

// Results outside this range of decimal exponents use E notation. The range
// is fixed so that refining a result never changes its notation.
const (
	minPlainExp = -4
	maxPlainExp = 16
)

// formatResult formats a value computed at a precision for display.
func formatResult(v *big.Float, prec uint) livecalc.ResultInfo {
	digits := max(int(float64(int(prec)-8)*math.Log10(2)), 1)
	if v.IsInf() {
		text := "∞"
		if v.Signbit() {
			text = "−∞"
		}
		return livecalc.ResultInfo{Text: text, Digits: digits, Prec: prec}
	}
	s := v.Text('e', digits-1)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	mant, es, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(es)
	ds := strings.TrimRight(strings.Replace(mant, ".", "", 1), "0")
	if ds == "" {
		ds, exp, neg = "0", 0, false
	}
	var b strings.Builder
	if neg {
		b.WriteString("−")
	}
	switch {
	case exp < minPlainExp || exp >= maxPlainExp:
		b.WriteString(ds[:1])
		if len(ds) > 1 {
			b.WriteByte('.')
			b.WriteString(ds[1:])
		}
		b.WriteByte('E')
		if exp < 0 {
			b.WriteString("−")
			exp = -exp
		}
		b.WriteString(strconv.Itoa(exp))
	case exp < 0:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -exp-1))
		b.WriteString(ds)
	case exp+1 >= len(ds):
		b.WriteString(ds)
		b.WriteString(strings.Repeat("0", exp+1-len(ds)))
	default:
		b.WriteString(ds[:exp+1])
		b.WriteByte('.')
		b.WriteString(ds[exp+1:])
	}
	return livecalc.ResultInfo{Text: b.String(), Digits: len(ds), Prec: prec}
}
