package livecalc

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func TestMapFromSaved(t *testing.T) {
	cases := []struct {
		saved State
		want  State
		ok    bool
	}{
		{Input, Input, true},
		{Evaluate, Evaluate, true},
		{Init, Init, true},
		{InitForResult, InitForResult, true},
		{Result, InitForResult, true},
		{Error, Init, true},
		{Animate, 0, false},
		{State(99), 0, false},
	}
	for _, c := range cases {
		got, ok := MapFromSaved(c.saved)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("%v: want %v (%t), got %v (%t)", c.saved, c.want, c.ok, got, ok)
		}
	}
}

func TestSaveRestore(t *testing.T) {
	cases := []struct {
		name  string
		drive func(*testing.T, *Session, *fakeEngine)
		saved State
		// restored is the state immediately after Restore, and call is the
		// engine request Restore makes, if any.
		restored State
		call     string
	}{
		{
			name:     "input",
			drive:    func(t *testing.T, s *Session, f *fakeEngine) { s.Paste("1+2") },
			saved:    Input,
			restored: Input,
			call:     "eval",
		},
		{
			name: "evaluate",
			drive: func(t *testing.T, s *Session, f *fakeEngine) {
				s.Paste("1+2")
				s.Evaluate()
			},
			saved:    Evaluate,
			restored: Evaluate,
			call:     "result",
		},
		{
			name:     "result",
			drive:    func(t *testing.T, s *Session, f *fakeEngine) { toResult(t, s, f, "1+2", "3") },
			saved:    Result,
			restored: InitForResult,
			call:     "result",
		},
		{
			name: "animate",
			drive: func(t *testing.T, s *Session, f *fakeEngine) {
				s.Paste("1+2")
				s.Evaluate()
				f.complete(t, "3")
			},
			saved:    Result,
			restored: InitForResult,
			call:     "result",
		},
		{
			name: "syntax-error",
			drive: func(t *testing.T, s *Session, f *fakeEngine) {
				s.Paste("1+")
				s.Evaluate()
			},
			saved:    Error,
			restored: Error,
		},
		{
			name: "engine-error",
			drive: func(t *testing.T, s *Session, f *fakeEngine) {
				s.Paste("1+2")
				s.Evaluate()
				f.fail(t, ErrEngine)
			},
			saved:    Error,
			restored: Init,
			call:     "result",
		},
		{
			name:     "pending",
			drive:    func(t *testing.T, s *Session, f *fakeEngine) { s.Paste("1+2x") },
			saved:    Input,
			restored: Input,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, f, _ := newTestSession()
			c.drive(t, s, f)
			formula := s.Formula()
			snap, err := s.Save()
			if err != nil {
				t.Fatal(err)
			}
			if snap.State != c.saved {
				t.Errorf("saved state %v, want %v", snap.State, c.saved)
			}

			r, g, d := newTestSession()
			g.history = f.history
			if err := r.Restore(snap); err != nil {
				t.Fatal(err)
			}
			if r.State() != c.restored {
				t.Errorf("restored to %v, want %v", r.State(), c.restored)
			}
			if r.Formula() != formula {
				t.Errorf("restored formula %q, want %q", r.Formula(), formula)
			}
			if d.formula != formula {
				t.Errorf("displayed formula %q, want %q", d.formula, formula)
			}
			for _, call := range []string{"eval", "result"} {
				want := 0
				if call == c.call {
					want = 1
				}
				if got := g.count(call); got != want {
					t.Errorf("%d %s calls after restore, want %d: %q", got, call, want, g.calls)
				}
			}
		})
	}
}

func TestSaveSyntaxError(t *testing.T) {
	s, _, _ := newTestSession()
	s.Paste("1+")
	s.Evaluate()
	snap, err := s.Save()
	if err != nil {
		t.Fatal(err)
	}
	if snap.ErrorKind != ErrSyntax {
		t.Errorf("want saved syntax error, got %v", snap.ErrorKind)
	}

	r, _, d := newTestSession()
	if err := r.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if got := d.last(); got != "error:syntax error" {
		t.Errorf("want error shown without animation, got %q", got)
	}
	if rec, ok := r.Error(); !ok || rec.Kind != ErrSyntax {
		t.Errorf("wrong error %+v (%t)", rec, ok)
	}
}

func TestRestoreResultNoAnimation(t *testing.T) {
	s, f, _ := newTestSession()
	toResult(t, s, f, "2^10", "1024")
	snap, err := s.Save()
	if err != nil {
		t.Fatal(err)
	}
	r, g, d := newTestSession()
	g.history = f.history
	if err := r.Restore(snap); err != nil {
		t.Fatal(err)
	}
	g.complete(t, "1024")
	if r.State() != Result {
		t.Fatalf("want Result, got %v", r.State())
	}
	if got := d.last(); got != "result:1024" {
		t.Errorf("want result shown directly, got %q", got)
	}
	if g.represerved != 1 || g.count("preserve") != 0 {
		t.Errorf("want history entry reused, got calls %q", g.calls)
	}
}

func TestRestoreEngineErrorEvaluates(t *testing.T) {
	s, f, _ := newTestSession()
	s.Paste("1+2")
	s.Evaluate()
	f.fail(t, ErrEngine)
	snap, err := s.Save()
	if err != nil {
		t.Fatal(err)
	}
	if snap.ErrorKind != ErrNone {
		t.Errorf("saved transient error %v", snap.ErrorKind)
	}
	r, g, _ := newTestSession()
	if err := r.Restore(snap); err != nil {
		t.Fatal(err)
	}
	g.complete(t, "3")
	if r.State() != Result || g.count("preserve") != 1 {
		t.Errorf("want Result with new history entry, got %v and %q", r.State(), g.calls)
	}
}

func TestRestoreInvalidState(t *testing.T) {
	s, f, d := newTestSession()
	s.Paste("1+2")
	p := "x"
	err := s.Restore(Snapshot{State: Animate, Pending: &p})
	var se *StateError
	if !errors.As(err, &se) || se.State != Animate {
		t.Fatalf("want StateError for Animate, got %v", err)
	}
	if s.State() != Input || s.Formula() != "" {
		t.Errorf("want clean Input, got %v with %q", s.State(), s.Formula())
	}
	if !f.main.IsEmpty() || d.formula != "" {
		t.Errorf("expression %q or display %q not cleared", f.main.Text(), d.formula)
	}
}

func TestRestoreBadEvaluator(t *testing.T) {
	s, f, _ := newTestSession()
	f.restoreErr = errRestore
	p := "x"
	err := s.Restore(Snapshot{State: Result, Pending: &p, Evaluator: []byte(`[]`)})
	if err != nil {
		t.Fatalf("unrestorable engine state reported as %v", err)
	}
	if s.State() != Input {
		t.Errorf("want Input, got %v", s.State())
	}
	if s.Formula() != "x" {
		t.Errorf("want pending text kept, got %q", s.Formula())
	}
	if f.count("result") != 0 || f.count("clear") != 1 {
		t.Errorf("wrong engine calls %q", f.calls)
	}
}

func TestRestoreMissingEvaluator(t *testing.T) {
	s, f, _ := newTestSession()
	s.Paste("7*6")
	if err := s.Restore(Snapshot{State: Result}); err != nil {
		t.Fatalf("missing engine state reported as %v", err)
	}
	if s.State() != Input || s.Formula() != "" {
		t.Errorf("want empty Input, got %v with %q", s.State(), s.Formula())
	}
	if f.count("result") != 0 || f.count("clear") != 1 {
		t.Errorf("wrong engine calls %q", f.calls)
	}
	s.Paste("1+1")
	if s.Formula() != "1+1" {
		t.Errorf("want formula 1+1, got %q", s.Formula())
	}
}

func TestContinueWithEmptyHistory(t *testing.T) {
	s, f, _ := newTestSession()
	s.Paste("2")
	b, err := f.SaveState()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Restore(Snapshot{State: Result, Evaluator: b}); err != nil {
		t.Fatal(err)
	}
	f.complete(t, "2")
	if s.State() != Result {
		t.Fatalf("want Result, got %v", s.State())
	}
	// Represerve reuses an entry the fake never had.
	f.history = nil
	f.reset()
	s.Paste("×3")
	if f.count("collapse 0") != 0 || f.count("clear") != 1 {
		t.Errorf("wrong engine calls %q", f.calls)
	}
	if s.State() != Input {
		t.Errorf("want Input, got %v", s.State())
	}
}

func TestSaveCancelsAndWaits(t *testing.T) {
	s, f, _ := newTestSession()
	s.Paste("1+2")
	f.reset()
	if _, err := s.Save(); err != nil {
		t.Fatal(err)
	}
	if f.count("cancel-all") != 1 || f.req != nil {
		t.Errorf("evaluations not cancelled: %q", f.calls)
	}
	if f.waited != 1 {
		t.Errorf("waited %d times for writes", f.waited)
	}
}

type mapStore map[string]Snapshot

func (m mapStore) SaveSnapshot(id string, s Snapshot) error {
	m[id] = s
	return nil
}

func (m mapStore) LoadSnapshot(id string) (Snapshot, bool, error) {
	s, ok := m[id]
	return s, ok, nil
}

func TestSaveToRestoreFrom(t *testing.T) {
	st := mapStore{}
	s, _, _ := newTestSession()
	s.Paste("6×7")
	if err := s.SaveTo(st, "a"); err != nil {
		t.Fatal(err)
	}

	r, _, _ := newTestSession()
	r.Paste("9")
	ok, err := r.RestoreFrom(st, "b")
	if ok || err != nil {
		t.Errorf("restored missing session: %t, %v", ok, err)
	}
	if r.Formula() != "9" {
		t.Errorf("missing session changed formula to %q", r.Formula())
	}
	ok, err = r.RestoreFrom(st, "a")
	if !ok || err != nil {
		t.Fatalf("couldn't restore: %t, %v", ok, err)
	}
	if r.Formula() != "6×7" {
		t.Errorf("restored formula %q", r.Formula())
	}
}

func TestSaveRestoreRandomEvents(t *testing.T) {
	keys := []string{"1", "2", "0", ".", "+", "−", "×", "^", "(", ")", "π", "!", "s", "i", "n", "="}
	rng := rand.New(rand.NewPCG(1, 2))
	for run := 0; run < 200; run++ {
		s, f, _ := newTestSession()
		for step := 0; step < 30; step++ {
			switch rng.IntN(10) {
			case 0:
				s.Delete()
			case 1:
				s.ToggleMode()
			case 2:
				s.AnimationDone()
			case 3:
				if f.req != nil {
					f.complete(t, "1")
				}
			case 4:
				if f.req != nil {
					f.fail(t, ErrorKind(1+rng.IntN(3)))
				}
			case 5:
				snap, err := s.Save()
				if err != nil {
					t.Fatal(err)
				}
				if snap.State == Animate {
					t.Fatalf("run %d step %d: saved Animate", run, step)
				}
				if err := s.Restore(snap); err != nil {
					t.Fatalf("run %d step %d: %v", run, step, err)
				}
				if s.State() == Animate || s.State() == Result {
					t.Fatalf("run %d step %d: restored to %v", run, step, s.State())
				}
				if rec, ok := s.Error(); ok && !restorableError(rec.Kind) {
					t.Fatalf("run %d step %d: restored error %v", run, step, rec.Kind)
				}
			default:
				s.Type(keys[rng.IntN(len(keys))])
			}
			if _, ok := s.Error(); ok != (s.State() == Error) {
				t.Fatalf("run %d step %d: error reported in %v", run, step, s.State())
			}
		}
	}
}
