package livecalc

// Save captures the session for a later Restore. It cancels all evaluations,
// ends any animation, and waits for the engine's history writes, so it should
// only be used when the session is being put away.
func (s *Session) Save() (Snapshot, error) {
	s.engine.CancelAll(true)
	s.finishAnimation()
	b, err := s.engine.SaveState()
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{State: s.state, Evaluator: b}
	if s.pending != "" {
		p := s.pending
		snap.Pending = &p
	}
	if s.state == Error && restorableError(s.errKind) {
		snap.ErrorKind = s.errKind
	}
	s.engine.WaitForWrites()
	return snap, nil
}

// restorableError reports whether an error can be shown again after a
// restore without evaluating the formula.
func restorableError(k ErrorKind) bool {
	return k == ErrSyntax || k == ErrValueTooLarge
}

// Restore replaces the session with one saved by Save. A session saved while
// showing a result or an error asks the engine to evaluate it again, and
// shows what it finds without animating. If the saved engine state can't be
// restored or is missing, the session starts over with an empty formula and
// the pending text.
//
// A snapshot in a state that can never be saved is an error; the session is
// left as a clean Input state.
func (s *Session) Restore(snap Snapshot) error {
	s.engine.CancelAll(true)
	s.cursor, s.selEnd = -1, -1
	s.errKind = ErrNone
	s.pending = ""
	if snap.Pending != nil {
		s.pending = *snap.Pending
	}
	saved := snap.State
	mapped, ok := MapFromSaved(saved)
	if !ok {
		err := &StateError{State: saved}
		s.log.Print("livecalc: ", err)
		s.engine.ClearMain()
		s.pending = ""
		s.setState(Input)
		s.display.ClearResult()
		s.redisplay()
		return err
	}
	if snap.Evaluator == nil {
		saved, mapped = Input, Input
		s.engine.ClearMain()
	} else if err := s.engine.RestoreState(snap.Evaluator); err != nil {
		s.log.Print("livecalc: restoring engine: ", err)
		saved, mapped = Input, Input
		s.engine.ClearMain()
	}
	if saved == Error && restorableError(snap.ErrorKind) {
		s.setState(Error)
		s.errKind = snap.ErrorKind
		s.redisplay()
		s.display.ShowError(s.errKind)
		return nil
	}
	s.redisplay()
	s.display.ClearResult()
	if mapped == Input {
		s.setState(Input)
		if s.pending == "" {
			s.evaluateInstantIfNecessary()
		}
		return nil
	}
	s.setState(mapped)
	s.engine.RequestResult(MainSlot, s)
	return nil
}

// SaveTo saves the session in st under id.
func (s *Session) SaveTo(st SnapshotStore, id string) error {
	snap, err := s.Save()
	if err != nil {
		return err
	}
	return st.SaveSnapshot(id, snap)
}

// RestoreFrom restores the session saved in st under id. The first result is
// false if st has no session with that id, in which case s is unchanged.
func (s *Session) RestoreFrom(st SnapshotStore, id string) (bool, error) {
	snap, ok, err := st.LoadSnapshot(id)
	if err != nil || !ok {
		return false, err
	}
	return true, s.Restore(snap)
}
