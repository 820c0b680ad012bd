package workspace

// BeginRequest tags a new completion request for this session. Only one
// request may be in flight at a time, including one whose reply has been
// superseded but whose call has not returned yet.
func (w *Workspace) BeginRequest() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.inFlight != 0 {
		return 0, ErrRequestInFlight
	}
	w.lastRequest++
	w.inFlight = w.lastRequest
	w.loadable = w.lastRequest
	return w.lastRequest, nil
}

// CompleteRequest finishes request id and loads its reply. Replies of
// superseded or abandoned requests are dropped and reported as not applied.
func (w *Workspace) CompleteRequest(id uint64, raw string) (Change, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.finishLocked(id)
	if id == 0 || w.loadable != id {
		return Change{}, false
	}
	w.loadable = 0
	return w.loadLocked(raw), true
}

// FailRequest finishes request id without a reply, leaving the previously
// rendered sequence untouched.
func (w *Workspace) FailRequest(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.finishLocked(id)
	if w.loadable == id {
		w.loadable = 0
	}
}

// Abandon marks the reply of any pending request as stale. The request keeps
// the session busy until its caller reports it finished.
func (w *Workspace) Abandon() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadable = 0
}

// Pending reports whether a completion request is in flight.
func (w *Workspace) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight != 0
}

func (w *Workspace) finishLocked(id uint64) {
	if id != 0 && w.inFlight == id {
		w.inFlight = 0
	}
}
