package proxy

import "sync"

// Stage is one step of a pipeline: it inspects/mutates ctx and returns
// true if it has fully handled the request (short-circuiting the
// remaining passes), false to continue to the next pass.
type Stage func(ctx *Context) bool

// Pass is one named, orderable stage in a PassList.
type Pass struct {
	Name  string
	Run   Stage
	Guard *Predicate // nil means "always run"
}

// PassList is an ordered, name-addressable sequence of passes, forming
// either the "web" or "ws" pipeline on a Server. Names are unique;
// Before/After insert relative to an existing name.
type PassList struct {
	mu    sync.RWMutex
	kind  string
	items []Pass
}

// NewPassList returns a list tagged with kind ("web" or "ws") holding
// initial in order. The kind tag is what WrapAll passes to its wrap
// function.
func NewPassList(kind string, initial ...Pass) *PassList {
	pl := &PassList{kind: kind}
	pl.items = append(pl.items, initial...)
	return pl
}

// Kind returns "web" or "ws".
func (pl *PassList) Kind() string { return pl.kind }

// Snapshot returns a copy of the current pass order, safe to range over
// without holding the list's lock (the executor takes one at the start
// of each pipeline run).
func (pl *PassList) Snapshot() []Pass {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	out := make([]Pass, len(pl.items))
	copy(out, pl.items)
	return out
}

func (pl *PassList) indexOfLocked(name string) int {
	for i, p := range pl.items {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Append adds a pass to the end of the list.
func (pl *PassList) Append(p Pass) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.indexOfLocked(p.Name) >= 0 {
		return ErrDuplicatePassName
	}
	pl.items = append(pl.items, p)
	return nil
}

// Before inserts p immediately before the pass named anchor.
func (pl *PassList) Before(anchor string, p Pass) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.indexOfLocked(p.Name) >= 0 {
		return ErrDuplicatePassName
	}
	idx := pl.indexOfLocked(anchor)
	if idx < 0 {
		return ErrAnchorPassNotFound
	}
	pl.insertAtLocked(idx, p)
	return nil
}

// After inserts p immediately after the pass named anchor. Unlike the
// documented behavior of the system this pipeline is modeled on, this
// inserts at indexOf(anchor)+1 — the corrected placement, not a
// duplicate-of-Before bug (see DESIGN.md's Open Questions entry).
func (pl *PassList) After(anchor string, p Pass) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.indexOfLocked(p.Name) >= 0 {
		return ErrDuplicatePassName
	}
	idx := pl.indexOfLocked(anchor)
	if idx < 0 {
		return ErrAnchorPassNotFound
	}
	pl.insertAtLocked(idx+1, p)
	return nil
}

func (pl *PassList) insertAtLocked(idx int, p Pass) {
	pl.items = append(pl.items, Pass{})
	copy(pl.items[idx+1:], pl.items[idx:])
	pl.items[idx] = p
}

// WrapAll replaces every pass's Run function with wrap(kind, name, Run),
// letting cross-cutting concerns (metrics, tracing) instrument every pass
// without the pipeline core depending on them.
func (pl *PassList) WrapAll(wrap func(kind, name string, stage Stage) Stage) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	for i := range pl.items {
		pl.items[i].Run = wrap(pl.kind, pl.items[i].Name, pl.items[i].Run)
	}
}

// Remove deletes the named pass, if present. A no-op if it isn't found.
func (pl *PassList) Remove(name string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	idx := pl.indexOfLocked(name)
	if idx < 0 {
		return
	}
	pl.items = append(pl.items[:idx], pl.items[idx+1:]...)
}
