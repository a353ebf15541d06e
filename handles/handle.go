package handles

import "github.com/chazu/jsheap/value"

// Handle is a GC-visible indirection to a value, valid while the scope that
// allocated it is open and no flush has passed it. The zero Handle is not
// valid.
type Handle struct {
	scope *Scope
	index uint32
	gen   uint32
}

// Valid reports whether h still refers to a live slot.
func (h Handle) Valid() bool {
	s := h.scope
	if s == nil || s.closed || int(h.index) >= s.count {
		return false
	}
	return s.entry(h.index).gen == h.gen
}

func (h Handle) check() {
	if h.scope != nil && h.scope.stack.opts.SlowChecks && !h.Valid() {
		h.scope.stack.fatal("use of released handle %d (generation %d)", h.index, h.gen)
	}
}

// Get returns the value held by h.
func (h Handle) Get() value.Value {
	h.check()
	return h.scope.entry(h.index).val
}

// Set replaces the value held by h. Handles are roots, so no barrier runs.
func (h Handle) Set(v value.Value) {
	h.check()
	h.scope.entry(h.index).val = v
}

// Location returns the address of the slot. It stays stable for the life of
// the handle; the collector rewrites it in place when the referent moves.
func (h Handle) Location() *value.Value {
	h.check()
	return &h.scope.entry(h.index).val
}
