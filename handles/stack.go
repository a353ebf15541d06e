// Package handles implements the root handle arena: scope-lifetime slots,
// bump-allocated in fixed-size chunks, that hold values the native call
// stack needs to keep alive and that the collector may rewrite when
// referents move.
//
// Handles are never freed individually. A scope releases everything
// allocated after a Marker in one step (FlushTo) and everything it ever
// allocated when it closes. Scopes nest strictly; a Stack is owned by one
// goroutine and is never locked.
package handles

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/jsheap/gc"
)

// log is resolved on each call so that the backend configured by the host
// after package initialization is picked up.
func log() commonlog.Logger { return commonlog.GetLogger("jsheap.handles") }

var _ gc.RootProvider = (*Stack)(nil)

// DefaultChunkSize is the number of handles in one chunk.
const DefaultChunkSize = 16

// Options configures a Stack.
type Options struct {
	// ChunkSize is the number of handles per chunk; DefaultChunkSize if zero.
	ChunkSize int
	// HandleLimit caps the number of live handles in a single scope. It is
	// only enforced with SlowChecks and is fatal when exceeded: it exists to
	// catch loops that allocate handles without flushing.
	HandleLimit int
	// SlowChecks enables generation checks on every access and poisons
	// flushed slots with value.Invalid.
	SlowChecks bool
}

// Stats describes the arena at a point in time.
type Stats struct {
	Depth       int // open scopes
	Handles     int // live handles across all scopes
	Chunks      int // chunks owned by open scopes
	PooledChunk int // chunks waiting for reuse
	PeakHandles int
}

// Stack is the per-owner stack of open scopes.
type Stack struct {
	opts  Options
	top   *Scope
	depth int

	pool    []*chunk
	handles int
	chunks  int
	peak    int
}

// NewStack returns an empty stack.
func NewStack(opts Options) *Stack {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Stack{opts: opts}
}

// Options returns the stack's configuration.
func (st *Stack) Options() Options { return st.opts }

// Top returns the innermost open scope, or nil.
func (st *Stack) Top() *Scope { return st.top }

// Open pushes a new scope and returns it. The caller must Close it, in
// LIFO order with respect to every other scope on the stack.
func (st *Stack) Open() *Scope {
	s := &Scope{stack: st, parent: st.top, depth: st.depth + 1}
	st.top = s
	st.depth++
	return s
}

// Run opens a scope, calls fn with it and closes it.
func (st *Stack) Run(fn func(s *Scope) error) error {
	s := st.Open()
	defer s.Close()
	return fn(s)
}

// ForEachRoot visits every live handle, innermost scope first.
func (st *Stack) ForEachRoot(a gc.RootAcceptor) {
	for s := st.top; s != nil; s = s.parent {
		s.forEachRoot(a)
	}
}

// Stats reports current usage.
func (st *Stack) Stats() Stats {
	return Stats{
		Depth:       st.depth,
		Handles:     st.handles,
		Chunks:      st.chunks,
		PooledChunk: len(st.pool),
		PeakHandles: st.peak,
	}
}

func (st *Stack) getChunk() *chunk {
	st.chunks++
	if n := len(st.pool); n > 0 {
		c := st.pool[n-1]
		st.pool = st.pool[:n-1]
		return c
	}
	log().Debugf("allocating handle chunk of %d (depth %d, %d live handles)", st.opts.ChunkSize, st.depth, st.handles)
	c := make(chunk, st.opts.ChunkSize)
	return &c
}

func (st *Stack) putChunks(cs []*chunk) {
	st.chunks -= len(cs)
	st.pool = append(st.pool, cs...)
}

func (st *Stack) fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log().Criticalf("%s", msg)
	panic("handles: " + msg)
}
