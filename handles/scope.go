package handles

import (
	"fortio.org/safecast"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/value"
)

type entry struct {
	val value.Value
	gen uint32
}

// chunk is never resized once allocated, so the address of every entry is
// stable for the life of the chunk.
type chunk []entry

// Scope is one lexical level of handle allocation.
type Scope struct {
	stack  *Stack
	parent *Scope
	depth  int

	chunks  []*chunk
	count   int // cursor: handles allocated in this scope
	nextGen uint32
	closed  bool
}

// Marker records a scope's cursor.
type Marker struct {
	scope *Scope
	count int
}

// Count returns the number of handles allocated before the marker.
func (m Marker) Count() int { return m.count }

// Parent returns the enclosing scope, or nil for the outermost.
func (s *Scope) Parent() *Scope { return s.parent }

// Len returns the number of live handles in s.
func (s *Scope) Len() int { return s.count }

// NewHandle allocates a handle holding v.
func (s *Scope) NewHandle(v value.Value) Handle {
	st := s.stack
	if st.opts.SlowChecks {
		if s.closed {
			st.fatal("NewHandle on closed scope (depth %d)", s.depth)
		}
		if st.opts.HandleLimit > 0 && s.count >= st.opts.HandleLimit {
			st.fatal("scope at depth %d exceeded handle limit %d", s.depth, st.opts.HandleLimit)
		}
	}

	size := st.opts.ChunkSize
	ci, off := s.count/size, s.count%size
	if ci == len(s.chunks) {
		s.chunks = append(s.chunks, st.getChunk())
	}
	idx, err := safecast.Conv[uint32](s.count)
	if err != nil {
		st.fatal("handle index overflow: %v", err)
	}

	s.nextGen++
	if s.nextGen == 0 {
		s.nextGen = 1
	}
	e := &(*s.chunks[ci])[off]
	e.val = v
	e.gen = s.nextGen

	s.count++
	st.handles++
	if st.handles > st.peak {
		st.peak = st.handles
	}
	return Handle{scope: s, index: idx, gen: e.gen}
}

// Marker returns the current cursor.
func (s *Scope) Marker() Marker {
	return Marker{scope: s, count: s.count}
}

// FlushTo releases every handle allocated after m. Handles allocated at or
// before m are unaffected. With SlowChecks the released slots are poisoned.
func (s *Scope) FlushTo(m Marker) {
	st := s.stack
	if m.scope != s {
		st.fatal("marker belongs to a different scope")
	}
	if m.count > s.count {
		st.fatal("marker %d is ahead of the cursor %d", m.count, s.count)
	}
	s.release(m.count)
}

// FlushToSmallCount releases the handles allocated after m only if there
// are more than n of them. Loops use it to bound handle growth without
// paying for a flush on every iteration.
func (s *Scope) FlushToSmallCount(m Marker, n int) {
	if s.count-m.count > n {
		s.FlushTo(m)
	}
}

// Close releases every handle in s and pops it from the stack. s must be
// the innermost open scope.
func (s *Scope) Close() {
	st := s.stack
	if s.closed {
		st.fatal("scope at depth %d closed twice", s.depth)
	}
	if st.top != s {
		st.fatal("closing scope at depth %d while depth %d is open", s.depth, st.depth)
	}
	s.release(0)
	st.putChunks(s.chunks)
	s.chunks = nil
	s.closed = true
	st.top = s.parent
	st.depth--
}

func (s *Scope) release(to int) {
	st := s.stack
	if st.opts.SlowChecks {
		size := st.opts.ChunkSize
		for i := to; i < s.count; i++ {
			e := &(*s.chunks[i/size])[i%size]
			e.val = value.Invalid
			e.gen = 0
		}
	}
	st.handles -= s.count - to
	s.count = to
}

func (s *Scope) entry(index uint32) *entry {
	size := s.stack.opts.ChunkSize
	i := int(index)
	return &(*s.chunks[i/size])[i%size]
}

func (s *Scope) forEachRoot(a gc.RootAcceptor) {
	size := s.stack.opts.ChunkSize
	for i := 0; i < s.count; i++ {
		a.AcceptRoot(&(*s.chunks[i/size])[i%size].val)
	}
}
