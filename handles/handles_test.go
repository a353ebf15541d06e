package handles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/value"
)

func num(i int) value.Value { return value.EncodeInt32(int32(i)) }

func collectRoots(st *Stack) []value.Value {
	var out []value.Value
	st.ForEachRoot(gc.RootAcceptorFunc(func(loc *value.Value) { out = append(out, *loc) }))
	return out
}

func TestNewHandleAcrossChunks(t *testing.T) {
	st := NewStack(Options{ChunkSize: 4})
	s := st.Open()
	defer s.Close()

	hs := make([]Handle, 10)
	for i := range hs {
		hs[i] = s.NewHandle(num(i))
	}
	for i, h := range hs {
		assert.True(t, h.Valid())
		assert.Equal(t, num(i), h.Get())
	}
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, 3, st.Stats().Chunks)
}

func TestHandleLocationIsStable(t *testing.T) {
	st := NewStack(Options{ChunkSize: 2})
	s := st.Open()
	defer s.Close()

	h := s.NewHandle(num(1))
	loc := h.Location()
	for i := 0; i < 100; i++ {
		s.NewHandle(num(i))
	}
	assert.Same(t, loc, h.Location())

	*loc = num(42)
	assert.Equal(t, num(42), h.Get())
	h.Set(num(7))
	assert.Equal(t, num(7), *loc)
}

func TestFlushToInvalidatesOnlyLaterHandles(t *testing.T) {
	st := NewStack(Options{ChunkSize: 4, SlowChecks: true})
	s := st.Open()
	defer s.Close()

	before := []Handle{s.NewHandle(num(0)), s.NewHandle(num(1))}
	m := s.Marker()
	after := []Handle{s.NewHandle(num(2)), s.NewHandle(num(3)), s.NewHandle(num(4))}
	afterLoc := after[0].Location()

	s.FlushTo(m)

	for i, h := range before {
		require.True(t, h.Valid())
		assert.Equal(t, num(i), h.Get())
	}
	for _, h := range after {
		assert.False(t, h.Valid())
		assert.Panics(t, func() { h.Get() })
	}
	assert.Equal(t, value.Invalid, *afterLoc, "flushed slots are poisoned")
	assert.Equal(t, 2, s.Len())

	reused := s.NewHandle(num(9))
	assert.True(t, reused.Valid())
	assert.False(t, after[0].Valid(), "reusing the slot must not revive the old handle")
}

func TestFlushWithoutSlowChecksDoesNotPoison(t *testing.T) {
	st := NewStack(Options{})
	s := st.Open()
	defer s.Close()

	m := s.Marker()
	h := s.NewHandle(num(5))
	loc := h.Location()
	s.FlushTo(m)
	assert.False(t, h.Valid())
	assert.Equal(t, num(5), *loc)
}

func TestFlushToSmallCount(t *testing.T) {
	st := NewStack(Options{})
	s := st.Open()
	defer s.Close()

	m := s.Marker()
	s.NewHandle(num(1))
	s.NewHandle(num(2))
	s.FlushToSmallCount(m, 2)
	assert.Equal(t, 2, s.Len())
	s.NewHandle(num(3))
	s.FlushToSmallCount(m, 2)
	assert.Equal(t, 0, s.Len())
}

func TestNestedScopesAndRoots(t *testing.T) {
	st := NewStack(Options{ChunkSize: 2})
	outer := st.Open()
	outer.NewHandle(num(1))
	outer.NewHandle(num(2))
	outer.NewHandle(num(3))

	inner := st.Open()
	ih := inner.NewHandle(num(10))
	assert.Same(t, inner, st.Top())
	assert.Same(t, outer, inner.Parent())

	assert.Equal(t, []value.Value{num(10), num(1), num(2), num(3)}, collectRoots(st))
	assert.Equal(t, 4, st.Stats().Handles)
	assert.Equal(t, 2, st.Stats().Depth)

	inner.Close()
	assert.False(t, ih.Valid())
	assert.Same(t, outer, st.Top())
	assert.Equal(t, []value.Value{num(1), num(2), num(3)}, collectRoots(st))

	outer.Close()
	assert.Nil(t, st.Top())
	assert.Empty(t, collectRoots(st))
	stats := st.Stats()
	assert.Equal(t, 0, stats.Handles)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 3, stats.PooledChunk)
	assert.Equal(t, 4, stats.PeakHandles)
}

func TestRootsCanBeRewritten(t *testing.T) {
	st := NewStack(Options{})
	s := st.Open()
	defer s.Close()

	h := s.NewHandle(value.EncodeObject(value.MakeRef(0, 1)))
	st.ForEachRoot(gc.RootAcceptorFunc(func(loc *value.Value) {
		if loc.IsPointer() {
			*loc = loc.UpdateRef(value.MakeRef(1, 1))
		}
	}))
	assert.Equal(t, value.MakeRef(1, 1), h.Get().Ref())
}

func TestChunksAreReused(t *testing.T) {
	st := NewStack(Options{ChunkSize: 2})
	for i := 0; i < 3; i++ {
		require.NoError(t, st.Run(func(s *Scope) error {
			for j := 0; j < 4; j++ {
				s.NewHandle(num(j))
			}
			return nil
		}))
	}
	assert.Equal(t, 2, st.Stats().PooledChunk)
}

func TestHandleLimit(t *testing.T) {
	st := NewStack(Options{HandleLimit: 3, SlowChecks: true})
	s := st.Open()
	defer s.Close()

	for i := 0; i < 3; i++ {
		s.NewHandle(num(i))
	}
	assert.Panics(t, func() { s.NewHandle(num(3)) })
}

func TestHandleLimitIgnoredWithoutSlowChecks(t *testing.T) {
	st := NewStack(Options{HandleLimit: 3})
	s := st.Open()
	defer s.Close()

	for i := 0; i < 10; i++ {
		s.NewHandle(num(i))
	}
	assert.Equal(t, 10, s.Len())
}

func TestCloseOutOfOrderPanics(t *testing.T) {
	st := NewStack(Options{})
	outer := st.Open()
	inner := st.Open()
	assert.Panics(t, func() { outer.Close() })
	inner.Close()
	outer.Close()
	assert.Panics(t, func() { outer.Close() })
}

func TestForeignMarkerPanics(t *testing.T) {
	st := NewStack(Options{})
	a := st.Open()
	m := a.Marker()
	b := st.Open()
	assert.Panics(t, func() { b.FlushTo(m) })
	b.Close()
	a.Close()
}

func TestZeroHandleIsInvalid(t *testing.T) {
	var h Handle
	assert.False(t, h.Valid())
}
