// Package segarray implements the segmented array used for object
// property slots and indexed elements: a prefix of inline slots followed
// by a spine of fixed-size segments, so large arrays never need one huge
// contiguous allocation.
//
// Every slot at or beyond Size holds value.Empty. Growth relies on this:
// newly exposed elements are already filler, and a concurrent marker
// walking the whole storage never meets a stale or uninitialized value.
package segarray

import (
	"sync/atomic"
	"unsafe"

	"fortio.org/safecast"
	"github.com/tliron/commonlog"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/internal/debug"
	"github.com/chazu/jsheap/jserror"
	"github.com/chazu/jsheap/value"
)

func log() commonlog.Logger { return commonlog.GetLogger("jsheap.segarray") }

var _ gc.Trimmer = (*Array)(nil)

const (
	// SegmentMaxLength is the number of slots in one segment.
	SegmentMaxLength = 1024
	// InlineThreshold is the number of elements stored inline before the
	// first segment is used.
	InlineThreshold = 4 * SegmentMaxLength
)

// Segment is one fixed-size block of elements.
type Segment struct {
	data [SegmentMaxLength]gc.Slot
}

func newSegment() *Segment {
	s := &Segment{}
	for i := range s.data {
		s.data[i].Relocate(value.Empty)
	}
	return s
}

// storage is what the marker sees: replaced wholesale when the inline
// prefix is reallocated or the spine gains a segment.
type storage struct {
	inline []gc.Slot
	spine  []*Segment
}

func (st *storage) capacity() uint32 {
	return uint32(len(st.inline) + len(st.spine)*SegmentMaxLength)
}

// Array is a segmented array of values. It is owned by the mutator
// goroutine; only ForEachConcurrent may run elsewhere.
type Array struct {
	c         gc.Collector
	st        *storage
	published atomic.Pointer[storage]
	size      atomic.Uint32
}

// New returns an empty array with inline room for up to capacity elements.
// Segments beyond the inline prefix are allocated as the array grows.
func New(c gc.Collector, capacity uint32) (*Array, error) {
	if limit := MaxElements(c); capacity > limit {
		return nil, jserror.NewRange("segmented array", uint64(capacity), uint64(limit))
	}
	a := &Array{c: c}
	inline := min(capacity, InlineThreshold)
	a.willAllocate(allocationSize(inline, 0))
	a.publish(&storage{inline: newInline(inline)})
	return a, nil
}

func newInline(n uint32) []gc.Slot {
	s := make([]gc.Slot, n)
	for i := range s {
		s[i].Relocate(value.Empty)
	}
	return s
}

func (a *Array) willAllocate(size uint64) {
	n, err := safecast.Conv[uint32](size)
	debug.Assert(err == nil, "segarray: allocation size overflows")
	a.c.WillAllocate(n)
}

func (a *Array) publish(st *storage) {
	a.st = st
	a.published.Store(st)
}

// Size returns the number of elements.
func (a *Array) Size() uint32 { return a.size.Load() }

// Capacity returns the number of elements storable without allocating.
func (a *Array) Capacity() uint32 { return a.st.capacity() }

// NumSegments returns the length of the spine.
func (a *Array) NumSegments() int { return len(a.st.spine) }

// slot returns the location of element i, which must be below capacity.
func (a *Array) slot(i uint32) *gc.Slot {
	if i < InlineThreshold {
		return &a.st.inline[i]
	}
	i -= InlineThreshold
	return &a.st.spine[i/SegmentMaxLength].data[i%SegmentMaxLength]
}

// run returns the contiguous slots starting at element i, at most n long.
func (a *Array) run(i, n uint32) []gc.Slot {
	if i < InlineThreshold {
		return a.st.inline[i:min(uint32(len(a.st.inline)), i+n)]
	}
	i -= InlineThreshold
	seg, off := i/SegmentMaxLength, i%SegmentMaxLength
	return a.st.spine[seg].data[off:min(SegmentMaxLength, off+n)]
}

// runBefore returns the contiguous slots ending just before element end,
// at most n long.
func (a *Array) runBefore(end, n uint32) []gc.Slot {
	if end <= InlineThreshold {
		start := end - min(end, n)
		return a.st.inline[start:end]
	}
	i := end - InlineThreshold - 1
	seg, off := i/SegmentMaxLength, i%SegmentMaxLength+1
	return a.st.spine[seg].data[off-min(off, n) : off]
}

// At returns element i. i must be below Size.
func (a *Array) At(i uint32) value.Value {
	debug.Assertf(i < a.Size(), "segarray: index %d out of range %d", i, a.Size())
	return a.slot(i).Get()
}

// Set stores v at element i. i must be below Size.
func (a *Array) Set(i uint32, v value.Value) {
	debug.Assertf(i < a.Size(), "segarray: index %d out of range %d", i, a.Size())
	a.slot(i).Set(v, a.c)
}

// SetNonPtr stores a non-pointer v at element i.
func (a *Array) SetNonPtr(i uint32, v value.Value) {
	debug.Assertf(i < a.Size(), "segarray: index %d out of range %d", i, a.Size())
	a.slot(i).SetNonPtr(v, a.c)
}

// PushBack appends v.
func (a *Array) PushBack(v value.Value) error {
	n := a.Size()
	if err := a.Resize(n + 1); err != nil {
		return err
	}
	a.slot(n).Set(v, a.c)
	return nil
}

// Resize sets the size to newSize. New elements are Empty.
func (a *Array) Resize(newSize uint32) error {
	if newSize <= a.Capacity() {
		a.ResizeWithinCapacity(newSize)
		return nil
	}
	if err := a.growCapacity(newSize); err != nil {
		return err
	}
	a.size.Store(newSize)
	return nil
}

// ResizeWithinCapacity sets the size without allocating. newSize must not
// exceed Capacity.
func (a *Array) ResizeWithinCapacity(newSize uint32) {
	debug.Assertf(newSize <= a.Capacity(), "segarray: size %d beyond capacity %d", newSize, a.Capacity())
	old := a.Size()
	if newSize < old {
		a.forRuns(newSize, old-newSize, func(r []gc.Slot) {
			gc.RangeUnreachable(r, a.c)
			gc.UninitializedFill(r, value.Empty, a.c)
		})
	}
	a.size.Store(newSize)
}

// ResizeLeft sets the size by adding or removing elements at the front,
// as shift and unshift do. Added elements are Empty.
func (a *Array) ResizeLeft(newSize uint32) error {
	old := a.Size()
	switch {
	case newSize > old:
		if err := a.Resize(newSize); err != nil {
			return err
		}
		d := newSize - old
		a.move(d, 0, old)
		a.forRuns(0, d, func(r []gc.Slot) { gc.Fill(r, value.Empty, a.c) })
	case newSize < old:
		a.move(0, old-newSize, newSize)
		a.ResizeWithinCapacity(newSize)
	}
	return nil
}

// forRuns calls fn on the contiguous runs covering [start, start+n).
func (a *Array) forRuns(start, n uint32, fn func(r []gc.Slot)) {
	for n > 0 {
		r := a.run(start, n)
		fn(r)
		start += uint32(len(r))
		n -= uint32(len(r))
	}
}

// move copies n elements from src to dst, which may overlap.
func (a *Array) move(dst, src, n uint32) {
	if dst == src || n == 0 {
		return
	}
	if dst < src {
		for n > 0 {
			d, s := a.run(dst, n), a.run(src, n)
			k := uint32(gc.Copy(d, s, a.c))
			dst, src, n = dst+k, src+k, n-k
		}
		return
	}
	for n > 0 {
		d, s := a.runBefore(dst+n, n), a.runBefore(src+n, n)
		k := min(len(d), len(s))
		gc.Copy(d[len(d)-k:], s[len(s)-k:], a.c)
		n -= uint32(k)
	}
}

// growCapacity allocates until capacity reaches newSize. Every allocation
// happens with the published storage fully initialized.
func (a *Array) growCapacity(newSize uint32) error {
	if limit := MaxElements(a.c); newSize > limit {
		return jserror.NewRange("segmented array", uint64(newSize), uint64(limit))
	}
	if have := uint32(len(a.st.inline)); have < InlineThreshold {
		want := min(max(newSize, 2*have), InlineThreshold)
		a.willAllocate(allocationSize(want, 0))
		inline := newInline(want)
		gc.UninitializedCopy(inline, a.st.inline[:a.Size()], a.c)
		a.publish(&storage{inline: inline})
	}
	for a.Capacity() < newSize {
		a.willAllocate(segmentAllocationSize)
		seg := newSegment()
		spine := a.st.spine
		if len(spine) == cap(spine) {
			// MaxElements admits at most maxSpineEntries segments, so the
			// clamped capacity always has room for one more.
			spineCap := min(max(4, 2*len(spine)), maxSpineEntries(a.c))
			a.willAllocate(allocationSize(InlineThreshold, uint32(spineCap)))
			spine = make([]*Segment, len(spine), spineCap)
			copy(spine, a.st.spine)
		}
		a.publish(&storage{inline: a.st.inline, spine: append(spine, seg)})
	}
	log().Debugf("segmented array grew to capacity %d (%d segments)", a.Capacity(), len(a.st.spine))
	return nil
}

// Trim releases capacity beyond the current size: unused segments and,
// below the inline threshold, unused inline slots. It is the
// post-collection hook.
func (a *Array) Trim() {
	size := a.Size()
	if size > InlineThreshold {
		need := (size - InlineThreshold + SegmentMaxLength - 1) / SegmentMaxLength
		if int(need) < len(a.st.spine) {
			a.willAllocate(allocationSize(InlineThreshold, need))
			spine := make([]*Segment, need)
			copy(spine, a.st.spine)
			a.publish(&storage{inline: a.st.inline, spine: spine})
		}
		return
	}
	if size < uint32(len(a.st.inline)) || len(a.st.spine) > 0 {
		a.willAllocate(allocationSize(size, 0))
		inline := newInline(size)
		copyRawSlots(inline, a.st.inline[:size])
		a.publish(&storage{inline: inline})
	}
}

// copyRawSlots moves values into fresh storage on the collector's behalf.
func copyRawSlots(dst, src []gc.Slot) {
	for i := range src {
		dst[i].Relocate(src[i].Get())
	}
}

// ForEachConcurrent reports every element below the size. It may run on
// the marker goroutine while the mutator appends.
func (a *Array) ForEachConcurrent(fn func(i uint32, v value.Value)) {
	st := a.published.Load()
	n := min(a.size.Load(), st.capacity())
	i := uint32(0)
	for ; i < n && i < uint32(len(st.inline)); i++ {
		fn(i, st.inline[i].LoadConcurrent())
	}
	for ; i < n; i++ {
		j := i - InlineThreshold
		fn(i, st.spine[j/SegmentMaxLength].data[j%SegmentMaxLength].LoadConcurrent())
	}
}

// Scan walks every slot of the array's storage with the registered layout.
func (a *Array) Scan(v gc.Visitor) {
	gc.Scan(gc.KindSegmentedArray, unsafe.Pointer(a.st), v)
}

func init() {
	segLayout := &gc.Layout{
		Name: "segarray.Segment",
		Size: unsafe.Sizeof(Segment{}),
		Arrays: []gc.ArrayField{
			{Offset: unsafe.Offsetof(Segment{}.data), Len: SegmentMaxLength, Elem: gc.SlotLayout},
		},
	}
	gc.Register(gc.KindSegment, segLayout)
	gc.Register(gc.KindSegmentedArray, &gc.Layout{
		Name: "segarray.Array",
		Size: unsafe.Sizeof(storage{}),
		Arrays: []gc.ArrayField{
			{Offset: unsafe.Offsetof(storage{}.inline), Elem: gc.SlotLayout},
		},
		Cells: []gc.CellField{
			{Offset: unsafe.Offsetof(storage{}.spine), Elem: segLayout},
		},
	})
}
