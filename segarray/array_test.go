package segarray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/jserror"
	"github.com/chazu/jsheap/value"
)

func num(i uint32) value.Value { return value.EncodeUint32(i) }

func fill(t *testing.T, a *Array, n uint32) {
	t.Helper()
	for i := uint32(0); i < n; i++ {
		require.NoError(t, a.PushBack(num(i)))
	}
}

func checkValues(t *testing.T, a *Array, offset uint32) {
	t.Helper()
	for i := offset; i < a.Size(); i++ {
		if !assert.Equal(t, num(i-offset), a.At(i), "element %d", i) {
			return
		}
	}
}

func TestPushBackAcrossSegments(t *testing.T) {
	a, err := New(gc.NopCollector{}, 0)
	require.NoError(t, err)
	n := uint32(InlineThreshold + 2*SegmentMaxLength + 5)
	fill(t, a, n)

	assert.Equal(t, n, a.Size())
	assert.Equal(t, 3, a.NumSegments())
	assert.Equal(t, uint32(InlineThreshold+3*SegmentMaxLength), a.Capacity())
	checkValues(t, a, 0)
}

func TestNewSizeIsZero(t *testing.T) {
	a, err := New(gc.NopCollector{}, 100)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), a.Size())
	assert.Equal(t, uint32(100), a.Capacity())
}

func TestCapacityLimit(t *testing.T) {
	rec := &gc.Recorder{MaxAlloc: 1024}
	limit := MaxElements(rec)
	require.Greater(t, limit, uint32(0))
	require.Less(t, limit, uint32(InlineThreshold), "a segment does not fit in 1KiB")

	_, err := New(rec, limit+1)
	require.Error(t, err)
	assert.True(t, jserror.IsRange(err))

	a, err := New(rec, limit)
	require.NoError(t, err)
	fill(t, a, limit)
	err = a.PushBack(value.Null)
	require.Error(t, err)
	assert.True(t, jserror.IsRange(err))
	assert.Equal(t, limit, a.Size())
	assert.Zero(t, rec.Oversized)
}

func TestGrowToMaxElementsStaysUnderAllocationLimit(t *testing.T) {
	const maxAlloc = 64 << 10
	rec := &gc.Recorder{MaxAlloc: maxAlloc}
	limit := MaxElements(rec)
	require.Greater(t, limit, uint32(InlineThreshold), "segments fit in 64KiB")

	a, err := New(rec, 0)
	require.NoError(t, err)
	require.NoError(t, a.Resize(limit))
	assert.Equal(t, limit, a.Size())
	assert.Equal(t, limit, a.Capacity())
	assert.Zero(t, rec.Oversized)
	assert.LessOrEqual(t, rec.LargestAllocation, uint32(maxAlloc))

	err = a.PushBack(value.Null)
	require.Error(t, err)
	assert.True(t, jserror.IsRange(err))
	assert.Zero(t, rec.Oversized)
}

func TestPushBackToMaxElementsStaysUnderAllocationLimit(t *testing.T) {
	const maxAlloc = 40 << 10
	rec := &gc.Recorder{MaxAlloc: maxAlloc}
	limit := MaxElements(rec)
	a, err := New(rec, 0)
	require.NoError(t, err)
	fill(t, a, limit)
	assert.Zero(t, rec.Oversized)
	assert.LessOrEqual(t, rec.LargestAllocation, uint32(maxAlloc))
	checkValues(t, a, 0)
}

func TestMaxElementsCountsSpineEntries(t *testing.T) {
	c := gc.NopCollector{}
	limit := uint64(MaxElements(c))
	segments := (uint64(c.MaxAllocSize()) - allocationSize(InlineThreshold, 0)) / slotSize
	assert.Equal(t, InlineThreshold+segments*SegmentMaxLength, limit)
}

func TestShrinkThenRegrowYieldsFiller(t *testing.T) {
	a, err := New(gc.NopCollector{}, 0)
	require.NoError(t, err)
	n := uint32(InlineThreshold + 10)
	fill(t, a, n)

	require.NoError(t, a.Resize(5))
	require.NoError(t, a.Resize(n))
	for i := uint32(0); i < 5; i++ {
		assert.Equal(t, num(i), a.At(i))
	}
	for i := uint32(5); i < n; i++ {
		require.Equal(t, value.Empty, a.At(i), "element %d", i)
	}
}

func TestShrinkReportsDroppedValues(t *testing.T) {
	rec := gc.NewRecorder()
	a, err := New(rec, 8)
	require.NoError(t, err)
	for i := uint32(0); i < 8; i++ {
		require.NoError(t, a.PushBack(value.EncodeObject(value.MakeRef(1, i*16))))
	}
	rec.Reset()

	a.ResizeWithinCapacity(3)
	assert.Equal(t, 1, rec.SnapshotRanges)
	assert.Equal(t, 5, rec.SnapshotSlots)
	assert.Equal(t, 0, rec.Allocations)
}

func TestResizeLeft(t *testing.T) {
	a, err := New(gc.NopCollector{}, 0)
	require.NoError(t, err)
	n := uint32(InlineThreshold + 1500)
	fill(t, a, n)

	// Unshift three holes across the inline/segment boundary.
	require.NoError(t, a.ResizeLeft(n+3))
	require.Equal(t, n+3, a.Size())
	for i := uint32(0); i < 3; i++ {
		assert.Equal(t, value.Empty, a.At(i))
	}
	checkValues(t, a, 3)

	// Shift them off again, then one more.
	require.NoError(t, a.ResizeLeft(n))
	checkValues(t, a, 0)
	require.NoError(t, a.ResizeLeft(n-1))
	for i := uint32(0); i < a.Size(); i++ {
		require.Equal(t, num(i+1), a.At(i), "element %d", i)
	}
}

func TestResizeLeftLargeShift(t *testing.T) {
	a, err := New(gc.NopCollector{}, 0)
	require.NoError(t, err)
	n := uint32(InlineThreshold + 3*SegmentMaxLength)
	fill(t, a, n)

	k := uint32(SegmentMaxLength + 7)
	require.NoError(t, a.ResizeLeft(n-k))
	for i := uint32(0); i < a.Size(); i++ {
		require.Equal(t, num(i+k), a.At(i), "element %d", i)
	}
	require.NoError(t, a.Resize(n))
	for i := n - k; i < n; i++ {
		require.Equal(t, value.Empty, a.At(i), "element %d", i)
	}
}

func TestSetAndSetNonPtr(t *testing.T) {
	rec := gc.NewRecorder()
	a, err := New(rec, 2)
	require.NoError(t, err)
	require.NoError(t, a.Resize(2))
	rec.Reset()

	obj := value.EncodeObject(value.MakeRef(2, 64))
	a.Set(0, obj)
	assert.Equal(t, 1, rec.Writes)
	a.SetNonPtr(0, value.True)
	assert.Equal(t, 1, rec.Snapshots)
	assert.Equal(t, value.True, a.At(0))
	a.SetNonPtr(1, value.Null)
	assert.Equal(t, 1, rec.Snapshots, "overwriting filler needs no barrier")
}

func TestMarkerNeverSeesUninitializedSlots(t *testing.T) {
	rec := gc.NewRecorder()
	var a *Array
	scans := 0
	rec.OnAllocate = func(uint32) {
		if a == nil {
			return
		}
		scans++
		a.ForEachConcurrent(func(i uint32, v value.Value) {
			assert.Equal(t, num(i), v, "element %d", i)
		})
		pushed := a.Size()
		a.Scan(gc.VisitorFuncs{Slot: func(s *gc.Slot) {
			v := s.LoadConcurrent()
			if v.IsEmpty() {
				return
			}
			assert.True(t, v.IsNumber() && v.Double() < float64(pushed), "stale or garbage slot %v", v)
		}})
	}
	var err error
	a, err = New(rec, 1)
	require.NoError(t, err)
	fill(t, a, InlineThreshold+2*SegmentMaxLength)
	assert.Greater(t, scans, 3)
}

func TestTrim(t *testing.T) {
	rec := &gc.Recorder{}
	a, err := New(rec, 0)
	require.NoError(t, err)
	fill(t, a, InlineThreshold+3*SegmentMaxLength)

	require.NoError(t, a.Resize(InlineThreshold+10))
	before := rec.Allocations
	a.Trim()
	assert.Equal(t, before+1, rec.Allocations, "trimming the spine allocates a new one")
	assert.Equal(t, 1, a.NumSegments())
	checkValues(t, a, 0)

	require.NoError(t, a.Resize(10))
	before = rec.Allocations
	a.Trim()
	assert.Equal(t, before+1, rec.Allocations, "trimming inline storage allocates")
	assert.Zero(t, rec.Oversized)
	assert.Equal(t, 0, a.NumSegments())
	assert.Equal(t, uint32(10), a.Capacity())
	checkValues(t, a, 0)

	require.NoError(t, a.PushBack(num(10)))
	checkValues(t, a, 0)
}

func TestScanCoversAllStorage(t *testing.T) {
	a, err := New(gc.NopCollector{}, 0)
	require.NoError(t, err)
	fill(t, a, InlineThreshold+1)

	visited := 0
	a.Scan(gc.VisitorFuncs{Slot: func(*gc.Slot) { visited++ }})
	assert.Equal(t, int(a.Capacity()), visited)
}
