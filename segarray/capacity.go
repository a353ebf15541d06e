package segarray

import (
	"sync"
	"unsafe"

	"github.com/chazu/jsheap/gc"
)

const (
	headerSize = uint64(unsafe.Sizeof(Array{}) + unsafe.Sizeof(storage{}))
	slotSize   = uint64(unsafe.Sizeof(gc.Slot{}))

	segmentAllocationSize = uint64(unsafe.Sizeof(Segment{}))
)

// allocationSize is the size of the owning allocation: the inline slots
// plus one pointer-sized spine entry per segment.
func allocationSize(inline, segments uint32) uint64 {
	return headerSize + (uint64(inline)+uint64(segments))*slotSize
}

var maxElementsCache sync.Map // uint32 max alloc size -> uint32

// MaxElements returns the largest size an array can reach under the
// collector's largest single allocation. Segments are separate
// allocations, so the limit comes from how many spine entries fit next to
// a full inline prefix.
func MaxElements(c gc.Collector) uint32 {
	limit := uint64(c.MaxAllocSize())
	if v, ok := maxElementsCache.Load(limit); ok {
		return v.(uint32)
	}
	var n uint64
	switch {
	case limit < allocationSize(0, 0):
		n = 0
	case limit < allocationSize(InlineThreshold, 1) || limit < segmentAllocationSize:
		n = min((limit-headerSize)/slotSize, InlineThreshold)
	default:
		n = InlineThreshold + uint64(maxSpineEntries(c))*SegmentMaxLength
	}
	n = min(n, uint64(^uint32(0)))
	maxElementsCache.Store(limit, uint32(n))
	return uint32(n)
}

// maxSpineEntries is the largest spine that fits next to a full inline
// prefix in one allocation.
func maxSpineEntries(c gc.Collector) int {
	limit := uint64(c.MaxAllocSize())
	base := allocationSize(InlineThreshold, 0)
	if limit < base {
		return 0
	}
	return int(min((limit-base)/slotSize, uint64(^uint32(0))))
}
