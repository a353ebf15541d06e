package propmap

import (
	"sync"
	"unsafe"

	"github.com/chazu/jsheap/gc"
)

// headerSize approximates the fixed part of a property map allocation.
const headerSize = uint64(unsafe.Sizeof(Map{}) + unsafe.Sizeof(storage{}))

// maxIndexCapacity keeps descriptor indices clear of the hash slot states.
const maxIndexCapacity = uint64(^uint32(0) - hashBias)

// HashCapacity returns the hash table size for a descriptor capacity:
// the next power of two of 4/3 of it, so the table stays at most 75% full.
func HashCapacity(capacity uint32) uint32 {
	want := (uint64(capacity)*4 + 2) / 3
	p := uint64(1)
	for p < want {
		p <<= 1
	}
	return uint32(min(p, 1<<31))
}

// AllocationSize returns the bytes needed for a map of the given capacity.
func AllocationSize(capacity uint32) uint64 {
	return headerSize +
		uint64(capacity)*uint64(unsafe.Sizeof(pair{})) +
		uint64(HashCapacity(capacity))*uint64(unsafe.Sizeof(hashPair{}))
}

var maxCapacityCache sync.Map // uint32 max alloc size -> uint32

// MaxCapacity returns the largest capacity whose allocation fits in the
// collector's largest single allocation. It is computed once per
// allocation limit by binary search over AllocationSize.
func MaxCapacity(c gc.Collector) uint32 {
	limit := c.MaxAllocSize()
	if v, ok := maxCapacityCache.Load(limit); ok {
		return v.(uint32)
	}
	lo, hi := uint64(0), maxIndexCapacity
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if AllocationSize(uint32(mid)) <= uint64(limit) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	maxCapacityCache.Store(limit, uint32(lo))
	return uint32(lo)
}
