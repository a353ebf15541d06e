package gc

import (
	"sync/atomic"
	"unsafe"

	"github.com/chazu/jsheap/internal/debug"
	"github.com/chazu/jsheap/value"
)

// Slot is a heap-resident value location. Its only mutators run the write
// barrier, so a slot cannot be written without informing the collector.
//
// The mutator is the only writer. Stores are atomic so that a concurrent
// marker reading through LoadConcurrent always sees a whole value.
type Slot struct {
	raw uint64
}

// Get returns the stored value. Mutator goroutine only.
func (s *Slot) Get() value.Value { return value.Value(s.raw) }

// LoadConcurrent returns the stored value from a goroutine other than the
// mutator (the concurrent marker).
func (s *Slot) LoadConcurrent() value.Value {
	return value.Value(atomic.LoadUint64(&s.raw))
}

// Set stores v, running the full write barrier when the old or new value
// is a pointer or the old value is a symbol.
func (s *Slot) Set(v value.Value, c Collector) {
	old := value.Value(s.raw)
	if old.IsPointer() || old.IsSymbol() || v.IsPointer() {
		c.WriteBarrier(s, old, v)
	}
	atomic.StoreUint64(&s.raw, uint64(v))
}

// SetNonPtr stores a value that is known not to be a pointer. Only the
// snapshot barrier on the old value may be needed.
func (s *Slot) SetNonPtr(v value.Value, c Collector) {
	debug.Assert(!v.IsPointer(), "Slot.SetNonPtr: value is a pointer")
	old := value.Value(s.raw)
	if old.IsPointer() || old.IsSymbol() {
		c.SnapshotBarrier(old)
	}
	atomic.StoreUint64(&s.raw, uint64(v))
}

// InitSlot stores v into memory that has never held a live value. The old
// contents are not read. Never use it on a slot reachable by the marker
// that may hold a live value.
func (s *Slot) InitSlot(v value.Value, c Collector) {
	if v.IsPointer() {
		c.WriteBarrier(s, value.Empty, v)
	}
	atomic.StoreUint64(&s.raw, uint64(v))
}

// Unreachable informs the collector that the slot's value is being
// dropped without a write, as if Empty had been stored.
func (s *Slot) Unreachable(c Collector) {
	old := value.Value(s.raw)
	if old.IsPointer() || old.IsSymbol() {
		c.SnapshotBarrier(old)
	}
}

// Relocate rewrites the slot without any barrier. Only the collector may
// call it, while the mutator is paused.
func (s *Slot) Relocate(v value.Value) {
	atomic.StoreUint64(&s.raw, uint64(v))
}

// SymbolSlot is a heap-resident symbol id location.
type SymbolSlot struct {
	raw uint32
}

// Get returns the stored raw symbol id.
func (s *SymbolSlot) Get() uint32 { return s.raw }

// LoadConcurrent returns the stored raw id from the marker goroutine.
func (s *SymbolSlot) LoadConcurrent() uint32 { return atomic.LoadUint32(&s.raw) }

// Set stores id, running the symbol barrier on the old id.
func (s *SymbolSlot) Set(id uint32, c Collector) {
	c.SymbolBarrier(s.raw)
	atomic.StoreUint32(&s.raw, id)
}

// InitSymbol stores id into a slot that never held a live symbol.
func (s *SymbolSlot) InitSymbol(id uint32) {
	atomic.StoreUint32(&s.raw, id)
}

// ---------------------------------------------------------------------------
// Bulk operations
// ---------------------------------------------------------------------------

// Fill overwrites every live slot in dst with v.
func Fill(dst []Slot, v value.Value, c Collector) {
	if len(dst) == 0 {
		return
	}
	c.SnapshotRange(dst)
	fillRaw(dst, v)
	if v.IsPointer() {
		c.WriteRange(dst)
	}
}

// UninitializedFill writes v into slots that hold no live values yet.
func UninitializedFill(dst []Slot, v value.Value, c Collector) {
	if len(dst) == 0 {
		return
	}
	fillRaw(dst, v)
	if v.IsPointer() {
		c.WriteRange(dst)
	}
}

// Copy copies src into live slots dst. Overlapping ranges are handled like
// the copy builtin. Returns the number of slots copied.
func Copy(dst, src []Slot, c Collector) int {
	n := min(len(dst), len(src))
	if n == 0 {
		return 0
	}
	dst = dst[:n]
	c.SnapshotRange(dst)
	copyRaw(dst, src[:n])
	c.WriteRange(dst)
	return n
}

// UninitializedCopy copies src into slots that hold no live values yet.
func UninitializedCopy(dst, src []Slot, c Collector) int {
	n := min(len(dst), len(src))
	if n == 0 {
		return 0
	}
	dst = dst[:n]
	copyRaw(dst, src[:n])
	c.WriteRange(dst)
	return n
}

// RangeUnreachable informs the collector that every value in slots is being
// dropped without a write (for example when an array shrinks).
func RangeUnreachable(slots []Slot, c Collector) {
	if len(slots) == 0 {
		return
	}
	c.SnapshotRange(slots)
}

func fillRaw(dst []Slot, v value.Value) {
	for i := range dst {
		atomic.StoreUint64(&dst[i].raw, uint64(v))
	}
}

func copyRaw(dst, src []Slot) {
	if uintptr(unsafe.Pointer(&dst[0])) > uintptr(unsafe.Pointer(&src[0])) {
		for i := len(dst) - 1; i >= 0; i-- {
			atomic.StoreUint64(&dst[i].raw, src[i].raw)
		}
		return
	}
	for i := range dst {
		atomic.StoreUint64(&dst[i].raw, src[i].raw)
	}
}
