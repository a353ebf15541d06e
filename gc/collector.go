// Package gc defines the contract between the runtime core and the garbage
// collector: the barrier callbacks every heap mutation must run, the root
// visitor interface, the per-type slot layout table the collector walks, and
// the allocation ceiling every capacity limit derives from.
//
// The collector itself (marking, sweeping, compaction) lives outside this
// module. Anything in here that looks like a collector (NopCollector,
// Recorder) exists to satisfy the contract in tests and tools.
package gc

import "github.com/chazu/jsheap/value"

// DefaultMaxAllocSize is the largest single allocation, in bytes, that the
// default collector configuration accepts.
const DefaultMaxAllocSize uint32 = 4 << 20

// Collector is the set of callbacks the mutator runs on behalf of the
// collector. All calls happen on the mutator goroutine.
type Collector interface {
	// WriteBarrier runs before loc is overwritten. old is the current
	// contents and newVal the value about to be stored. Called whenever
	// either is a pointer or old is a symbol.
	WriteBarrier(loc *Slot, old, newVal value.Value)

	// SnapshotBarrier runs before a slot holding old is overwritten with a
	// non-pointer, or becomes unreachable without being written.
	SnapshotBarrier(old value.Value)

	// SymbolBarrier runs before a symbol slot holding old is overwritten.
	SymbolBarrier(old uint32)

	// SnapshotRange runs before a range of live slots is overwritten in
	// bulk, or dropped without being written.
	SnapshotRange(old []Slot)

	// WriteRange runs after a range of slots received new contents in bulk.
	WriteRange(slots []Slot)

	// MaxAllocSize is the largest single allocation the collector accepts.
	// Every capacity ceiling in the core derives from it.
	MaxAllocSize() uint32

	// WillAllocate is called before every allocation of size bytes. The
	// collector may run (part of) a collection here, so all memory
	// reachable from the mutator must be initialized when it is called.
	WillAllocate(size uint32)
}

// RootAcceptor receives the location of every root. The collector may
// rewrite *loc in place when the referent moves.
type RootAcceptor interface {
	AcceptRoot(loc *value.Value)
}

// RootAcceptorFunc adapts a function to RootAcceptor.
type RootAcceptorFunc func(loc *value.Value)

func (f RootAcceptorFunc) AcceptRoot(loc *value.Value) { f(loc) }

// RootProvider is implemented by anything that holds roots outside the
// heap (the handle stack, the symbol table's string cache).
type RootProvider interface {
	ForEachRoot(a RootAcceptor)
}

// Trimmer is implemented by structures that give back unused capacity in a
// post-collection pass.
type Trimmer interface {
	Trim()
}

// ---------------------------------------------------------------------------
// NopCollector
// ---------------------------------------------------------------------------

// NopCollector is a stop-the-world, non-generational collector's view of
// the barriers: none of them need to do anything.
type NopCollector struct {
	// MaxAlloc overrides DefaultMaxAllocSize when non-zero.
	MaxAlloc uint32
}

func (NopCollector) WriteBarrier(*Slot, value.Value, value.Value) {}
func (NopCollector) SnapshotBarrier(value.Value)                  {}
func (NopCollector) SymbolBarrier(uint32)                         {}
func (NopCollector) SnapshotRange([]Slot)                         {}
func (NopCollector) WriteRange([]Slot)                            {}
func (NopCollector) WillAllocate(uint32)                          {}

func (c NopCollector) MaxAllocSize() uint32 {
	if c.MaxAlloc != 0 {
		return c.MaxAlloc
	}
	return DefaultMaxAllocSize
}
