package gc

import "github.com/chazu/jsheap/value"

// EventKind identifies a barrier callback recorded by a Recorder.
type EventKind uint8

const (
	EventWrite EventKind = iota + 1
	EventSnapshot
	EventSymbol
	EventSnapshotRange
	EventWriteRange
	EventAllocate
)

// Event is one recorded callback.
type Event struct {
	Kind  EventKind
	Old   value.Value
	New   value.Value
	Count int    // range length for range events
	Size  uint32 // bytes for EventAllocate
}

// Recorder is a collector that counts and optionally records every
// callback. Tests and the stress tool use it to check that mutations
// inform the collector and stay within MaxAlloc, and OnAllocate lets them
// inspect structures at the exact points where a real collector could run.
type Recorder struct {
	// MaxAlloc overrides DefaultMaxAllocSize when non-zero.
	MaxAlloc uint32
	// KeepEvents makes the recorder append every callback to Events.
	KeepEvents bool
	// OnAllocate runs inside WillAllocate.
	OnAllocate func(size uint32)

	Events []Event

	Writes          int
	Snapshots       int
	SymbolWrites    int
	SnapshotRanges  int
	SnapshotSlots   int
	WriteRanges     int
	Allocations     int
	AllocatedBytes  uint64
	SnapshottedRefs int

	// LargestAllocation is the biggest size passed to WillAllocate.
	LargestAllocation uint32
	// Oversized counts allocations above MaxAllocSize. A collector would
	// refuse them, so any non-zero value is a bug in a capacity limit.
	Oversized int
}

// NewRecorder returns a recorder that keeps events.
func NewRecorder() *Recorder {
	return &Recorder{KeepEvents: true}
}

func (r *Recorder) record(e Event) {
	if r.KeepEvents {
		r.Events = append(r.Events, e)
	}
}

func (r *Recorder) WriteBarrier(_ *Slot, old, newVal value.Value) {
	r.Writes++
	if old.IsPointer() {
		r.SnapshottedRefs++
	}
	r.record(Event{Kind: EventWrite, Old: old, New: newVal})
}

func (r *Recorder) SnapshotBarrier(old value.Value) {
	r.Snapshots++
	if old.IsPointer() {
		r.SnapshottedRefs++
	}
	r.record(Event{Kind: EventSnapshot, Old: old})
}

func (r *Recorder) SymbolBarrier(old uint32) {
	r.SymbolWrites++
	r.record(Event{Kind: EventSymbol, Old: value.EncodeSymbol(old)})
}

func (r *Recorder) SnapshotRange(old []Slot) {
	r.SnapshotRanges++
	r.SnapshotSlots += len(old)
	for i := range old {
		if old[i].Get().IsPointer() {
			r.SnapshottedRefs++
		}
	}
	r.record(Event{Kind: EventSnapshotRange, Count: len(old)})
}

func (r *Recorder) WriteRange(slots []Slot) {
	r.WriteRanges++
	r.record(Event{Kind: EventWriteRange, Count: len(slots)})
}

func (r *Recorder) MaxAllocSize() uint32 {
	if r.MaxAlloc != 0 {
		return r.MaxAlloc
	}
	return DefaultMaxAllocSize
}

func (r *Recorder) WillAllocate(size uint32) {
	r.Allocations++
	r.AllocatedBytes += uint64(size)
	r.LargestAllocation = max(r.LargestAllocation, size)
	if size > r.MaxAllocSize() {
		r.Oversized++
	}
	r.record(Event{Kind: EventAllocate, Size: size})
	if r.OnAllocate != nil {
		r.OnAllocate(size)
	}
}

// CountKind returns how many recorded events have kind k.
func (r *Recorder) CountKind(k EventKind) int {
	n := 0
	for _, e := range r.Events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// Reset clears counters and events, keeping configuration.
func (r *Recorder) Reset() {
	*r = Recorder{MaxAlloc: r.MaxAlloc, KeepEvents: r.KeepEvents, OnAllocate: r.OnAllocate}
}
