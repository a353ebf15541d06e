package vm

import (
	"slices"
	"unsafe"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/jserror"
	"github.com/chazu/jsheap/value"
)

// ---------------------------------------------------------------------------
// Heap: registry of every object and string cell in a runtime
// ---------------------------------------------------------------------------

// cellAlign is the granularity of heap offsets.
const cellAlign = 16

// segmentSpan is how many bytes of offsets one heap segment covers.
const segmentSpan = 1 << 32

// Heap maps compressed references to the Go values they denote. Values
// encode a value.Ref, never a Go pointer, so the Go collector owns the
// memory and the heap owns identity.
type Heap struct {
	rt      *Runtime
	objects map[value.Ref]*Object
	strings map[value.Ref]string

	segment uint16
	offset  uint64
}

// HeapStats summarizes a heap.
type HeapStats struct {
	Objects    int
	Strings    int
	Properties int
	Elements   int
	Segments   int
}

func newHeap(rt *Runtime) *Heap {
	return &Heap{
		rt:      rt,
		objects: make(map[value.Ref]*Object),
		strings: make(map[value.Ref]string),
		segment: 1,
	}
}

// allocRef informs the collector and reserves a reference for a cell of
// size bytes.
func (h *Heap) allocRef(size uintptr) value.Ref {
	h.rt.Collector.WillAllocate(uint32(size))
	span := (uint64(size) + cellAlign - 1) &^ (cellAlign - 1)
	if h.offset+span > segmentSpan {
		h.segment++
		h.offset = 0
	}
	ref := value.MakeRef(h.segment, uint32(h.offset))
	h.offset += span
	return ref
}

// NewObject allocates an ordinary object with the given prototype.
func (h *Heap) NewObject(proto value.Value) (*Object, error) {
	if !proto.IsObject() && !proto.IsNull() {
		return nil, jserror.Typef("object prototype may only be an object or null")
	}
	ref := h.allocRef(unsafe.Sizeof(Object{}))
	o := newObject(h, ref)
	o.proto.InitSlot(proto, h.rt.Collector)
	h.objects[ref] = o
	return o, nil
}

// AllocString allocates a string cell.
func (h *Heap) AllocString(s string) value.Value {
	ref := h.allocRef(unsafe.Sizeof("") + uintptr(len(s)))
	h.strings[ref] = s
	return value.EncodeString(ref)
}

// Object returns the object v refers to, or nil.
func (h *Heap) Object(v value.Value) *Object {
	if !v.IsObject() {
		return nil
	}
	return h.objects[v.Ref()]
}

// String returns the contents of the string cell v refers to.
func (h *Heap) String(v value.Value) (string, bool) {
	if !v.IsString() {
		return "", false
	}
	s, ok := h.strings[v.Ref()]
	return s, ok
}

// Free drops the cell v refers to, as a sweep would.
func (h *Heap) Free(v value.Value) {
	switch {
	case v.IsObject():
		delete(h.objects, v.Ref())
	case v.IsString():
		delete(h.strings, v.Ref())
	}
}

// Len returns the number of live objects.
func (h *Heap) Len() int { return len(h.objects) }

// ForEachObject calls fn for every object in allocation order.
func (h *Heap) ForEachObject(fn func(o *Object)) {
	refs := make([]value.Ref, 0, len(h.objects))
	for r := range h.objects {
		refs = append(refs, r)
	}
	slices.Sort(refs)
	for _, r := range refs {
		fn(h.objects[r])
	}
}

// Scan walks every slot of every object.
func (h *Heap) Scan(v gc.Visitor) {
	h.ForEachObject(func(o *Object) { o.Scan(v) })
}

// Stats summarizes the heap.
func (h *Heap) Stats() HeapStats {
	s := HeapStats{Objects: len(h.objects), Strings: len(h.strings), Segments: int(h.segment)}
	for _, o := range h.objects {
		if o.props != nil {
			s.Properties += int(o.props.Size())
		}
		if o.elements != nil {
			s.Elements += int(o.elements.Size())
		}
	}
	return s
}

// trim gives back unused capacity of every object. Returns the number of
// objects visited.
func (h *Heap) trim() int {
	for _, o := range h.objects {
		o.trim()
	}
	return len(h.objects)
}
