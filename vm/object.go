package vm

import (
	"unsafe"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/jserror"
	"github.com/chazu/jsheap/propmap"
	"github.com/chazu/jsheap/segarray"
	"github.com/chazu/jsheap/symbols"
	"github.com/chazu/jsheap/value"
)

// Object is a dictionary-mode object.
//
// Named property values use a hybrid slot layout:
//   - 4 direct slots for the first property slots (most objects)
//   - an overflow segmented array for the rest
//
// The property map assigns slot numbers; erased properties give their
// slot back for reuse. Indexed elements live in a separate segmented
// array in which Empty marks a hole.
type Object struct {
	heap *Heap
	ref  value.Ref

	proto  gc.Slot
	direct [NumDirectSlots]gc.Slot

	props    *propmap.Map
	overflow *segarray.Array
	elements *segarray.Array

	nonExtensible bool
}

// NumDirectSlots is the number of property slots stored in the Object.
const NumDirectSlots = 4

// maxProtoDepth bounds prototype walks.
const maxProtoDepth = 10000

func newObject(h *Heap, ref value.Ref) *Object {
	o := &Object{heap: h, ref: ref}
	for i := range o.direct {
		o.direct[i].InitSlot(value.Empty, h.rt.Collector)
	}
	return o
}

func (o *Object) c() gc.Collector { return o.heap.rt.Collector }

// Value returns the object as a tagged value.
func (o *Object) Value() value.Value { return value.EncodeObject(o.ref) }

// Ref returns the object's heap reference.
func (o *Object) Ref() value.Ref { return o.ref }

// ---------------------------------------------------------------------------
// Slot access
// ---------------------------------------------------------------------------

func (o *Object) getSlot(s uint32) value.Value {
	if s < NumDirectSlots {
		return o.direct[s].Get()
	}
	return o.overflow.At(s - NumDirectSlots)
}

func (o *Object) setSlot(s uint32, v value.Value) error {
	if s < NumDirectSlots {
		o.direct[s].Set(v, o.c())
		return nil
	}
	i := s - NumDirectSlots
	if o.overflow == nil {
		a, err := segarray.New(o.c(), NumDirectSlots)
		if err != nil {
			return err
		}
		o.overflow = a
	}
	if i >= o.overflow.Size() {
		if err := o.overflow.Resize(i + 1); err != nil {
			return err
		}
	}
	o.overflow.Set(i, v)
	return nil
}

func (o *Object) clearSlot(s uint32) {
	if s < NumDirectSlots {
		o.direct[s].SetNonPtr(value.Empty, o.c())
		return
	}
	o.overflow.SetNonPtr(s-NumDirectSlots, value.Empty)
}

// NumSlots returns the number of named property slots in use, including
// slots of erased properties awaiting reuse.
func (o *Object) NumSlots() int {
	if o.overflow == nil {
		return NumDirectSlots
	}
	return NumDirectSlots + int(o.overflow.Size())
}

// ---------------------------------------------------------------------------
// Prototype
// ---------------------------------------------------------------------------

// Proto returns the prototype object, or nil for null.
func (o *Object) Proto() *Object {
	return o.heap.Object(o.proto.Get())
}

// SetProto replaces the prototype. p must be an object or null and must
// not have o on its own chain.
func (o *Object) SetProto(p value.Value) Result {
	if !p.IsObject() && !p.IsNull() {
		return Exception(jserror.Typef("object prototype may only be an object or null"))
	}
	for q, depth := o.heap.Object(p), 0; q != nil; q, depth = q.Proto(), depth+1 {
		if q == o || depth > maxProtoDepth {
			return Exception(jserror.Typef("cyclic prototype value"))
		}
	}
	o.proto.Set(p, o.c())
	return Found(p)
}

// PreventExtensions stops new properties and elements from being added.
func (o *Object) PreventExtensions() { o.nonExtensible = true }

// IsExtensible reports whether properties may be added.
func (o *Object) IsExtensible() bool { return !o.nonExtensible }

// ---------------------------------------------------------------------------
// Named properties
// ---------------------------------------------------------------------------

// GetOwnProperty returns the descriptor and value of an own property.
func (o *Object) GetOwnProperty(id symbols.SymbolID) (propmap.Descriptor, value.Value, bool) {
	if o.props == nil {
		return propmap.Descriptor{}, value.Undefined, false
	}
	pos, ok := o.props.Find(id)
	if !ok {
		return propmap.Descriptor{}, value.Undefined, false
	}
	_, d := o.props.Get(pos)
	return *d, o.getSlot(d.Slot), true
}

// HasOwnProperty reports whether id is an own property.
func (o *Object) HasOwnProperty(id symbols.SymbolID) bool {
	_, _, ok := o.GetOwnProperty(id)
	return ok
}

// GetNamed looks id up on the object and its prototype chain. Accessor
// properties yield the stored accessor pair; calling it is up to the
// interpreter.
func (o *Object) GetNamed(id symbols.SymbolID) Result {
	for obj, depth := o, 0; obj != nil && depth <= maxProtoDepth; obj, depth = obj.Proto(), depth+1 {
		if _, v, ok := obj.GetOwnProperty(id); ok {
			return Found(v)
		}
	}
	return NotFound()
}

// GetNamedCached is GetNamed through an inline cache for the call site.
func (o *Object) GetNamedCached(pc *PropertyCache, id symbols.SymbolID) Result {
	if o.props != nil {
		if slot, ok := pc.Lookup(o.props); ok {
			return Found(o.getSlot(slot))
		}
		if pos, ok := o.props.Find(id); ok {
			_, d := o.props.Get(pos)
			pc.Update(o.props, d.Slot)
			return Found(o.getSlot(d.Slot))
		}
	}
	if p := o.Proto(); p != nil {
		return p.GetNamed(id)
	}
	return NotFound()
}

// PutNamed assigns v to id. An existing own property keeps its flags; a
// read-only own or inherited property makes the assignment throw.
func (o *Object) PutNamed(id symbols.SymbolID, v value.Value) Result {
	if o.props != nil {
		if pos, ok := o.props.Find(id); ok {
			_, d := o.props.Get(pos)
			if d.Flags&propmap.Writable == 0 {
				return Exception(jserror.Typef("cannot assign to read only property '%s'", o.heap.rt.name(id)))
			}
			if err := o.setSlot(d.Slot, v); err != nil {
				return Exception(err)
			}
			return Found(v)
		}
	}
	for p, depth := o.Proto(), 0; p != nil && depth <= maxProtoDepth; p, depth = p.Proto(), depth+1 {
		if d, _, ok := p.GetOwnProperty(id); ok {
			if d.Flags&propmap.Writable == 0 {
				return Exception(jserror.Typef("cannot assign to read only property '%s'", o.heap.rt.name(id)))
			}
			break
		}
	}
	return o.addNamed(id, v, propmap.DefaultFlags)
}

// DefineNamed creates or redefines an own property with the given flags.
// A non-configurable property may not change its flags, nor its value
// unless it is writable.
func (o *Object) DefineNamed(id symbols.SymbolID, v value.Value, flags propmap.Flags) Result {
	if o.props != nil {
		if pos, ok := o.props.Find(id); ok {
			_, d := o.props.Get(pos)
			if d.Flags&propmap.Configurable == 0 {
				if flags != d.Flags || (d.Flags&propmap.Writable == 0 && o.getSlot(d.Slot) != v) {
					return Exception(jserror.Typef("cannot redefine property: %s", o.heap.rt.name(id)))
				}
			}
			d.Flags = flags
			if err := o.setSlot(d.Slot, v); err != nil {
				return Exception(err)
			}
			return Found(v)
		}
	}
	return o.addNamed(id, v, flags)
}

func (o *Object) addNamed(id symbols.SymbolID, v value.Value, flags propmap.Flags) Result {
	if o.nonExtensible {
		return Exception(jserror.Typef("cannot add property %s, object is not extensible", o.heap.rt.name(id)))
	}
	if o.props == nil {
		m, err := propmap.New(o.c(), NumDirectSlots)
		if err != nil {
			return Exception(err)
		}
		o.props = m
	}
	d, err := o.props.Add(id, flags)
	if err != nil {
		return Exception(err)
	}
	if err := o.setSlot(d.Slot, v); err != nil {
		pos, _ := o.props.Find(id)
		o.props.Erase(pos)
		return Exception(err)
	}
	return Found(v)
}

// DeleteNamed removes an own property. The result is true unless the
// property exists and is not configurable.
func (o *Object) DeleteNamed(id symbols.SymbolID) Result {
	if o.props == nil {
		return Found(value.True)
	}
	pos, ok := o.props.Find(id)
	if !ok {
		return Found(value.True)
	}
	_, d := o.props.Get(pos)
	if d.Flags&propmap.Configurable == 0 {
		return Found(value.False)
	}
	erased := o.props.Erase(pos)
	o.clearSlot(erased.Slot)
	return Found(value.True)
}

// OwnKeys returns the own property names in insertion order, skipping
// internal properties and, if enumerableOnly, non-enumerable ones.
func (o *Object) OwnKeys(enumerableOnly bool) []symbols.SymbolID {
	if o.props == nil {
		return nil
	}
	keys := make([]symbols.SymbolID, 0, o.props.Size())
	o.props.ForEach(func(id symbols.SymbolID, d propmap.Descriptor) {
		if d.Flags&propmap.Internal != 0 {
			return
		}
		if enumerableOnly && d.Flags&propmap.Enumerable == 0 {
			return
		}
		keys = append(keys, id)
	})
	return keys
}

// Properties returns the property map, or nil if none was ever added.
func (o *Object) Properties() *propmap.Map { return o.props }

// ---------------------------------------------------------------------------
// Indexed elements
// ---------------------------------------------------------------------------

func (o *Object) ensureElements() error {
	if o.elements != nil {
		return nil
	}
	a, err := segarray.New(o.c(), NumDirectSlots)
	if err != nil {
		return err
	}
	o.elements = a
	return nil
}

// Length returns the number of elements, holes included.
func (o *Object) Length() uint32 {
	if o.elements == nil {
		return 0
	}
	return o.elements.Size()
}

// GetIndexed looks element i up on the object and its prototype chain.
// Holes fall through to the prototype.
func (o *Object) GetIndexed(i uint32) Result {
	for obj, depth := o, 0; obj != nil && depth <= maxProtoDepth; obj, depth = obj.Proto(), depth+1 {
		if obj.elements != nil && i < obj.elements.Size() {
			if v := obj.elements.At(i); !v.IsEmpty() {
				return Found(v)
			}
		}
	}
	return NotFound()
}

// PutIndexed stores v at element i, growing the elements with holes.
func (o *Object) PutIndexed(i uint32, v value.Value) Result {
	if err := o.ensureElements(); err != nil {
		return Exception(err)
	}
	if i >= o.elements.Size() || o.elements.At(i).IsEmpty() {
		if o.nonExtensible {
			return Exception(jserror.Typef("cannot add element %d, object is not extensible", i))
		}
	}
	if i >= o.elements.Size() {
		if i == ^uint32(0) {
			return Exception(jserror.NewRange("array length", uint64(i)+1, uint64(i)))
		}
		if err := o.elements.Resize(i + 1); err != nil {
			return Exception(err)
		}
	}
	o.elements.Set(i, v)
	return Found(v)
}

// DeleteIndexed turns element i into a hole.
func (o *Object) DeleteIndexed(i uint32) Result {
	if o.elements != nil && i < o.elements.Size() {
		o.elements.SetNonPtr(i, value.Empty)
	}
	return Found(value.True)
}

// Push appends v and returns the new length.
func (o *Object) Push(v value.Value) Result {
	if o.nonExtensible {
		return Exception(jserror.Typef("cannot add element, object is not extensible"))
	}
	if err := o.ensureElements(); err != nil {
		return Exception(err)
	}
	if err := o.elements.PushBack(v); err != nil {
		return Exception(err)
	}
	return Found(value.EncodeUint32(o.elements.Size()))
}

// SetLength truncates or extends the elements. Extension adds holes.
func (o *Object) SetLength(n uint32) Result {
	if err := o.ensureElements(); err != nil {
		return Exception(err)
	}
	if err := o.elements.Resize(n); err != nil {
		return Exception(err)
	}
	return Found(value.EncodeUint32(n))
}

// Shift removes and returns the first element. A hole or an empty array
// yields undefined.
func (o *Object) Shift() Result {
	if o.Length() == 0 {
		return Found(value.Undefined)
	}
	v := o.elements.At(0)
	if v.IsEmpty() {
		v = value.Undefined
	}
	if err := o.elements.ResizeLeft(o.elements.Size() - 1); err != nil {
		return Exception(err)
	}
	return Found(v)
}

// Unshift prepends vals and returns the new length.
func (o *Object) Unshift(vals ...value.Value) Result {
	if o.nonExtensible && len(vals) > 0 {
		return Exception(jserror.Typef("cannot add element, object is not extensible"))
	}
	if err := o.ensureElements(); err != nil {
		return Exception(err)
	}
	n := uint64(o.elements.Size()) + uint64(len(vals))
	if n > uint64(segarray.MaxElements(o.c())) {
		return Exception(jserror.NewRange("array length", n, uint64(segarray.MaxElements(o.c()))))
	}
	if err := o.elements.ResizeLeft(uint32(n)); err != nil {
		return Exception(err)
	}
	for i, v := range vals {
		o.elements.Set(uint32(i), v)
	}
	return Found(value.EncodeUint32(uint32(n)))
}

// Elements returns the element array, or nil if none was ever stored.
func (o *Object) Elements() *segarray.Array { return o.elements }

// ---------------------------------------------------------------------------
// Collector support
// ---------------------------------------------------------------------------

// Scan walks every slot the object owns: its own cell, then the property
// map, overflow slots and elements.
func (o *Object) Scan(v gc.Visitor) {
	gc.Scan(gc.KindObject, unsafe.Pointer(o), v)
	if o.props != nil {
		o.props.Scan(v)
	}
	if o.overflow != nil {
		o.overflow.Scan(v)
	}
	if o.elements != nil {
		o.elements.Scan(v)
	}
}

func (o *Object) trim() {
	if o.overflow != nil {
		o.overflow.Trim()
	}
	if o.elements != nil {
		o.elements.Trim()
	}
}

func init() {
	gc.Register(gc.KindObject, &gc.Layout{
		Name:  "vm.Object",
		Size:  unsafe.Sizeof(Object{}),
		Slots: []uintptr{unsafe.Offsetof(Object{}.proto)},
		Arrays: []gc.ArrayField{
			{Offset: unsafe.Offsetof(Object{}.direct), Len: NumDirectSlots, Elem: gc.SlotLayout},
		},
	})
}
