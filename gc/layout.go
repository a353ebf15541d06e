package gc

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"
)

// CellKind identifies a heap type in the layout table.
type CellKind uint16

const (
	KindPropertyMap CellKind = iota + 1
	KindSegmentedArray
	KindSegment
	KindObject
)

// Layout describes where a heap type keeps its collector-visible fields,
// as byte offsets computed with unsafe.Offsetof. The collector's generic
// walker uses it instead of per-type virtual dispatch.
type Layout struct {
	Name string
	// Size is the size of one value of the type, used as the stride when
	// the type appears as an array element.
	Size uintptr
	// Slots are the offsets of Slot fields.
	Slots []uintptr
	// Symbols are the offsets of SymbolSlot fields.
	Symbols []uintptr
	// Arrays are inline arrays or slices of structs that embed slots.
	Arrays []ArrayField
	// Cells are slices of pointers to other cells.
	Cells []CellField
}

// ArrayField is a field holding elements described by Elem. Len > 0 means
// a fixed-size array embedded at Offset; Len == 0 means a slice header.
type ArrayField struct {
	Offset uintptr
	Len    int
	Elem   *Layout
}

// CellField is a []*T field whose elements are separate cells of layout Elem.
type CellField struct {
	Offset uintptr
	Elem   *Layout
}

// SlotLayout describes a bare Slot, for use as an ArrayField element.
var SlotLayout = &Layout{
	Name:  "Slot",
	Size:  unsafe.Sizeof(Slot{}),
	Slots: []uintptr{0},
}

// Visitor receives every slot the walker finds.
type Visitor interface {
	VisitSlot(s *Slot)
	VisitSymbol(s *SymbolSlot)
}

// sliceHeader mirrors the runtime representation of a slice.
type sliceHeader struct {
	data unsafe.Pointer
	len  int
	cap  int
}

// Walk visits every slot of the cell at ptr according to l.
func Walk(l *Layout, ptr unsafe.Pointer, v Visitor) {
	if ptr == nil {
		return
	}
	for _, off := range l.Slots {
		v.VisitSlot((*Slot)(unsafe.Add(ptr, off)))
	}
	for _, off := range l.Symbols {
		v.VisitSymbol((*SymbolSlot)(unsafe.Add(ptr, off)))
	}
	for _, a := range l.Arrays {
		base, n := unsafe.Add(ptr, a.Offset), a.Len
		if n == 0 {
			hdr := (*sliceHeader)(base)
			base, n = hdr.data, hdr.len
		}
		for i := 0; i < n; i++ {
			Walk(a.Elem, unsafe.Add(base, uintptr(i)*a.Elem.Size), v)
		}
	}
	for _, c := range l.Cells {
		hdr := (*sliceHeader)(unsafe.Add(ptr, c.Offset))
		for i := 0; i < hdr.len; i++ {
			child := *(*unsafe.Pointer)(unsafe.Add(hdr.data, uintptr(i)*unsafe.Sizeof(uintptr(0))))
			Walk(c.Elem, child, v)
		}
	}
}

// ---------------------------------------------------------------------------
// Layout table
// ---------------------------------------------------------------------------

var (
	layoutsMu sync.RWMutex
	layouts   = make(map[CellKind]*Layout)
)

// Register adds the layout for kind. Heap types register from init; a
// second registration for the same kind panics.
func Register(kind CellKind, l *Layout) {
	layoutsMu.Lock()
	defer layoutsMu.Unlock()
	if prev, ok := layouts[kind]; ok {
		panic(fmt.Sprintf("gc: layout for kind %d already registered (%s)", kind, prev.Name))
	}
	layouts[kind] = l
}

// LayoutOf returns the registered layout for kind, or nil.
func LayoutOf(kind CellKind) *Layout {
	layoutsMu.RLock()
	defer layoutsMu.RUnlock()
	return layouts[kind]
}

// Kinds returns every registered kind in ascending order.
func Kinds() []CellKind {
	layoutsMu.RLock()
	defer layoutsMu.RUnlock()
	out := make([]CellKind, 0, len(layouts))
	for k := range layouts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Scan walks the cell at ptr using the layout registered for kind.
func Scan(kind CellKind, ptr unsafe.Pointer, v Visitor) {
	l := LayoutOf(kind)
	if l == nil {
		panic(fmt.Sprintf("gc: no layout registered for kind %d", kind))
	}
	Walk(l, ptr, v)
}

// VisitorFuncs adapts a pair of functions to Visitor. Nil fields are skipped.
type VisitorFuncs struct {
	Slot   func(s *Slot)
	Symbol func(s *SymbolSlot)
}

func (f VisitorFuncs) VisitSlot(s *Slot) {
	if f.Slot != nil {
		f.Slot(s)
	}
}

func (f VisitorFuncs) VisitSymbol(s *SymbolSlot) {
	if f.Symbol != nil {
		f.Symbol(s)
	}
}
