package vm

import (
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/handles"
	"github.com/chazu/jsheap/symbols"
	"github.com/chazu/jsheap/value"
)

func log() commonlog.Logger { return commonlog.GetLogger("jsheap.vm") }

// Options configures a Runtime.
type Options struct {
	// Collector receives barrier and allocation callbacks. Nil selects a
	// gc.NopCollector limited to MaxAllocSize.
	Collector gc.Collector
	// MaxAllocSize is the largest single allocation when Collector is nil.
	// Zero means gc.DefaultMaxAllocSize.
	MaxAllocSize uint32
	// Handles configures the handle stack.
	Handles handles.Options
	// SymbolCapacity is the initial symbol table capacity.
	SymbolCapacity int
}

// Runtime is one isolated instance of the object model. It is owned by a
// single mutator goroutine.
type Runtime struct {
	ID        uuid.UUID
	Collector gc.Collector
	Symbols   *symbols.Table
	Handles   *handles.Stack
	Heap      *Heap

	collections int
}

// NewRuntime creates a runtime with an empty heap.
func NewRuntime(opts Options) *Runtime {
	c := opts.Collector
	if c == nil {
		c = gc.NopCollector{MaxAlloc: opts.MaxAllocSize}
	}
	rt := &Runtime{
		ID:        uuid.New(),
		Collector: c,
		Symbols:   symbols.New(opts.SymbolCapacity),
		Handles:   handles.NewStack(opts.Handles),
	}
	rt.Heap = newHeap(rt)
	log().Debugf("runtime %s created, max allocation %d", rt.ID, c.MaxAllocSize())
	return rt
}

// Intern returns the symbol for name.
func (rt *Runtime) Intern(name string) (symbols.SymbolID, error) {
	return rt.Symbols.Intern(name)
}

// MustIntern is Intern for names known to fit, such as literals.
func (rt *Runtime) MustIntern(name string) symbols.SymbolID {
	return rt.Symbols.MustIntern(name)
}

// NewObject allocates an ordinary object with the given prototype, which
// must be an object or null.
func (rt *Runtime) NewObject(proto value.Value) (*Object, error) {
	return rt.Heap.NewObject(proto)
}

// NewArray allocates an object whose elements are items.
func (rt *Runtime) NewArray(items ...value.Value) (*Object, error) {
	o, err := rt.Heap.NewObject(value.Null)
	if err != nil {
		return nil, err
	}
	if r := o.Unshift(items...); r.IsException() {
		return nil, r.Err
	}
	return o, nil
}

// SymbolString returns the string primitive naming id, allocating it on
// first use.
func (rt *Runtime) SymbolString(id symbols.SymbolID) value.Value {
	return rt.Symbols.StringValue(id, rt.Heap.AllocString)
}

// ForEachRoot reports every root held outside the heap: live handles and
// the symbol table's string cache.
func (rt *Runtime) ForEachRoot(a gc.RootAcceptor) {
	for _, p := range [...]gc.RootProvider{rt.Handles, rt.Symbols} {
		p.ForEachRoot(a)
	}
}

// AfterCollection is the post-collection hook. It trims every object's
// storage and releases symbol ids retired since the previous collection.
func (rt *Runtime) AfterCollection() {
	rt.collections++
	trimmed := rt.Heap.trim()
	pending := rt.Symbols.PendingLen()
	rt.Symbols.Trim()
	log().Debugf("collection %d: trimmed %d objects, released %d symbols", rt.collections, trimmed, pending)
}

// Collections returns how many times AfterCollection has run.
func (rt *Runtime) Collections() int { return rt.collections }

func (rt *Runtime) name(id symbols.SymbolID) string { return rt.Symbols.Name(id) }
