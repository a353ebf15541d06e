// Package propmap implements the dictionary-mode property map: an
// insertion-ordered hash map from SymbolID to property Descriptor, with
// recycling of the value slots of deleted properties.
//
// Descriptors live in an append-only array so enumeration follows insertion
// order; a separate open-addressed hash table indexes it. Erased entries
// stay in the array on a deleted list until their slot is handed out again
// or the map grows.
package propmap

import (
	"sync/atomic"
	"unsafe"

	"fortio.org/safecast"
	"github.com/tliron/commonlog"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/internal/debug"
	"github.com/chazu/jsheap/jserror"
	"github.com/chazu/jsheap/symbols"
)

func log() commonlog.Logger { return commonlog.GetLogger("jsheap.propmap") }

// storage is the allocation the map owns. It is replaced wholesale on
// growth and published to the marker through Map.published.
type storage struct {
	pairs []pair
	table []hashPair
}

// Map is a dictionary-mode property map. It is owned by the mutator
// goroutine; only ForEachSymbolConcurrent may run elsewhere.
type Map struct {
	c         gc.Collector
	st        *storage
	published atomic.Pointer[storage]

	// numDescriptors counts used entries of the descriptor array, valid or
	// deleted. It is published after the entry contents.
	numDescriptors atomic.Uint32
	numProperties  uint32

	deletedHead uint32
	deletedSize uint32

	version uint64
}

// Pos is a position in the map's hash table, as returned by Find.
type Pos uint32

// New returns an empty map with room for capacity descriptors.
func New(c gc.Collector, capacity uint32) (*Map, error) {
	if limit := MaxCapacity(c); capacity > limit {
		return nil, jserror.NewRange("property map", uint64(capacity), uint64(limit))
	}
	m := &Map{c: c, deletedHead: endOfList}
	m.publish(m.allocate(capacity))
	return m, nil
}

// allocate informs the collector and returns initialized storage.
func (m *Map) allocate(capacity uint32) *storage {
	size, err := safecast.Conv[uint32](AllocationSize(capacity))
	debug.Assert(err == nil, "propmap: allocation size overflows")
	m.c.WillAllocate(size)
	st := &storage{
		pairs: make([]pair, capacity),
		table: make([]hashPair, HashCapacity(capacity)),
	}
	for i := range st.pairs {
		st.pairs[i].name.InitSymbol(uint32(symbols.Empty))
	}
	return st
}

func (m *Map) publish(st *storage) {
	m.st = st
	m.published.Store(st)
}

// hashID spreads a symbol id over 32 bits; table positions use the low bits.
func hashID(id symbols.SymbolID) uint32 {
	h := uint32(id)
	h ^= h >> 16
	h *= 0x7feb352d
	h ^= h >> 15
	h *= 0x846ca68b
	h ^= h >> 16
	return h
}

// lookup probes for id. When absent, pos is the first deleted or empty
// position seen, which is where an insertion should go.
func (m *Map) lookup(id symbols.SymbolID) (pos uint32, found bool) {
	table := m.st.table
	mask := uint32(len(table) - 1)
	hash := hashID(id)
	idx := hash & mask
	insertAt, haveInsert := uint32(0), false
	for i := uint32(1); ; i++ {
		hp := table[idx]
		switch {
		case hp.isEmpty():
			if haveInsert {
				return insertAt, false
			}
			return idx, false
		case hp.isDeleted():
			if !haveInsert {
				insertAt, haveInsert = idx, true
			}
		case hp.hash == hash && symbols.SymbolID(m.st.pairs[hp.index()].name.Get()) == id:
			return idx, true
		}
		if i > mask {
			// Every position probed; the table holds no empty slot.
			debug.Assert(haveInsert, "propmap: hash table full")
			return insertAt, false
		}
		idx = (idx + i) & mask
	}
}

// Find returns the hash position of id, if present.
func (m *Map) Find(id symbols.SymbolID) (Pos, bool) {
	pos, found := m.lookup(id)
	return Pos(pos), found
}

// Get returns the name and descriptor at a position returned by Find. The
// descriptor pointer is valid until the next insertion.
func (m *Map) Get(pos Pos) (symbols.SymbolID, *Descriptor) {
	hp := m.st.table[pos]
	debug.Assert(hp.isValid(), "propmap: Get on a free position")
	p := &m.st.pairs[hp.index()]
	return symbols.SymbolID(p.name.Get()), &p.desc
}

// FindOrAdd returns the descriptor for id, adding it if absent. A new
// descriptor has zero flags and a freshly allocated slot.
func (m *Map) FindOrAdd(id symbols.SymbolID) (*Descriptor, bool, error) {
	pos, found := m.lookup(id)
	if found {
		return &m.st.pairs[m.st.table[pos].index()].desc, false, nil
	}
	if m.numDescriptors.Load() == uint32(len(m.st.pairs)) {
		if err := m.grow(); err != nil {
			return nil, false, err
		}
		pos, _ = m.lookup(id)
	}
	return m.insert(pos, id), true, nil
}

// Add inserts id, which must be absent, and returns its descriptor.
func (m *Map) Add(id symbols.SymbolID, flags Flags) (Descriptor, error) {
	d, inserted, err := m.FindOrAdd(id)
	if err != nil {
		return Descriptor{}, err
	}
	debug.Assert(inserted, "propmap: Add of a present name")
	d.Flags = flags
	return *d, nil
}

func (m *Map) insert(pos uint32, id symbols.SymbolID) *Descriptor {
	debug.Assert(id.IsValid(), "propmap: inserting an invalid symbol")
	n := m.numDescriptors.Load()
	p := &m.st.pairs[n]
	p.name.InitSymbol(uint32(id))
	p.state = pairValid
	p.next = endOfList
	m.st.table[pos] = hashPair{hash: hashID(id), desc: n + hashBias}
	m.numProperties++
	p.desc = Descriptor{Slot: m.AllocatePropertySlot()}
	m.numDescriptors.Store(n + 1)
	return &p.desc
}

// AllocatePropertySlot returns the slot for a property that has just been
// counted: the head of the deleted list if any, else the next dense slot.
func (m *Map) AllocatePropertySlot() uint32 {
	if m.deletedHead == endOfList {
		return m.numProperties - 1
	}
	p := &m.st.pairs[m.deletedHead]
	debug.Assert(p.state == pairDeleted, "propmap: deleted list entry not deleted")
	m.deletedHead = p.next
	m.deletedSize--
	p.state = pairRecycled
	p.next = endOfList
	return p.desc.Slot
}

// Erase removes the property at pos and returns its descriptor. The
// property's slot goes on the deleted list for reuse.
func (m *Map) Erase(pos Pos) Descriptor {
	hp := &m.st.table[pos]
	debug.Assert(hp.isValid(), "propmap: Erase on a free position")
	idx := hp.index()
	hp.desc = hashDeleted

	p := &m.st.pairs[idx]
	p.name.Set(uint32(symbols.Deleted), m.c)
	p.state = pairDeleted
	p.next = m.deletedHead
	m.deletedHead = idx
	m.deletedSize++
	m.numProperties--
	m.version++
	return p.desc
}

// grow reallocates with room for at least one more descriptor. Live pairs
// keep their order; the deleted list is carried over after them.
func (m *Map) grow() error {
	live, carry := m.numProperties, m.deletedSize
	need := uint64(live) + uint64(carry) + 1
	newCap := max(2*uint64(live), need)
	limit := uint64(MaxCapacity(m.c))
	if newCap > limit {
		if need > limit {
			return jserror.NewRange("property map", need, limit)
		}
		newCap = limit
	}
	old := m.st
	st := m.allocate(uint32(newCap))
	mask := uint32(len(st.table) - 1)

	n := uint32(0)
	oldCount := m.numDescriptors.Load()
	for i := uint32(0); i < oldCount; i++ {
		src := &old.pairs[i]
		if src.state != pairValid {
			continue
		}
		dst := &st.pairs[n]
		dst.name.InitSymbol(src.name.Get())
		dst.state = pairValid
		dst.next = endOfList
		dst.desc = src.desc
		hash := hashID(symbols.SymbolID(src.name.Get()))
		idx := hash & mask
		for j := uint32(1); !st.table[idx].isEmpty(); j++ {
			idx = (idx + j) & mask
		}
		st.table[idx] = hashPair{hash: hash, desc: n + hashBias}
		n++
	}

	head, prev := endOfList, endOfList
	for i := m.deletedHead; i != endOfList; i = old.pairs[i].next {
		dst := &st.pairs[n]
		dst.name.InitSymbol(uint32(symbols.Deleted))
		dst.state = pairDeleted
		dst.next = endOfList
		dst.desc = old.pairs[i].desc
		if prev == endOfList {
			head = n
		} else {
			st.pairs[prev].next = n
		}
		prev = n
		n++
	}
	debug.Assert(n == live+carry, "propmap: grow lost entries")

	log().Debugf("property map grew from %d to %d (live %d, deleted %d)", len(old.pairs), newCap, live, carry)
	m.deletedHead = head
	m.numDescriptors.Store(n)
	m.publish(st)
	return nil
}

// ForEach calls fn for every live property in insertion order.
func (m *Map) ForEach(fn func(id symbols.SymbolID, d Descriptor)) {
	m.ForEachWhile(func(id symbols.SymbolID, d Descriptor) bool {
		fn(id, d)
		return true
	})
}

// ForEachWhile is ForEach that stops when fn returns false. It reports
// whether the walk ran to completion.
func (m *Map) ForEachWhile(fn func(id symbols.SymbolID, d Descriptor) bool) bool {
	n := m.numDescriptors.Load()
	for i := uint32(0); i < n; i++ {
		p := &m.st.pairs[i]
		if p.state != pairValid {
			continue
		}
		if !fn(symbols.SymbolID(p.name.Get()), p.desc) {
			return false
		}
	}
	return true
}

// ForEachSymbolConcurrent reports every symbol the map references. It may
// run on the marker goroutine while the mutator adds properties.
func (m *Map) ForEachSymbolConcurrent(fn func(id symbols.SymbolID)) {
	st := m.published.Load()
	n := min(int(m.numDescriptors.Load()), len(st.pairs))
	for i := 0; i < n; i++ {
		id := symbols.SymbolID(st.pairs[i].name.LoadConcurrent())
		if id.IsValid() {
			fn(id)
		}
	}
}

// Scan walks the map's symbol slots with the registered layout.
func (m *Map) Scan(v gc.Visitor) {
	gc.Scan(gc.KindPropertyMap, unsafe.Pointer(m.st), v)
}

// Size returns the number of live properties.
func (m *Map) Size() uint32 { return m.numProperties }

// Capacity returns the descriptor array capacity.
func (m *Map) Capacity() uint32 { return uint32(len(m.st.pairs)) }

// HashCapacity returns the hash table size.
func (m *Map) HashCapacity() uint32 { return uint32(len(m.st.table)) }

// NumDescriptors returns the number of used descriptor entries.
func (m *Map) NumDescriptors() uint32 { return m.numDescriptors.Load() }

// DeletedCount returns the length of the deleted list.
func (m *Map) DeletedCount() uint32 { return m.deletedSize }

// Version changes whenever a property is erased. Inline caches compare it
// to detect that a cached slot may have been recycled.
func (m *Map) Version() uint64 { return m.version }

func init() {
	pairLayout := &gc.Layout{
		Name:    "propmap.pair",
		Size:    unsafe.Sizeof(pair{}),
		Symbols: []uintptr{unsafe.Offsetof(pair{}.name)},
	}
	gc.Register(gc.KindPropertyMap, &gc.Layout{
		Name: "propmap.Map",
		Size: unsafe.Sizeof(storage{}),
		Arrays: []gc.ArrayField{
			{Offset: unsafe.Offsetof(storage{}.pairs), Elem: pairLayout},
		},
	})
}
