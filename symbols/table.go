// Package symbols implements the symbol table: interning of property and
// variable names into small dense SymbolIDs.
package symbols

import (
	"fortio.org/safecast"
	"github.com/tliron/commonlog"
	"github.com/zeebo/xxh3"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/internal/debug"
	"github.com/chazu/jsheap/jserror"
	"github.com/chazu/jsheap/value"
)

func log() commonlog.Logger { return commonlog.GetLogger("jsheap.symbols") }

var (
	_ gc.Trimmer      = (*Table)(nil)
	_ gc.RootProvider = (*Table)(nil)
)

// DefaultCapacity is the initial hash table capacity.
const DefaultCapacity = 64

type entryState uint8

const (
	entryLive entryState = iota
	// entryPending: removed, but the id may still be referenced until the
	// next collection finishes.
	entryPending
	entryFree
)

// entry is one element of the lookup vector.
type entry struct {
	content  string
	hash     uint32
	uniqued  bool
	state    entryState
	nextFree int32
	str      value.Value // materialized string primitive, or Empty
}

// Table interns strings into SymbolIDs. It is owned by the mutator
// goroutine and is not locked.
type Table struct {
	entries  []entry
	index    hashTable
	freeHead int32
	pending  []uint32
	live     int
}

// New returns an empty table whose hash index starts at the given
// capacity (rounded up to a power of two).
func New(capacity int) *Table {
	if capacity < 4 {
		capacity = DefaultCapacity
	}
	return &Table{
		entries:  make([]entry, 0, capacity),
		index:    newHashTable(capacity),
		freeHead: -1,
	}
}

func hashContent(s string) uint32 {
	h := xxh3.HashString(s)
	return uint32(h ^ h>>32)
}

// ---------------------------------------------------------------------------
// Interning
// ---------------------------------------------------------------------------

// Intern returns the id for content, allocating one if content was not
// interned yet. It fails with a RangeError when the id space is exhausted.
func (t *Table) Intern(content string) (SymbolID, error) {
	hash := hashContent(content)
	pos, found := t.index.find(t.entries, content, hash, false)
	if found {
		return makeID(t.index.slots[pos]-slotBias, true), nil
	}

	idx, err := t.allocEntry(content, hash, true)
	if err != nil {
		return Empty, err
	}
	if t.index.needsGrowth() {
		t.growIndex()
		pos, _ = t.index.find(t.entries, content, hash, true)
	}
	t.index.insertAt(pos, idx)
	return makeID(idx, true), nil
}

// MustIntern is Intern for callers that cannot exhaust the id space, such
// as tests and predefined names. It panics on error.
func (t *Table) MustIntern(content string) SymbolID {
	id, err := t.Intern(content)
	if err != nil {
		panic(err)
	}
	return id
}

// Lookup returns the id of interned content without inserting.
func (t *Table) Lookup(content string) (SymbolID, bool) {
	pos, found := t.index.find(t.entries, content, hashContent(content), false)
	if !found {
		return Empty, false
	}
	return makeID(t.index.slots[pos]-slotBias, true), true
}

// CreateNotUniqued mints a fresh id that is not entered in the hash index.
// Private and anonymous names use it; desc is kept for diagnostics only.
func (t *Table) CreateNotUniqued(desc string) (SymbolID, error) {
	idx, err := t.allocEntry(desc, 0, false)
	if err != nil {
		return Empty, err
	}
	return makeID(idx, false), nil
}

// Remove tombstones the hash slot of content and retires its id. It
// returns false if content was not interned. The table never shrinks.
func (t *Table) Remove(content string) bool {
	pos, found := t.index.find(t.entries, content, hashContent(content), false)
	if !found {
		return false
	}
	idx := t.index.slots[pos] - slotBias
	t.index.removeAt(pos)
	t.retire(idx)
	return true
}

// Free retires id. Uniqued ids are also removed from the hash index.
func (t *Table) Free(id SymbolID) {
	idx := id.Index()
	debug.Assert(int(idx) < len(t.entries) && t.entries[idx].state == entryLive, "Table.Free: id is not live")
	e := &t.entries[idx]
	if e.uniqued {
		pos, found := t.index.find(t.entries, e.content, e.hash, false)
		debug.Assert(found, "Table.Free: uniqued id missing from index")
		if found {
			t.index.removeAt(pos)
		}
	}
	t.retire(idx)
}

// retire moves an entry to the pending list. Its index is reused only after
// the next Trim, so a removed name interned again receives a new id.
func (t *Table) retire(idx uint32) {
	e := &t.entries[idx]
	e.state = entryPending
	e.str = value.Empty
	t.pending = append(t.pending, idx)
	t.live--
}

// Trim is the post-collection hook: ids retired before the collection are
// no longer referenced and become reusable.
func (t *Table) Trim() {
	if len(t.pending) == 0 {
		return
	}
	log().Debugf("releasing %d retired symbol ids", len(t.pending))
	for _, idx := range t.pending {
		e := &t.entries[idx]
		*e = entry{state: entryFree, nextFree: t.freeHead, str: value.Empty}
		t.freeHead = int32(idx)
	}
	t.pending = t.pending[:0]
}

func (t *Table) allocEntry(content string, hash uint32, uniqued bool) (uint32, error) {
	e := entry{content: content, hash: hash, uniqued: uniqued, state: entryLive, nextFree: -1, str: value.Empty}
	if t.freeHead >= 0 {
		idx := uint32(t.freeHead)
		t.freeHead = t.entries[idx].nextFree
		t.entries[idx] = e
		t.live++
		return idx, nil
	}
	idx, err := safecast.Conv[uint32](len(t.entries))
	if err != nil || idx > MaxIndex {
		return 0, jserror.NewRange("symbol table", uint64(len(t.entries))+1, uint64(MaxIndex)+1)
	}
	t.entries = append(t.entries, e)
	t.live++
	return idx, nil
}

func (t *Table) growIndex() {
	newCap := t.index.capacity() * 2
	log().Debugf("rehashing identifier table: %d live, %d tombstones, capacity %d -> %d",
		t.index.live, t.index.tombstones, t.index.capacity(), newCap)
	t.index.rehash(t.entries, newCap)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Name returns the content of id, or "" if id is not live.
func (t *Table) Name(id SymbolID) string {
	if !id.IsValid() || int(id.Index()) >= len(t.entries) {
		return ""
	}
	e := &t.entries[id.Index()]
	if e.state != entryLive {
		return ""
	}
	return e.content
}

// IsLive reports whether id currently names a symbol.
func (t *Table) IsLive(id SymbolID) bool {
	return id.IsValid() && int(id.Index()) < len(t.entries) && t.entries[id.Index()].state == entryLive
}

// Len returns the number of live symbols, uniqued or not.
func (t *Table) Len() int { return t.live }

// Capacity returns the hash index capacity.
func (t *Table) Capacity() int { return t.index.capacity() }

// Occupancy returns the fraction of hash slots that are live or tombstoned.
func (t *Table) Occupancy() float64 {
	return float64(t.index.occupied()) / float64(t.index.capacity())
}

// PendingLen returns the number of retired ids awaiting Trim.
func (t *Table) PendingLen() int { return len(t.pending) }

// ForEach calls fn for every live symbol in lookup-vector order.
func (t *Table) ForEach(fn func(id SymbolID, content string)) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.state == entryLive {
			fn(makeID(uint32(i), e.uniqued), e.content)
		}
	}
}

// ---------------------------------------------------------------------------
// String primitives
// ---------------------------------------------------------------------------

// StringValue returns the string primitive for id, calling alloc to
// materialize it the first time. The cached value is a root of the table.
func (t *Table) StringValue(id SymbolID, alloc func(content string) value.Value) value.Value {
	e := &t.entries[id.Index()]
	debug.Assert(e.state == entryLive, "Table.StringValue: id is not live")
	if e.str.IsEmpty() {
		e.str = alloc(e.content)
	}
	return e.str
}

// ForEachRoot visits every cached string primitive.
func (t *Table) ForEachRoot(a gc.RootAcceptor) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.state == entryLive && !e.str.IsEmpty() {
			a.AcceptRoot(&e.str)
		}
	}
}
