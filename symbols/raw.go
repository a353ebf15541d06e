package symbols

import (
	"fmt"

	"github.com/chazu/jsheap/jserror"
	"github.com/chazu/jsheap/value"
)

// RawEntry is the persisted form of one lookup vector entry.
type RawEntry struct {
	Content string `cbor:"c" msgpack:"c"`
	Uniqued bool   `cbor:"u" msgpack:"u"`
	State   uint8  `cbor:"s" msgpack:"s"`
}

// Raw is the persisted form of a Table. The hash index is not stored; it
// is rebuilt on load.
type Raw struct {
	Entries       []RawEntry `cbor:"e" msgpack:"e"`
	IndexCapacity uint32     `cbor:"i" msgpack:"i"`
}

// Export captures the table's lookup vector.
func (t *Table) Export() Raw {
	raw := Raw{Entries: make([]RawEntry, len(t.entries)), IndexCapacity: uint32(t.index.capacity())}
	for i := range t.entries {
		e := &t.entries[i]
		raw.Entries[i] = RawEntry{Content: e.content, Uniqued: e.uniqued, State: uint8(e.state)}
	}
	return raw
}

// Import rebuilds a table from its persisted form, validating that ids fit
// the index space and that no content is interned twice.
func Import(raw Raw) (*Table, error) {
	if uint64(len(raw.Entries)) > uint64(MaxIndex)+1 {
		return nil, jserror.NewRange("symbol table", uint64(len(raw.Entries)), uint64(MaxIndex)+1)
	}
	capacity := int(raw.IndexCapacity)
	if capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("symbols: index capacity %d is not a power of two", capacity)
	}
	t := New(max(capacity, 4))
	t.entries = make([]entry, len(raw.Entries))
	for i, re := range raw.Entries {
		idx := uint32(i)
		e := entry{content: re.Content, uniqued: re.Uniqued, state: entryState(re.State), nextFree: -1, str: value.Empty}
		switch e.state {
		case entryLive:
			t.live++
			if e.uniqued {
				e.hash = hashContent(e.content)
			}
		case entryPending:
			t.pending = append(t.pending, idx)
		case entryFree:
			e = entry{state: entryFree, nextFree: t.freeHead, str: value.Empty}
			t.freeHead = int32(idx)
		default:
			return nil, fmt.Errorf("symbols: entry %d has unknown state %d", i, re.State)
		}
		t.entries[i] = e
	}

	for i := range t.entries {
		e := &t.entries[i]
		if e.state != entryLive || !e.uniqued {
			continue
		}
		if _, found := t.index.find(t.entries, e.content, e.hash, false); found {
			return nil, fmt.Errorf("symbols: content %q interned twice", e.content)
		}
		if t.index.needsGrowth() {
			t.index.rehash(t.entries, t.index.capacity()*2)
		}
		pos, _ := t.index.find(t.entries, e.content, e.hash, true)
		t.index.insertAt(pos, uint32(i))
	}
	return t, nil
}
