package propmap

import (
	"fmt"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/jserror"
	"github.com/chazu/jsheap/symbols"
)

// RawPair is the persisted form of one descriptor array entry.
type RawPair struct {
	Name  uint32 `cbor:"n" msgpack:"n"`
	State uint8  `cbor:"s" msgpack:"s"`
	Next  uint32 `cbor:"x" msgpack:"x"`
	Flags uint32 `cbor:"f" msgpack:"f"`
	Slot  uint32 `cbor:"o" msgpack:"o"`
}

// RawHash is the persisted form of one hash table slot.
type RawHash struct {
	Hash uint32 `cbor:"h" msgpack:"h"`
	Desc uint32 `cbor:"d" msgpack:"d"`
}

// Raw is the persisted form of a Map: both arrays exactly as laid out in
// memory, plus the counters.
type Raw struct {
	Pairs          []RawPair `cbor:"p" msgpack:"p"`
	Table          []RawHash `cbor:"t" msgpack:"t"`
	NumDescriptors uint32    `cbor:"nd" msgpack:"nd"`
	NumProperties  uint32    `cbor:"np" msgpack:"np"`
	DeletedHead    uint32    `cbor:"dh" msgpack:"dh"`
	DeletedSize    uint32    `cbor:"ds" msgpack:"ds"`
	Version        uint64    `cbor:"v" msgpack:"v"`
}

// Export captures the map's storage.
func (m *Map) Export() Raw {
	raw := Raw{
		Pairs:          make([]RawPair, len(m.st.pairs)),
		Table:          make([]RawHash, len(m.st.table)),
		NumDescriptors: m.numDescriptors.Load(),
		NumProperties:  m.numProperties,
		DeletedHead:    m.deletedHead,
		DeletedSize:    m.deletedSize,
		Version:        m.version,
	}
	for i := range m.st.pairs {
		p := &m.st.pairs[i]
		raw.Pairs[i] = RawPair{
			Name:  p.name.Get(),
			State: uint8(p.state),
			Next:  p.next,
			Flags: uint32(p.desc.Flags),
			Slot:  p.desc.Slot,
		}
	}
	for i, hp := range m.st.table {
		raw.Table[i] = RawHash{Hash: hp.hash, Desc: hp.desc}
	}
	return raw
}

// Import rebuilds a map from its persisted form. Everything a corrupt or
// hostile input could break is checked: sizes, counters, property slots,
// the deleted list and the hash index.
func Import(c gc.Collector, raw Raw) (*Map, error) {
	capacity := uint32(len(raw.Pairs))
	if uint64(len(raw.Pairs)) > uint64(MaxCapacity(c)) {
		return nil, jserror.NewRange("property map", uint64(len(raw.Pairs)), uint64(MaxCapacity(c)))
	}
	if want := HashCapacity(capacity); uint32(len(raw.Table)) != want {
		return nil, fmt.Errorf("propmap: hash table has %d slots, want %d", len(raw.Table), want)
	}
	if raw.NumDescriptors > capacity || raw.NumProperties > raw.NumDescriptors {
		return nil, fmt.Errorf("propmap: counters %d/%d exceed capacity %d", raw.NumProperties, raw.NumDescriptors, capacity)
	}
	if raw.DeletedSize > raw.NumDescriptors-raw.NumProperties {
		return nil, fmt.Errorf("propmap: %d deleted pairs do not fit beside %d properties in %d descriptors", raw.DeletedSize, raw.NumProperties, raw.NumDescriptors)
	}

	// Valid and deleted pairs own their slots, which are exactly the
	// dense range below NumProperties+DeletedSize. A recycled pair's slot
	// belongs to the property that reused it.
	slots := raw.NumProperties + raw.DeletedSize
	owner := make([]int, slots)
	for i := range owner {
		owner[i] = -1
	}

	m := &Map{c: c, deletedHead: raw.DeletedHead, deletedSize: raw.DeletedSize, version: raw.Version}
	st := m.allocate(capacity)
	valid := uint32(0)
	for i, rp := range raw.Pairs {
		state := pairState(rp.State)
		if uint32(i) >= raw.NumDescriptors {
			if state != pairUninitialized {
				return nil, fmt.Errorf("propmap: pair %d beyond the used range is in use", i)
			}
			continue
		}
		switch state {
		case pairValid:
			if !symbols.SymbolID(rp.Name).IsValid() {
				return nil, fmt.Errorf("propmap: pair %d has invalid name %#x", i, rp.Name)
			}
			valid++
		case pairDeleted, pairRecycled:
			rp.Name = uint32(symbols.Deleted)
		default:
			return nil, fmt.Errorf("propmap: pair %d has state %d", i, rp.State)
		}
		if state != pairRecycled {
			if rp.Slot >= slots {
				return nil, fmt.Errorf("propmap: pair %d has slot %d outside [0, %d)", i, rp.Slot, slots)
			}
			if prev := owner[rp.Slot]; prev >= 0 {
				return nil, fmt.Errorf("propmap: pairs %d and %d share slot %d", prev, i, rp.Slot)
			}
			owner[rp.Slot] = i
		}
		p := &st.pairs[i]
		p.name.InitSymbol(rp.Name)
		p.state = state
		p.next = rp.Next
		p.desc = Descriptor{Flags: Flags(rp.Flags), Slot: rp.Slot}
	}
	if valid != raw.NumProperties {
		return nil, fmt.Errorf("propmap: %d valid pairs, counter says %d", valid, raw.NumProperties)
	}

	seen := uint32(0)
	for i := raw.DeletedHead; i != endOfList; i = st.pairs[i].next {
		if i >= raw.NumDescriptors || st.pairs[i].state != pairDeleted {
			return nil, fmt.Errorf("propmap: deleted list reaches pair %d which is not deleted", i)
		}
		if seen++; seen > raw.DeletedSize {
			return nil, fmt.Errorf("propmap: deleted list longer than %d", raw.DeletedSize)
		}
	}
	if seen != raw.DeletedSize {
		return nil, fmt.Errorf("propmap: deleted list has %d entries, counter says %d", seen, raw.DeletedSize)
	}

	indexed := uint32(0)
	for i, rh := range raw.Table {
		hp := hashPair{hash: rh.Hash, desc: rh.Desc}
		st.table[i] = hp
		if !hp.isValid() {
			continue
		}
		idx := hp.index()
		if idx >= raw.NumDescriptors || st.pairs[idx].state != pairValid {
			return nil, fmt.Errorf("propmap: hash slot %d points at pair %d which is not valid", i, idx)
		}
		if hp.hash != hashID(symbols.SymbolID(st.pairs[idx].name.Get())) {
			return nil, fmt.Errorf("propmap: hash slot %d has a stale hash", i)
		}
		indexed++
	}
	if indexed != valid {
		return nil, fmt.Errorf("propmap: %d hash entries for %d properties", indexed, valid)
	}

	m.numProperties = raw.NumProperties
	m.numDescriptors.Store(raw.NumDescriptors)
	m.publish(st)
	for i := uint32(0); i < raw.NumDescriptors; i++ {
		if st.pairs[i].state != pairValid {
			continue
		}
		if pos, found := m.lookup(symbols.SymbolID(st.pairs[i].name.Get())); !found || st.table[pos].index() != i {
			return nil, fmt.Errorf("propmap: pair %d is not reachable through the hash table", i)
		}
	}
	return m, nil
}
