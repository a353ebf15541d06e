package symbols

import "github.com/chazu/jsheap/internal/debug"

// Identifier hash table slot states. A zero-initialized table is all empty.
const (
	slotEmpty   uint32 = 0
	slotDeleted uint32 = 1
	slotBias    uint32 = 2 // stored value = lookup index + slotBias
)

// hashTable is an open-addressed index over the table's lookup vector. It
// stores lookup indices only, so every lookup compares against the content
// held in the lookup vector, and every rehash recomputes positions from the
// hashes stored there.
//
// Probing is quadratic with triangular steps, h(k, i) = h(k) + i(i+1)/2
// mod capacity, which visits every slot of a power-of-two table.
type hashTable struct {
	slots      []uint32
	live       int
	tombstones int
}

func newHashTable(capacity int) hashTable {
	return hashTable{slots: make([]uint32, nextPow2(capacity))}
}

func (h *hashTable) capacity() int { return len(h.slots) }

// occupied counts slots that are not empty; tombstones count.
func (h *hashTable) occupied() int { return h.live + h.tombstones }

// needsGrowth reports whether one more insertion would push occupancy
// above 75%.
func (h *hashTable) needsGrowth() bool {
	return (h.occupied()+1)*4 > h.capacity()*3
}

// find returns the slot holding content, or the slot an insertion should
// use. With mustBeNew the content comparison is skipped and the first free
// slot is returned; only rehashing of already-deduplicated entries may
// pass it.
func (h *hashTable) find(entries []entry, content string, hash uint32, mustBeNew bool) (pos int, found bool) {
	mask := uint32(len(h.slots) - 1)
	idx := hash & mask
	firstDeleted := -1
	for i := uint32(1); ; i++ {
		switch s := h.slots[idx]; s {
		case slotEmpty:
			if firstDeleted >= 0 {
				return firstDeleted, false
			}
			return int(idx), false
		case slotDeleted:
			if mustBeNew {
				return int(idx), false
			}
			if firstDeleted < 0 {
				firstDeleted = int(idx)
			}
		default:
			if !mustBeNew {
				e := &entries[s-slotBias]
				if e.hash == hash && e.content == content {
					return int(idx), true
				}
			}
		}
		debug.Assert(int(i) <= len(h.slots), "identifier hash table has no free slot")
		idx = (idx + i) & mask
	}
}

func (h *hashTable) insertAt(pos int, lookupIndex uint32) {
	if h.slots[pos] == slotDeleted {
		h.tombstones--
	}
	h.slots[pos] = lookupIndex + slotBias
	h.live++
}

func (h *hashTable) removeAt(pos int) {
	h.slots[pos] = slotDeleted
	h.live--
	h.tombstones++
}

// rehash rebuilds the table at newCapacity from the live entries.
func (h *hashTable) rehash(entries []entry, newCapacity int) {
	old := h.slots
	*h = hashTable{slots: make([]uint32, newCapacity)}
	for _, s := range old {
		if s < slotBias {
			continue
		}
		e := &entries[s-slotBias]
		pos, _ := h.find(entries, e.content, e.hash, true)
		h.insertAt(pos, s-slotBias)
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
