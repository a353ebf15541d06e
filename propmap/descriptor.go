package propmap

import (
	"strings"

	"github.com/chazu/jsheap/gc"
)

// Flags are the attributes of a named property.
type Flags uint32

const (
	Enumerable Flags = 1 << iota
	Writable
	Configurable
	// Accessor marks a property whose slot holds a getter/setter pair.
	Accessor
	// Internal marks a property hidden from enumeration and reflection.
	Internal

	// DefaultFlags are the flags of a property created by assignment.
	DefaultFlags = Enumerable | Writable | Configurable
)

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, n := range []struct {
		f    Flags
		name string
	}{
		{Enumerable, "enumerable"},
		{Writable, "writable"},
		{Configurable, "configurable"},
		{Accessor, "accessor"},
		{Internal, "internal"},
	} {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Descriptor locates a property's value in its owner's slot storage.
type Descriptor struct {
	Flags Flags
	Slot  uint32
}

// pairState is the lifecycle of a descriptor array entry.
type pairState uint8

const (
	// pairUninitialized: beyond numDescriptors, never used.
	pairUninitialized pairState = iota
	// pairValid: a live property.
	pairValid
	// pairDeleted: an erased property whose slot is on the deleted list.
	pairDeleted
	// pairRecycled: an erased property whose slot was handed out again.
	pairRecycled
)

// pair is one entry of the append-only descriptor array.
type pair struct {
	name  gc.SymbolSlot
	state pairState
	// next is the index of the next deleted pair; only meaningful while
	// state == pairDeleted.
	next uint32
	desc Descriptor
}

// hashPair is one slot of the hash table: the full hash of the key, used
// as a fingerprint, and a descriptor index.
type hashPair struct {
	hash uint32
	desc uint32
}

const (
	hashEmpty   uint32 = 0
	hashDeleted uint32 = 1
	hashBias    uint32 = 2

	endOfList = ^uint32(0)
)

func (h hashPair) isEmpty() bool   { return h.desc == hashEmpty }
func (h hashPair) isDeleted() bool { return h.desc == hashDeleted }
func (h hashPair) isValid() bool   { return h.desc >= hashBias }
func (h hashPair) index() uint32   { return h.desc - hashBias }
