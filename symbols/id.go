package symbols

import (
	"fmt"

	"github.com/chazu/jsheap/value"
)

// SymbolID is the interned identity of a property or variable name.
//
// The low 29 bits index the table's lookup vector. Bit 29 marks ids minted
// by CreateNotUniqued, which never participate in content lookup. The two
// largest 32-bit values are reserved as the Empty and Deleted sentinels and
// are never returned for a real symbol.
type SymbolID uint32

const (
	// IndexBits is the width of the lookup vector index.
	IndexBits = 29

	notUniquedBit SymbolID = 1 << IndexBits
	indexMask     SymbolID = notUniquedBit - 1

	// MaxIndex is the largest lookup vector index.
	MaxIndex = uint32(indexMask)

	// Empty marks an unused descriptor or table slot.
	Empty SymbolID = 0xFFFFFFFF
	// Deleted marks a descriptor whose property was erased.
	Deleted SymbolID = 0xFFFFFFFE
)

// Raw returns the bits stored in slots and values.
func (id SymbolID) Raw() uint32 { return uint32(id) }

// Index returns the lookup vector index.
func (id SymbolID) Index() uint32 { return uint32(id & indexMask) }

// IsUniqued reports whether id was produced by Intern.
func (id SymbolID) IsUniqued() bool { return id&notUniquedBit == 0 }

// IsValid reports whether id names a symbol rather than a sentinel.
func (id SymbolID) IsValid() bool { return id>>(IndexBits+1) == 0 }

// Value encodes id as a symbol value.
func (id SymbolID) Value() value.Value { return value.EncodeSymbol(uint32(id)) }

// FromValue decodes a symbol value. Precondition: v.IsSymbol().
func FromValue(v value.Value) SymbolID { return SymbolID(v.Symbol()) }

func (id SymbolID) String() string {
	switch {
	case id == Empty:
		return "SymbolID(empty)"
	case id == Deleted:
		return "SymbolID(deleted)"
	case !id.IsUniqued():
		return fmt.Sprintf("SymbolID(#%d, not uniqued)", id.Index())
	default:
		return fmt.Sprintf("SymbolID(#%d)", id.Index())
	}
}

func makeID(index uint32, uniqued bool) SymbolID {
	id := SymbolID(index)
	if !uniqued {
		id |= notUniquedBit
	}
	return id
}
