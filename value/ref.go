package value

import "fmt"

// Ref is a compressed heap reference: a 16-bit segment index and a 32-bit
// offset within that segment, packed into the 48-bit payload of a pointer
// value. The heap layout manager owns the mapping from (segment, offset)
// to storage.
type Ref uint64

const refOffsetBits = 32

// MakeRef packs a segment index and offset.
func MakeRef(segment uint16, offset uint32) Ref {
	return Ref(uint64(segment)<<refOffsetBits | uint64(offset))
}

// Segment returns the segment index.
func (r Ref) Segment() uint16 { return uint16(uint64(r) >> refOffsetBits) }

// Offset returns the offset within the segment.
func (r Ref) Offset() uint32 { return uint32(r) }

func (r Ref) String() string {
	return fmt.Sprintf("%d:%d", r.Segment(), r.Offset())
}
