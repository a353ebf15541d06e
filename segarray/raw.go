package segarray

import (
	"fmt"

	"github.com/chazu/jsheap/gc"
	"github.com/chazu/jsheap/jserror"
	"github.com/chazu/jsheap/value"
)

// Raw is the persisted form of an Array: the raw bits of the inline
// prefix and of every segment.
type Raw struct {
	Size     uint32     `cbor:"n" msgpack:"n"`
	Inline   []uint64   `cbor:"i" msgpack:"i"`
	Segments [][]uint64 `cbor:"s" msgpack:"s"`
}

// Export captures the array's storage.
func (a *Array) Export() Raw {
	raw := Raw{Size: a.Size(), Inline: rawSlots(a.st.inline)}
	for _, seg := range a.st.spine {
		raw.Segments = append(raw.Segments, rawSlots(seg.data[:]))
	}
	return raw
}

func rawSlots(s []gc.Slot) []uint64 {
	out := make([]uint64, len(s))
	for i := range s {
		out[i] = s[i].Get().Raw()
	}
	return out
}

// Import rebuilds an array from its persisted form, checking the shape of
// the storage, the capacity limit and that everything beyond the size is
// filler.
func Import(c gc.Collector, raw Raw) (*Array, error) {
	if len(raw.Inline) > InlineThreshold {
		return nil, fmt.Errorf("segarray: %d inline slots exceed %d", len(raw.Inline), InlineThreshold)
	}
	if len(raw.Segments) > 0 && len(raw.Inline) != InlineThreshold {
		return nil, fmt.Errorf("segarray: segments present with %d inline slots", len(raw.Inline))
	}
	capacity := uint64(len(raw.Inline)) + uint64(len(raw.Segments))*SegmentMaxLength
	if limit := uint64(MaxElements(c)); capacity > limit {
		return nil, jserror.NewRange("segmented array", capacity, limit)
	}
	if uint64(raw.Size) > capacity {
		return nil, fmt.Errorf("segarray: size %d exceeds capacity %d", raw.Size, capacity)
	}

	a := &Array{c: c}
	st := &storage{inline: newInline(uint32(len(raw.Inline)))}
	a.willAllocate(allocationSize(uint32(len(raw.Inline)), uint32(len(raw.Segments))))
	if err := loadSlots(c, st.inline, raw.Inline, 0, raw.Size); err != nil {
		return nil, err
	}
	for i, rs := range raw.Segments {
		if len(rs) != SegmentMaxLength {
			return nil, fmt.Errorf("segarray: segment %d has %d slots", i, len(rs))
		}
		a.willAllocate(segmentAllocationSize)
		seg := newSegment()
		base := uint32(InlineThreshold + i*SegmentMaxLength)
		if err := loadSlots(c, seg.data[:], rs, base, raw.Size); err != nil {
			return nil, err
		}
		st.spine = append(st.spine, seg)
	}
	a.publish(st)
	a.size.Store(raw.Size)
	return a, nil
}

// loadSlots fills dst from src, where dst[0] is element base.
func loadSlots(c gc.Collector, dst []gc.Slot, src []uint64, base, size uint32) error {
	for i, bits := range src {
		v := value.FromRaw(bits)
		idx := base + uint32(i)
		if idx >= size {
			if v != value.Empty {
				return fmt.Errorf("segarray: element %d beyond size %d is not filler", idx, size)
			}
			continue
		}
		if v.Kind() == value.KindInvalid {
			return fmt.Errorf("segarray: element %d has undecodable bits %#x", idx, bits)
		}
		dst[i].InitSlot(v, c)
	}
	return nil
}
