package value

import (
	"math"

	"github.com/chazu/jsheap/internal/debug"
)

// Value is a JavaScript value encoded using NaN-boxing.
//
// Every value is a 64-bit word. The top 16 bits hold the sign, exponent and
// tag; the low 48 bits hold the payload. If the top 16 bits are below the
// tag range the word is a plain IEEE 754 double. Otherwise the top 16 bits
// are one of six primary tags, and for the three non-pointer tags one more
// bit (bit 47) selects between two extended tags.
//
// Encoding scheme:
//   - Double:         any word whose top 16 bits are below 0xFFF9
//   - Empty/Invalid:  0xFFF9 tag, bit 47 selects Invalid (debug poison)
//   - Undefined/Null: 0xFFFA tag, bit 47 selects Null
//   - Bool/Symbol:    0xFFFB tag, bit 47 selects Symbol; payload is the bool or id
//   - String:         0xFFFC tag + 48-bit Ref
//   - BigInt:         0xFFFD tag + 48-bit Ref
//   - Object:         0xFFFE tag + 48-bit Ref
//
// Arithmetic never produces a word in the tag range: the only NaN the
// runtime stores is CanonicalNaN (0x7FF8_0000_0000_0000), and
// EncodeUntrustedNumber collapses every other NaN onto it.
type Value uint64

// Tag is the primary tag held in the top 16 bits of a Value.
type Tag uint16

// ETag is the extended tag held in the top 17 bits of a non-pointer Value.
type ETag uint32

const (
	// NumDataBits is the width of the payload of a pointer-tagged value.
	NumDataBits = 48
	// NumExtendedDataBits is the width of the payload of an extended tag.
	NumExtendedDataBits = 47

	tagShift  = NumDataBits
	etagShift = NumExtendedDataBits

	dataMask         uint64 = 1<<NumDataBits - 1
	extendedDataMask uint64 = 1<<NumExtendedDataBits - 1
)

// Primary tags.
const (
	TagEmptyInvalid  Tag = 0xFFF9
	TagUndefinedNull Tag = 0xFFFA
	TagBoolSymbol    Tag = 0xFFFB
	TagString        Tag = 0xFFFC
	TagBigInt        Tag = 0xFFFD
	TagObject        Tag = 0xFFFE

	firstTag        = TagEmptyInvalid
	firstPointerTag = TagString
	lastTag         = TagObject
)

// Extended tags.
const (
	ETagEmpty     = ETag(TagEmptyInvalid) << 1
	ETagInvalid   = ETag(TagEmptyInvalid)<<1 | 1
	ETagUndefined = ETag(TagUndefinedNull) << 1
	ETagNull      = ETag(TagUndefinedNull)<<1 | 1
	ETagBool      = ETag(TagBoolSymbol) << 1
	ETagSymbol    = ETag(TagBoolSymbol)<<1 | 1
)

// CanonicalNaN is the single bit pattern used for NaN.
const CanonicalNaN uint64 = 0x7FF8000000000000

// Pre-defined values
const (
	Empty     Value = Value(uint64(ETagEmpty) << etagShift)
	Invalid   Value = Value(uint64(ETagInvalid) << etagShift)
	Undefined Value = Value(uint64(ETagUndefined) << etagShift)
	Null      Value = Value(uint64(ETagNull) << etagShift)
	False     Value = Value(uint64(ETagBool) << etagShift)
	True      Value = Value(uint64(ETagBool)<<etagShift | 1)
	NaN       Value = Value(CanonicalNaN)
)

// FromRaw reinterprets raw bits as a Value. Used by persisted forms that
// store values byte-for-byte.
func FromRaw(raw uint64) Value { return Value(raw) }

// Raw returns the underlying bits.
func (v Value) Raw() uint64 { return uint64(v) }

// Tag returns the primary tag. The result is meaningless for doubles.
func (v Value) Tag() Tag { return Tag(uint64(v) >> tagShift) }

// ETag returns the extended tag. The result is meaningless for doubles and
// pointer values.
func (v Value) ETag() ETag { return ETag(uint64(v) >> etagShift) }

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsDouble reports whether v is a plain IEEE 754 double. Native values
// (EncodeNativeUint32, EncodeNativePointer) also read as doubles.
func (v Value) IsDouble() bool { return v.Tag() < firstTag }

// IsNumber is IsDouble; JavaScript numbers are always doubles here.
func (v Value) IsNumber() bool { return v.IsDouble() }

// IsPointer reports whether the payload is a heap reference.
func (v Value) IsPointer() bool {
	t := v.Tag()
	return t >= firstPointerTag && t <= lastTag
}

func (v Value) IsObject() bool    { return v.Tag() == TagObject }
func (v Value) IsString() bool    { return v.Tag() == TagString }
func (v Value) IsBigInt() bool    { return v.Tag() == TagBigInt }
func (v Value) IsEmpty() bool     { return v.ETag() == ETagEmpty }
func (v Value) IsInvalid() bool   { return v.ETag() == ETagInvalid }
func (v Value) IsUndefined() bool { return v.ETag() == ETagUndefined }
func (v Value) IsNull() bool      { return v.ETag() == ETagNull }
func (v Value) IsBool() bool      { return v.ETag() == ETagBool }
func (v Value) IsSymbol() bool    { return v.ETag() == ETagSymbol }

// IsNaN reports whether v is the canonical NaN. No other non-pointer
// value answers true.
func (v Value) IsNaN() bool { return uint64(v) == CanonicalNaN }

// IsNullish reports whether v is undefined or null.
func (v Value) IsNullish() bool { return v.Tag() == TagUndefinedNull }

// ---------------------------------------------------------------------------
// Numbers
// ---------------------------------------------------------------------------

// EncodeTrustedNumber encodes f without checking for NaN. The caller
// guarantees f is not NaN or is already the canonical NaN.
func EncodeTrustedNumber(f float64) Value {
	bits := math.Float64bits(f)
	debug.Assertf(!math.IsNaN(f) || bits == CanonicalNaN, "untrusted NaN %#x passed to EncodeTrustedNumber", bits)
	return Value(bits)
}

// EncodeUntrustedNumber encodes f, collapsing every NaN bit pattern onto
// the canonical NaN.
func EncodeUntrustedNumber(f float64) Value {
	if math.IsNaN(f) {
		return NaN
	}
	return Value(math.Float64bits(f))
}

// EncodeInt32 encodes an int32 as a number.
func EncodeInt32(i int32) Value { return Value(math.Float64bits(float64(i))) }

// EncodeUint32 encodes a uint32 as a number.
func EncodeUint32(u uint32) Value { return Value(math.Float64bits(float64(u))) }

// Double returns v as a float64. Precondition: v.IsDouble().
func (v Value) Double() float64 {
	debug.Assert(v.IsDouble(), "Value.Double: not a double")
	return math.Float64frombits(uint64(v))
}

// ---------------------------------------------------------------------------
// Pointer values
// ---------------------------------------------------------------------------

func encodePointer(tag Tag, r Ref) Value {
	debug.Assertf(uint64(r)&^dataMask == 0, "ref %#x exceeds %d bits", uint64(r), NumDataBits)
	return Value(uint64(tag)<<tagShift | uint64(r))
}

// EncodeObject encodes a reference to a heap object.
func EncodeObject(r Ref) Value { return encodePointer(TagObject, r) }

// EncodeString encodes a reference to a heap string.
func EncodeString(r Ref) Value { return encodePointer(TagString, r) }

// EncodeBigInt encodes a reference to a heap BigInt.
func EncodeBigInt(r Ref) Value { return encodePointer(TagBigInt, r) }

// Ref returns the heap reference held by v. Precondition: v.IsPointer().
func (v Value) Ref() Ref {
	debug.Assert(v.IsPointer(), "Value.Ref: not a pointer")
	return Ref(uint64(v) & dataMask)
}

// UpdateRef returns v with the same tag and a new reference. Collectors
// use it to rewrite pointers in place on relocation.
func (v Value) UpdateRef(r Ref) Value {
	debug.Assert(v.IsPointer(), "Value.UpdateRef: not a pointer")
	return encodePointer(v.Tag(), r)
}

// ---------------------------------------------------------------------------
// Immediates
// ---------------------------------------------------------------------------

// EncodeBool encodes a boolean.
func EncodeBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Bool returns v as a bool. Precondition: v.IsBool().
func (v Value) Bool() bool {
	debug.Assert(v.IsBool(), "Value.Bool: not a bool")
	return uint64(v)&1 != 0
}

// EncodeSymbol encodes the raw bits of a symbol id.
func EncodeSymbol(id uint32) Value {
	return Value(uint64(ETagSymbol)<<etagShift | uint64(id))
}

// Symbol returns the raw symbol id. Precondition: v.IsSymbol().
func (v Value) Symbol() uint32 {
	debug.Assert(v.IsSymbol(), "Value.Symbol: not a symbol")
	return uint32(uint64(v) & extendedDataMask)
}

// ---------------------------------------------------------------------------
// Native values
// ---------------------------------------------------------------------------

// EncodeNativeUint32 stores a raw uint32. The result reads as a denormal
// double and is never visible to the collector as a pointer.
func EncodeNativeUint32(u uint32) Value { return Value(u) }

// NativeUint32 returns the raw uint32 stored by EncodeNativeUint32.
func (v Value) NativeUint32() uint32 { return uint32(v) }

// EncodeNativePointer stores a native address that fits in 48 bits.
func EncodeNativePointer(p uintptr) Value {
	debug.Assertf(uint64(p)&^dataMask == 0, "native pointer %#x exceeds %d bits", p, NumDataBits)
	return Value(p)
}

// NativePointer returns the address stored by EncodeNativePointer.
func (v Value) NativePointer() uintptr { return uintptr(v) }
