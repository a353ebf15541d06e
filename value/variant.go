package value

import "fmt"

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindDouble Kind = iota
	KindEmpty
	KindInvalid
	KindUndefined
	KindNull
	KindBool
	KindSymbol
	KindString
	KindBigInt
	KindObject
)

var kindNames = [...]string{
	KindDouble:    "double",
	KindEmpty:     "empty",
	KindInvalid:   "invalid",
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBool:      "bool",
	KindSymbol:    "symbol",
	KindString:    "string",
	KindBigInt:    "bigint",
	KindObject:    "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Kind classifies v. Every bit pattern maps to exactly one kind; the unused
// 0xFFFF tag is reported as KindInvalid.
func (v Value) Kind() Kind {
	if v.IsDouble() {
		return KindDouble
	}
	switch v.Tag() {
	case TagString:
		return KindString
	case TagBigInt:
		return KindBigInt
	case TagObject:
		return KindObject
	}
	switch v.ETag() {
	case ETagEmpty:
		return KindEmpty
	case ETagUndefined:
		return KindUndefined
	case ETagNull:
		return KindNull
	case ETagBool:
		return KindBool
	case ETagSymbol:
		return KindSymbol
	}
	return KindInvalid
}

// ---------------------------------------------------------------------------
// Variant: sum-type view of a Value
// ---------------------------------------------------------------------------

// Variant is the decoded form of a Value. Exactly one of the types below
// implements it for any given value.
type Variant interface {
	isVariant()
}

type (
	Number        float64
	ObjectRef     Ref
	StringRef     Ref
	BigIntRef     Ref
	SymbolRef     uint32
	Boolean       bool
	NullType      struct{}
	UndefinedType struct{}
	EmptyType     struct{}
	InvalidType   struct{}
)

func (Number) isVariant()        {}
func (ObjectRef) isVariant()     {}
func (StringRef) isVariant()     {}
func (BigIntRef) isVariant()     {}
func (SymbolRef) isVariant()     {}
func (Boolean) isVariant()       {}
func (NullType) isVariant()      {}
func (UndefinedType) isVariant() {}
func (EmptyType) isVariant()     {}
func (InvalidType) isVariant()   {}

// Decode returns the variant held by v.
func (v Value) Decode() Variant {
	switch v.Kind() {
	case KindDouble:
		return Number(v.Double())
	case KindObject:
		return ObjectRef(v.Ref())
	case KindString:
		return StringRef(v.Ref())
	case KindBigInt:
		return BigIntRef(v.Ref())
	case KindSymbol:
		return SymbolRef(v.Symbol())
	case KindBool:
		return Boolean(v.Bool())
	case KindNull:
		return NullType{}
	case KindUndefined:
		return UndefinedType{}
	case KindEmpty:
		return EmptyType{}
	default:
		return InvalidType{}
	}
}

// Encode packs a variant. Numbers go through EncodeUntrustedNumber.
func Encode(x Variant) Value {
	switch x := x.(type) {
	case Number:
		return EncodeUntrustedNumber(float64(x))
	case ObjectRef:
		return EncodeObject(Ref(x))
	case StringRef:
		return EncodeString(Ref(x))
	case BigIntRef:
		return EncodeBigInt(Ref(x))
	case SymbolRef:
		return EncodeSymbol(uint32(x))
	case Boolean:
		return EncodeBool(bool(x))
	case NullType:
		return Null
	case UndefinedType:
		return Undefined
	case EmptyType:
		return Empty
	default:
		return Invalid
	}
}
