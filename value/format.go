package value

import (
	"fmt"
	"strconv"
)

// String renders v for diagnostics. It is not JavaScript ToString.
func (v Value) String() string {
	switch v.Kind() {
	case KindDouble:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool())
	case KindSymbol:
		return fmt.Sprintf("symbol#%d", v.Symbol())
	case KindString, KindBigInt, KindObject:
		return fmt.Sprintf("%s@%s", v.Kind(), v.Ref())
	case KindInvalid:
		return fmt.Sprintf("invalid(%#016x)", uint64(v))
	default:
		return v.Kind().String()
	}
}
