package vm

import (
	"fmt"

	"github.com/chazu/jsheap/jserror"
	"github.com/chazu/jsheap/value"
)

// ---------------------------------------------------------------------------
// Result: tri-state outcome of a property operation
// ---------------------------------------------------------------------------

// ResultKind identifies which of the three outcomes a Result holds.
type ResultKind uint8

const (
	ResultFound ResultKind = iota
	ResultNotFound
	ResultException
)

func (k ResultKind) String() string {
	switch k {
	case ResultFound:
		return "found"
	case ResultNotFound:
		return "not-found"
	case ResultException:
		return "exception"
	default:
		return fmt.Sprintf("ResultKind(%d)", uint8(k))
	}
}

// Result is what object operations return instead of panicking or
// returning (value, bool, error): a value, the absence of one, or a
// pending exception for the interpreter to throw into script code.
type Result struct {
	Kind  ResultKind
	Value value.Value
	Err   error
}

// Found wraps a value.
func Found(v value.Value) Result { return Result{Kind: ResultFound, Value: v} }

// NotFound is the result of a lookup that reached the end of the
// prototype chain.
func NotFound() Result { return Result{Kind: ResultNotFound, Value: value.Undefined} }

// Exception wraps an error the interpreter must throw.
func Exception(err error) Result {
	return Result{Kind: ResultException, Value: value.Undefined, Err: err}
}

func (r Result) IsFound() bool     { return r.Kind == ResultFound }
func (r Result) IsNotFound() bool  { return r.Kind == ResultNotFound }
func (r Result) IsException() bool { return r.Kind == ResultException }

// ValueOrUndefined returns the found value, or undefined.
func (r Result) ValueOrUndefined() value.Value {
	if r.Kind == ResultFound {
		return r.Value
	}
	return value.Undefined
}

// Unwrap converts the result to Go's (value, error) form. NotFound becomes
// undefined with no error.
func (r Result) Unwrap() (value.Value, error) {
	if r.Kind == ResultException {
		return value.Undefined, r.Err
	}
	return r.ValueOrUndefined(), nil
}

// ErrorKind names the script error constructor of an exception result.
func (r Result) ErrorKind() jserror.Kind {
	if r.Kind != ResultException {
		return 0
	}
	return jserror.KindOf(r.Err)
}

func (r Result) String() string {
	switch r.Kind {
	case ResultFound:
		return "found(" + r.Value.String() + ")"
	case ResultException:
		return fmt.Sprintf("exception(%s: %v)", r.ErrorKind(), r.Err)
	default:
		return r.Kind.String()
	}
}
