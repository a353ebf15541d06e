// Package jserror defines the recoverable error tier of the runtime core.
//
// Contract violations (wrong-variant access, stale handles) are not errors:
// they are checked by debug assertions only. Resource exhaustion is
// recoverable and is reported as a *RangeError, which the interpreter
// surfaces to script code as a catchable RangeError.
package jserror

import (
	"errors"
	"fmt"
)

// Kind names the JavaScript error constructor an error maps to.
type Kind uint8

const (
	KindRange Kind = iota + 1
	KindType
)

func (k Kind) String() string {
	switch k {
	case KindRange:
		return "RangeError"
	case KindType:
		return "TypeError"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// RangeError reports a capacity request above a structure's maximum.
type RangeError struct {
	What      string // structure that was asked to grow
	Requested uint64
	Max       uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s capacity %d exceeds maximum %d", e.What, e.Requested, e.Max)
}

// Kind returns KindRange.
func (e *RangeError) Kind() Kind { return KindRange }

// NewRange returns a *RangeError for the given structure.
func NewRange(what string, requested, max uint64) error {
	return &RangeError{What: what, Requested: requested, Max: max}
}

// IsRange reports whether err is or wraps a *RangeError.
func IsRange(err error) bool {
	var re *RangeError
	return errors.As(err, &re)
}

// TypeError reports an operation applied to a value of the wrong kind,
// such as writing a read-only property.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string { return e.Message }

// Kind returns KindType.
func (e *TypeError) Kind() Kind { return KindType }

// Typef returns a *TypeError with a formatted message.
func Typef(format string, args ...any) error {
	return &TypeError{Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the JavaScript kind of err, or 0 if err is not a
// JavaScript error.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return 0
}
