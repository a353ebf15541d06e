// Package debug holds the contract checks that are compiled in only for
// debug builds (go build -tags jsheapdebug). Release builds trade these
// checks for speed; a violated contract there is undefined behavior.
package debug

import "fmt"

// Assert panics with msg when cond is false and assertions are enabled.
func Assert(cond bool, msg string) {
	if Enabled && !cond {
		panic("jsheap: assertion failed: " + msg)
	}
}

// Assertf is Assert with a formatted message. The arguments are only
// formatted when the assertion fails.
func Assertf(cond bool, format string, args ...any) {
	if Enabled && !cond {
		panic("jsheap: assertion failed: " + fmt.Sprintf(format, args...))
	}
}
