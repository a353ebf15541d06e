// Package vm is the interpreter-facing surface of the object model: a
// Runtime that wires the collector contract, the symbol table and the
// handle stack together, a Heap of dictionary-mode objects, and the
// property get/put/delete/enumerate and indexed element operations built
// on propmap and segarray.
//
// Operations return a tri-state Result instead of panicking; exceptions
// carry a jserror value for the interpreter to throw.
package vm
