// Package value implements the NaN-boxed tagged value shared by every
// other part of the runtime core: property maps, segmented arrays, root
// handles and the symbol table all store Values.
package value
