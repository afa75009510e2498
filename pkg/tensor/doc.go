// Package tensor defines the shape and element type descriptors shared
// between the filter host and loaded modules.
//
// # Overview
//
// A Shape carries a fixed-rank dimension vector and an element type; unused
// trailing dimensions are 1. TensorsInfo is a bounded ordered sequence of
// shapes, used when a filter consumes or produces multiple tensors.
//
// Byte sizing is derived, never stored: ByteSize is the product of all
// dimensions times the element width. Buffer contracts elsewhere in the
// module are expressed in terms of these derived sizes.
package tensor
