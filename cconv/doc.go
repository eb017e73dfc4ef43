// Package cconv converts between raw foreign memory and dynamic values.
//
// ToValue and FromValue handle whole objects of a given type, GetBitfield and
// SetBitfield pack and unpack bitfields within their container. Conversions
// that need a new box, such as reading a 64-bit integer or a pointer, go
// through a Boxer supplied by the object allocator.
//
// Implicit conversions follow C assignment rules: numbers convert between
// each other with truncation, pointers accept NULL, same-typed pointers,
// array decay and void pointers, and aggregates are copied only from a box
// of the same type. Strings initialize byte arrays and name enum constants.
package cconv
