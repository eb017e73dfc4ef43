// Package ctype is the C type registry consumed by the cdata engine.
//
// Descriptors live in an arena and are addressed by a small integer ID, so a
// "type" is a cheap value and chains of child links cannot form ownership
// cycles: every constructor only references ids that already exist.
//
//	r := ctype.New()
//	pt, _ := r.NewStruct("point").
//		Field("x", ctype.IDFloat).
//		Field("y", ctype.IDFloat).
//		Build()
//	ptr, _ := r.Pointer(pt)
//
// Layout follows natural C rules: members are aligned to their own
// alignment, the struct is padded to its largest member, bitfields pack into
// containers of their base type. Qualifiers are attribute wrappers around the
// qualified type; Raw skips them.
//
// Records, tuples, enums, flags, options and lists from WIT can be imported
// with ImportWIT; their canonical ABI layout matches the C layout produced here.
package ctype
