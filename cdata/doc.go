// Package cdata allocates foreign data objects and reads and writes them
// through their C types.
//
// A State ties a type registry to a linear memory, an allocator and the
// collector primitives of package gc. Objects are either fixed, with the
// payload right after an 8 byte header, or variable, with a side header
// below the object header that records the payload length and how to
// recover the allocated block:
//
//	cd, _ := st.New(ctype.IDInt32, 4)
//	st.IndexSet(cd, value.Int(0), value.Int(7))
//
// Index walks the type chain for a key and returns a Ref. Get and Set take
// the Ref's terminal type and address and convert through package cconv.
// Failed lookups come back as Missing so that callers can fall back to
// other lookup paths. IndexGet and IndexSet turn them into field_unknown
// errors.
package cdata
