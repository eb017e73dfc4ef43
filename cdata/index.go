package cdata

import (
	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/value"
)

// Status is the outcome of Index.
type Status uint8

const (
	// Missing means the key matched nothing. Ref.Type holds the resolved
	// type so the caller can try another lookup path, such as a metamethod.
	Missing Status = iota
	// Found means Ref.Addr holds the address of the indexed location.
	Found
	// Constant means Ref.Type is a constant value without storage.
	Constant
)

var statusNames = [...]string{
	Missing:  "missing",
	Found:    "found",
	Constant: "constant",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Ref is a resolved index: a location, the type that describes it and the
// qualifiers collected on the way.
//
// Type is the pointer or array for an element, the field or bitfield for a
// struct member, the complex type for re/im and the constant for Constant.
// Get and Set take it as is.
type Ref struct {
	Addr   uint32
	Type   ctype.ID
	Qual   ctype.Qual
	Status Status
}

// Ok reports whether the index matched.
func (r Ref) Ok() bool {
	return r.Status != Missing
}

// Index resolves key against the object cd.
//
// Integer keys (Int, Num truncated toward zero, or a boxed integer or enum)
// index pointers and arrays. String keys name struct fields, the re and im
// halves of a complex number, or constants of the struct a type object
// denotes. A pointer to a struct is dereferenced once when nothing else
// matches. Index never mutates memory and reports a failed lookup through
// Ref.Status, not an error.
func (s *State) Index(cd value.CData, key value.Value) (Ref, error) {
	own, err := s.TypeID(cd)
	if err != nil {
		return Ref{}, err
	}
	if !s.reg.Valid(own) {
		return Ref{}, errors.New(errors.PhaseIndex, errors.KindInvalidData).
			Detail("object 0x%08x has invalid type id %d", uint32(cd), own).
			Build()
	}

	addr := s.Data(cd)
	id := own
	d := s.reg.Get(id)
	if d.Kind == ctype.KindRef {
		if addr, err = s.mem.ReadU32(addr); err != nil {
			return Ref{}, err
		}
		id = d.Child
		d = s.reg.Get(id)
	}

	var q ctype.Qual
	derefed := false
	for {
		for d.Kind == ctype.KindAttrib || d.Kind == ctype.KindTypedef {
			if d.IsQual() {
				q |= ctype.Qual(d.Attr)
			}
			id = d.Child
			d = s.reg.Get(id)
		}

		idx, isInt, err := s.integerKey(key)
		if err != nil {
			return Ref{}, err
		}

		switch {
		case isInt:
			if d.IsPointer() {
				return s.element(d, id, addr, idx, q)
			}
		case key.Kind == value.KindStr:
			if r, ok, err := s.named(own, &id, &d, addr, key.S, &q); err != nil || ok {
				return r, err
			}
		}

		// Automatic '->': a pointer to a struct is followed once.
		if d.Kind == ctype.KindPtr && !derefed && s.reg.RawChild(d).Kind == ctype.KindStruct {
			if addr, err = s.mem.ReadU32(addr); err != nil {
				return Ref{}, err
			}
			id = d.Child
			d = s.reg.Get(id)
			derefed = true
			continue
		}
		return Ref{Type: id, Qual: q, Status: Missing}, nil
	}
}

// integerKey extracts an index from an integer-like key.
func (s *State) integerKey(key value.Value) (int64, bool, error) {
	switch key.Kind {
	case value.KindInt:
		return key.I, true, nil
	case value.KindNum:
		return int64(key.N), true, nil
	case value.KindCData:
		return s.conv.IndexKey(key.C)
	}
	return 0, false, nil
}

// element resolves element idx of the pointer or array d at addr.
func (s *State) element(d *ctype.Descriptor, id ctype.ID, addr uint32, idx int64, q ctype.Qual) (Ref, error) {
	esz := s.reg.Size(d.Child)
	if esz == ctype.SizeInvalid {
		return Ref{}, errors.InvalidSize(errors.PhaseIndex, s.reg.Repr(d.Child))
	}
	if d.Kind == ctype.KindPtr {
		var err error
		if addr, err = s.mem.ReadU32(addr); err != nil {
			return Ref{}, err
		}
	} else if d.Flags&(ctype.FlagVector|ctype.FlagComplex) != 0 {
		if d.Flags&ctype.FlagComplex != 0 {
			idx &= 1
		}
		q |= ctype.QualConst
	}
	return Ref{
		Addr:   uint32(int64(addr) + idx*int64(int32(esz))),
		Type:   id,
		Qual:   q,
		Status: Found,
	}, nil
}

// named resolves a string key. On a miss it may replace the current type
// with the struct a type object denotes, so the caller's fallback sees it.
func (s *State) named(own ctype.ID, id *ctype.ID, d **ctype.Descriptor, addr uint32, name string, q *ctype.Qual) (Ref, bool, error) {
	cur := *d
	switch {
	case cur.Kind == ctype.KindStruct:
		fid, ofs, fq, ok := s.reg.FieldQID(cur, name)
		if !ok {
			return Ref{}, false, nil
		}
		*q |= fq
		if s.reg.Get(fid).Kind == ctype.KindConstval {
			return Ref{Type: fid, Qual: *q, Status: Constant}, true, nil
		}
		return Ref{Addr: addr + ofs, Type: fid, Qual: *q, Status: Found}, true, nil

	case cur.IsComplex():
		if len(name) != 2 {
			return Ref{}, false, nil
		}
		*q |= ctype.QualConst
		switch name {
		case "re":
			return Ref{Addr: addr, Type: *id, Qual: *q, Status: Found}, true, nil
		case "im":
			return Ref{Addr: addr + cur.Size/2, Type: *id, Qual: *q, Status: Found}, true, nil
		}
		return Ref{}, false, nil

	case own == ctype.IDCTypeID:
		raw, err := s.mem.ReadU32(addr)
		if err != nil {
			return Ref{}, false, err
		}
		tid := ctype.ID(raw)
		if !s.reg.Valid(tid) {
			return Ref{}, false, errors.New(errors.PhaseIndex, errors.KindInvalidData).
				Detail("type object holds invalid type id %d", raw).
				Build()
		}
		sid := s.reg.RawID(tid)
		sd := s.reg.Get(sid)
		if sd.Kind == ctype.KindPtr {
			sid = s.reg.RawID(sd.Child)
			sd = s.reg.Get(sid)
		}
		if sd.Kind == ctype.KindStruct {
			if fid, _, _, ok := s.reg.FieldQID(sd, name); ok && s.reg.Get(fid).Kind == ctype.KindConstval {
				return Ref{Type: fid, Status: Constant}, true, nil
			}
		}
		*id, *d = sid, sd
	}
	return Ref{}, false, nil
}
