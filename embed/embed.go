package embed

import (
	"go.uber.org/zap"

	"github.com/wippyai/ffi-runtime/cdata"
	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/value"
)

// TypeOfFunc is the scripting layer's type naming facility. It returns a
// cdata value denoting the named type, usually a type object.
type TypeOfFunc func(L *Stack, name string) (value.Value, error)

// Host exposes a cdata State to native code called from scripts.
type Host struct {
	st     *cdata.State
	typeOf TypeOfFunc

	// ownsTypeObjects is set when typeOf is RegistryTypeOf, whose type
	// objects are not reachable from the script and are freed after use.
	ownsTypeObjects bool
}

// New returns a Host over st. A nil typeOf resolves names through the
// State's registry with RegistryTypeOf.
func New(st *cdata.State, typeOf TypeOfFunc) *Host {
	h := &Host{st: st, typeOf: typeOf}
	if h.typeOf == nil {
		h.typeOf = RegistryTypeOf(st)
		h.ownsTypeObjects = true
	}
	return h
}

// State returns the underlying State.
func (h *Host) State() *cdata.State {
	return h.st
}

// PushNewValue allocates a zeroed object of type id with size bytes of
// payload, pushes it onto L and returns the payload address for native
// code to fill.
func (h *Host) PushNewValue(L *Stack, id ctype.ID, size uint32) (uint32, error) {
	cd, err := h.st.NewSized(id, size)
	if err != nil {
		return 0, err
	}
	L.Push(value.Box(cd))
	return h.st.Data(cd), nil
}

// CheckValueArgument checks that argument idx of L is a cdata value and
// returns its payload address and type id. expected names the type in the
// error message.
func (h *Host) CheckValueArgument(L *Stack, idx int, expected string) (uint32, ctype.ID, error) {
	v := L.At(idx)
	if !v.IsCData() {
		pos := L.Abs(idx)
		if pos == 0 {
			pos = idx
		}
		return 0, ctype.IDNone, errors.WrongArgumentType(expected, pos)
	}
	id, err := h.st.TypeID(v.C)
	if err != nil {
		return 0, ctype.IDNone, err
	}
	return h.st.Data(v.C), id, nil
}

// ResolveNamedType looks name up through the host's type naming facility.
// A type object yields the type it denotes, any other cdata value its own
// type.
func (h *Host) ResolveNamedType(L *Stack, name string) (ctype.ID, error) {
	v, err := h.typeOf(L, name)
	if err != nil {
		cdata.Logger().Debug("type lookup failed", zap.String("name", name), zap.Error(err))
		return ctype.IDNone, errors.TypeResolution(name, err)
	}
	if !v.IsCData() {
		return ctype.IDNone, errors.TypeResolution(name, errors.New(errors.PhaseEmbed, errors.KindTypeMismatch).
			Detail("type lookup returned %s", v.Kind).
			Build())
	}
	id, err := h.st.TypeID(v.C)
	if err != nil {
		return ctype.IDNone, errors.TypeResolution(name, err)
	}
	if id != ctype.IDCTypeID {
		return id, nil
	}
	if h.ownsTypeObjects {
		defer func() {
			if err := h.st.Free(v.C); err != nil {
				cdata.Logger().Warn("free type object", zap.String("name", name), zap.Error(err))
			}
		}()
	}
	raw, err := h.st.Memory().ReadU32(h.st.Data(v.C))
	if err != nil {
		return ctype.IDNone, errors.TypeResolution(name, err)
	}
	tid := ctype.ID(raw)
	if !h.st.Registry().Valid(tid) {
		return ctype.IDNone, errors.TypeResolution(name, errors.InvalidData(errors.PhaseEmbed, "type object holds an invalid type id"))
	}
	return tid, nil
}

// RegistryTypeOf returns a TypeOfFunc that looks names up in the registry
// of st and returns a new type object for the match. The caller owns the
// type object; a Host created with a nil TypeOfFunc frees it itself.
func RegistryTypeOf(st *cdata.State) TypeOfFunc {
	return func(_ *Stack, name string) (value.Value, error) {
		id, ok := st.Registry().Lookup(name)
		if !ok {
			return value.Nil(), errors.NotFound(errors.PhaseEmbed, "C type", name)
		}
		cd, err := st.New(ctype.IDCTypeID, ctype.PtrSize)
		if err != nil {
			return value.Nil(), err
		}
		if err := st.Memory().WriteU32(st.Data(cd), uint32(id)); err != nil {
			return value.Nil(), err
		}
		return value.Box(cd), nil
	}
}
