package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/ffi-runtime/cdata"
	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/embed"
	"github.com/wippyai/ffi-runtime/heap"
	"github.com/wippyai/ffi-runtime/internal/decl"
	"github.com/wippyai/ffi-runtime/value"
)

// session holds one State and the object being inspected.
type session struct {
	st    *cdata.State
	host  *embed.Host
	frame *embed.Stack
	root  value.Value
	close func(context.Context) error
}

// sources names the type declaration files a session starts from.
type sources struct {
	decl string // YAML declarations
	wit  string // WIT package, as .wit or as wasm-tools JSON
}

func openSession(ctx context.Context, backend string, src sources) (*session, error) {
	reg := ctype.New()
	if src.wit != "" {
		_, skipped, err := decl.LoadWIT(reg, src.wit)
		if err != nil {
			return nil, err
		}
		if len(skipped) > 0 {
			cdata.Logger().Info("WIT types without a C layout skipped",
				zap.String("file", src.wit), zap.Strings("types", skipped))
		}
	}
	if src.decl != "" {
		if _, err := decl.LoadFile(reg, src.decl); err != nil {
			return nil, err
		}
	}

	opts := cdata.DefaultOptions()
	closeFn := func(context.Context) error { return nil }
	switch backend {
	case "", "arena":
	case "wazero":
		rt := wazero.NewRuntime(ctx)
		mem, err := heap.NewWazeroMemory(ctx, rt, opts.InitialPages, 1024)
		if err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("wazero memory: %w", err)
		}
		opts.Memory = mem
		closeFn = rt.Close
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}

	st := cdata.New(reg, opts)
	s := &session{st: st, frame: embed.NewStack(), close: closeFn}
	s.host = embed.New(st, s.typeOf)
	return s, nil
}

// typeOf resolves a type expression to a new type object and leaves it on
// the frame.
func (s *session) typeOf(L *embed.Stack, expr string) (value.Value, error) {
	id, err := decl.ParseType(s.st.Registry(), expr)
	if err != nil {
		return value.Nil(), err
	}
	cd, err := s.st.New(ctype.IDCTypeID, ctype.PtrSize)
	if err != nil {
		return value.Nil(), err
	}
	if err := s.st.Memory().WriteU32(s.st.Data(cd), uint32(id)); err != nil {
		return value.Nil(), err
	}
	L.Push(value.Box(cd))
	return value.Box(cd), nil
}

// alloc replaces the inspected object with a new zeroed object of type expr.
func (s *session) alloc(expr string) (string, error) {
	id, err := s.host.ResolveNamedType(s.frame, expr)
	if err != nil {
		return "", err
	}
	if tobj := s.frame.Pop(); tobj.IsCData() {
		if err := s.st.Free(tobj.C); err != nil {
			return "", err
		}
	}
	size := s.st.Registry().Size(id)
	if size == ctype.SizeInvalid {
		return "", fmt.Errorf("%s has no size", s.st.Registry().Repr(id))
	}
	if s.root.IsCData() {
		if err := s.st.Free(s.root.C); err != nil {
			return "", err
		}
	}
	if _, err := s.host.PushNewValue(s.frame, id, size); err != nil {
		return "", err
	}
	s.root = s.frame.Pop()
	return s.format(s.root), nil
}

// exec runs one inspector command: "new T", "types", "path" or "path = v".
func (s *session) exec(line string) (string, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return "", nil
	case line == "types":
		return strings.Join(s.st.Registry().Names(), "\n"), nil
	case strings.HasPrefix(line, "new "):
		return s.alloc(strings.TrimSpace(line[4:]))
	}
	if !s.root.IsCData() {
		return "", fmt.Errorf("no object; use new <type> first")
	}
	if lhs, rhs, ok := strings.Cut(line, "="); ok {
		return s.set(strings.TrimSpace(lhs), strings.TrimSpace(rhs))
	}
	return s.get(line)
}

func (s *session) get(path string) (string, error) {
	keys, err := parsePath(path)
	if err != nil {
		return "", err
	}
	var temps []value.CData
	defer s.release(&temps)
	v := s.root
	for _, k := range keys {
		if v, err = s.step(v, k, &temps); err != nil {
			return "", err
		}
	}
	return s.format(v), nil
}

func (s *session) set(path, literal string) (string, error) {
	keys, err := parsePath(path)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("cannot assign to the object itself")
	}
	nv, err := parseLiteral(literal)
	if err != nil {
		return "", err
	}
	var temps []value.CData
	defer s.release(&temps)
	v := s.root
	for _, k := range keys[:len(keys)-1] {
		if v, err = s.step(v, k, &temps); err != nil {
			return "", err
		}
	}
	if !v.IsCData() {
		return "", fmt.Errorf("cannot index %s", v.Kind)
	}
	last := keys[len(keys)-1]
	if err := s.st.IndexSet(v.C, last, nv); err != nil {
		return "", err
	}
	got, err := s.step(v, last, &temps)
	if err != nil {
		return "", err
	}
	return s.format(got), nil
}

// step indexes v with key, recording boxes created on the way in temps.
func (s *session) step(v, key value.Value, temps *[]value.CData) (value.Value, error) {
	if !v.IsCData() {
		return value.Nil(), fmt.Errorf("cannot index %s", v.Kind)
	}
	r, err := s.st.Index(v.C, key)
	if err != nil {
		return value.Nil(), err
	}
	if !r.Ok() {
		name := key.String()
		if key.Kind == value.KindStr {
			name = key.S
		}
		return value.Nil(), fmt.Errorf("%s has no member %s", s.st.Registry().Repr(r.Type), name)
	}
	got, boxed, err := s.st.Get(r.Type, r.Addr)
	if err != nil {
		return value.Nil(), err
	}
	if boxed {
		*temps = append(*temps, got.C)
	}
	return got, nil
}

func (s *session) release(temps *[]value.CData) {
	for _, cd := range *temps {
		if err := s.st.Free(cd); err != nil {
			cdata.Logger().Sugar().Warnf("free temporary 0x%08x: %v", uint32(cd), err)
		}
	}
}

func (s *session) format(v value.Value) string {
	if !v.IsCData() {
		return v.String()
	}
	id, err := s.st.TypeID(v.C)
	if err != nil {
		return fmt.Sprintf("cdata 0x%08x: %v", uint32(v.C), err)
	}
	repr := s.st.Registry().Repr(id)
	if n, ok, err := s.st.Converter().ToNumber(v.C); err == nil && ok {
		if s.st.Registry().Raw(id).Kind == ctype.KindPtr {
			return fmt.Sprintf("cdata<%s>: 0x%08x", repr, n.I)
		}
		return fmt.Sprintf("cdata<%s>: %s", repr, n)
	}
	return fmt.Sprintf("cdata<%s>: 0x%08x", repr, s.st.Data(v.C))
}

// parsePath splits an index path such as "a.b[3].c" into keys. A leading
// name needs no dot.
func parsePath(path string) ([]value.Value, error) {
	var keys []value.Value
	i := 0
	for i < len(path) {
		switch c := path[i]; {
		case c == '.':
			i++
			fallthrough
		case isIdentStart(c):
			j := i
			for j < len(path) && isIdentPart(path[j]) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("expected a name at %q", path[i:])
			}
			keys = append(keys, value.Str(path[i:j]))
			i = j
		case c == '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated index in %q", path)
			}
			n, err := strconv.ParseInt(strings.TrimSpace(path[i+1:i+end]), 0, 64)
			if err != nil {
				return nil, fmt.Errorf("bad index in %q: %w", path, err)
			}
			keys = append(keys, value.Int(n))
			i += end + 1
		case c == ' ' || c == '\t':
			i++
		default:
			return nil, fmt.Errorf("unexpected %q in %q", c, path)
		}
	}
	return keys, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// parseLiteral reads a value: nil, true, false, an integer, a number, a
// quoted string or a bare name such as an enum constant.
func parseLiteral(s string) (value.Value, error) {
	switch s {
	case "":
		return value.Nil(), fmt.Errorf("missing value")
	case "nil":
		return value.Nil(), nil
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	}
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return value.Int(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Num(f), nil
	}
	if s[0] == '"' {
		str, err := strconv.Unquote(s)
		if err != nil {
			return value.Nil(), fmt.Errorf("bad string %s: %w", s, err)
		}
		return value.Str(str), nil
	}
	if isIdentStart(s[0]) {
		return value.Str(s), nil
	}
	return value.Nil(), fmt.Errorf("cannot parse value %q", s)
}
