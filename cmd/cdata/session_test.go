package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/ffi-runtime/value"
)

const decls = `
types:
  - struct: point
    fields:
      - {name: x, type: int}
      - {name: y, type: double}
      - {name: tags, type: "uint8_t[4]"}
  - struct: node
    fields:
      - {name: val, type: int64_t}
      - {name: pos, type: struct point}
      - {name: next, type: struct point *}
`

func newSession(t *testing.T, backend string) *session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "types.yaml")
	if err := os.WriteFile(path, []byte(decls), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	s, err := openSession(ctx, backend, sources{decl: path})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.close(ctx) })
	return s
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want []value.Value
	}{
		{"x", []value.Value{value.Str("x")}},
		{"pos.x", []value.Value{value.Str("pos"), value.Str("x")}},
		{"[3]", []value.Value{value.Int(3)}},
		{"tags[-1]", []value.Value{value.Str("tags"), value.Int(-1)}},
		{".a[0x10].b", []value.Value{value.Str("a"), value.Int(16), value.Str("b")}},
		{"", nil},
	}
	for _, tc := range tests {
		got, err := parsePath(tc.in)
		if err != nil {
			t.Errorf("%q: %v", tc.in, err)
			continue
		}
		if len(got) != len(tc.want) {
			t.Errorf("%q: got %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%q[%d]: got %v, want %v", tc.in, i, got[i], tc.want[i])
			}
		}
	}

	for _, bad := range []string{"a[", "a[x]", "a.", "a-b", "a.[1]"} {
		if _, err := parsePath(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want value.Value
	}{
		{"nil", value.Nil()},
		{"true", value.Bool(true)},
		{"-5", value.Int(-5)},
		{"0xff", value.Int(255)},
		{"2.5", value.Num(2.5)},
		{`"hi"`, value.Str("hi")},
		{"RED", value.Str("RED")},
	}
	for _, tc := range tests {
		got, err := parseLiteral(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("%q: got %v %v, want %v", tc.in, got, err, tc.want)
		}
	}
	for _, bad := range []string{"", `"open`, "+-"} {
		if _, err := parseLiteral(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestSession(t *testing.T) {
	for _, backend := range []string{"arena", "wazero"} {
		t.Run(backend, func(t *testing.T) {
			s := newSession(t, backend)

			if _, err := s.exec("x"); err == nil {
				t.Error("expected an error without an object")
			}
			if _, err := s.exec("new struct node"); err != nil {
				t.Fatal(err)
			}
			if s.frame.Len() != 0 {
				t.Errorf("frame not balanced: %d slots", s.frame.Len())
			}

			steps := []struct {
				cmd  string
				want string
			}{
				{"pos.x = 7", "7"},
				{"pos.x", "7"},
				{"pos.y = 0.25", "0.25"},
				{"pos.tags[2] = 9", "9"},
				{"pos.tags[2]", "9"},
				{"val = -3", "cdata<int64_t>: -3"},
			}
			for _, step := range steps {
				got, err := s.exec(step.cmd)
				if err != nil {
					t.Fatalf("%s: %v", step.cmd, err)
				}
				if got != step.want {
					t.Errorf("%s: got %q, want %q", step.cmd, got, step.want)
				}
			}

			if got, _ := s.exec("next"); got != "cdata<struct point *>: 0x00000000" {
				t.Errorf("next: got %q", got)
			}
			if _, err := s.exec("pos.z"); err == nil || !strings.Contains(err.Error(), "no member z") {
				t.Errorf("pos.z: got %v", err)
			}
			if _, err := s.exec("pos.x.y"); err == nil {
				t.Error("indexing a number should fail")
			}

			// Temporary boxes are released after each command.
			roots := s.st.Collector().Len()
			for i := 0; i < 4; i++ {
				if _, err := s.exec("pos"); err != nil {
					t.Fatal(err)
				}
			}
			if got := s.st.Collector().Len(); got != roots {
				t.Errorf("live objects: got %d, want %d", got, roots)
			}
		})
	}
}

func TestRun(t *testing.T) {
	s := newSession(t, "arena")
	var out bytes.Buffer
	if err := run(&out, s, "struct point", "x=4, y=1.5", "x,y"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"x = 4\n", "y = 1.5\n"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q lacks %q", out.String(), want)
		}
	}

	if err := run(&out, s, "struct missing", "", ""); err == nil {
		t.Error("expected an error for an unknown type")
	}
	if _, err := openSession(context.Background(), "mmap", sources{}); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

const witTypes = `{
  "worlds": [],
  "interfaces": [],
  "types": [
    {"name": "rgb", "kind": {"record": {"fields": [{"name": "r", "type": "u8"}, {"name": "g", "type": "u8"}, {"name": "b", "type": "u8"}]}}},
    {"name": "handle", "kind": "resource"}
  ],
  "packages": []
}`

func TestSession_WIT(t *testing.T) {
	dir := t.TempDir()
	witPath := filepath.Join(dir, "colors.wit.json")
	declPath := filepath.Join(dir, "types.yaml")
	if err := os.WriteFile(witPath, []byte(witTypes), 0o600); err != nil {
		t.Fatal(err)
	}
	// YAML declarations may refer to WIT types.
	yaml := "types:\n  - struct: pixel\n    fields:\n      - {name: color, type: struct rgb}\n      - {name: alpha, type: float}\n"
	if err := os.WriteFile(declPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	s, err := openSession(ctx, "arena", sources{decl: declPath, wit: witPath})
	if err != nil {
		t.Fatal(err)
	}
	defer s.close(ctx)

	if _, err := s.exec("new struct pixel"); err != nil {
		t.Fatal(err)
	}
	if got, err := s.exec("color.g = 300"); err != nil || got != "44" {
		t.Errorf("color.g: got %q %v", got, err)
	}
	if got, _ := s.exec("alpha"); got != "0" {
		t.Errorf("alpha: got %q", got)
	}

	if _, err := openSession(ctx, "arena", sources{wit: filepath.Join(dir, "missing.json")}); err == nil {
		t.Error("expected an error for a missing WIT file")
	}
}

func TestRunLines(t *testing.T) {
	s := newSession(t, "arena")
	in := strings.NewReader("x = 2\nnope\nx\nquit\nx = 9\n")
	var out bytes.Buffer
	if err := runLines(in, &out, s, "struct point"); err != nil {
		t.Fatal(err)
	}
	want := "2\nerror: struct point has no member nope\n2\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}

func TestInteractiveModel(t *testing.T) {
	s := newSession(t, "arena")
	m := newInteractiveModel(s)

	for _, line := range []string{"new struct point", "x = 3", "x"} {
		m.input.SetValue(line)
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	}
	if len(m.history) != 3 {
		t.Fatalf("history: got %d entries", len(m.history))
	}
	if e := m.history[2]; e.err != nil || e.output != "3" {
		t.Errorf("last entry: %+v", e)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.input.Value() != "x" {
		t.Errorf("recall: got %q", m.input.Value())
	}
	if view := m.View(); !strings.Contains(view, "struct point") {
		t.Errorf("view lacks the object type:\n%s", view)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Error("esc should quit")
	}
}
