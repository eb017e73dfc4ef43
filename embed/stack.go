package embed

import "github.com/wippyai/ffi-runtime/value"

// Stack is a host call frame. Slots are numbered from 1 at the bottom;
// negative indices count down from the top, -1 being the top slot.
type Stack struct {
	slots []value.Value
}

// NewStack returns a frame holding args as slots 1..len(args).
func NewStack(args ...value.Value) *Stack {
	return &Stack{slots: append([]value.Value(nil), args...)}
}

// Len returns the number of slots.
func (s *Stack) Len() int {
	return len(s.slots)
}

// Push appends v as the new top slot.
func (s *Stack) Push(v value.Value) {
	s.slots = append(s.slots, v)
}

// Pop removes and returns the top slot. It returns Nil on an empty frame.
func (s *Stack) Pop() value.Value {
	if len(s.slots) == 0 {
		return value.Nil()
	}
	v := s.slots[len(s.slots)-1]
	s.slots = s.slots[:len(s.slots)-1]
	return v
}

// Abs converts idx to a positive slot number. It returns 0 for an index
// outside the frame.
func (s *Stack) Abs(idx int) int {
	if idx < 0 {
		idx += len(s.slots) + 1
	}
	if idx < 1 || idx > len(s.slots) {
		return 0
	}
	return idx
}

// At returns the value in slot idx. Slots outside the frame read as Nil.
func (s *Stack) At(idx int) value.Value {
	if i := s.Abs(idx); i != 0 {
		return s.slots[i-1]
	}
	return value.Nil()
}
