package gc

import (
	"sync"

	"github.com/wippyai/ffi-runtime/value"
)

// EventType identifies a finalizer table change.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventRemoved
)

// Event describes a finalizer table change.
type Event struct {
	Object value.CData
	Type   EventType
}

// Observer receives finalizer table events.
type Observer interface {
	OnFinalizerEvent(Event)
}

// FinalizerTable maps objects to host finalizer callbacks. While disabled,
// Slot hands out a shared dummy slot whose writes are discarded.
type FinalizerTable struct {
	slots     map[value.CData]*value.Value
	dummy     value.Value
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	enabled   bool
}

// NewFinalizerTable creates an enabled table.
func NewFinalizerTable() *FinalizerTable {
	return &FinalizerTable{
		slots:   make(map[value.CData]*value.Value),
		enabled: true,
	}
}

// Enabled reports whether new registrations are accepted.
func (t *FinalizerTable) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// SetEnabled turns registration on or off. Existing entries are kept.
func (t *FinalizerTable) SetEnabled(on bool) {
	t.mu.Lock()
	t.enabled = on
	t.mu.Unlock()
}

// Register returns the slot for o, creating it if needed.
// It returns false when the table is disabled.
func (t *FinalizerTable) Register(o value.CData) (*value.Value, bool) {
	t.mu.Lock()
	if !t.enabled {
		t.mu.Unlock()
		return nil, false
	}
	slot, ok := t.slots[o]
	if !ok {
		slot = new(value.Value)
		t.slots[o] = slot
	}
	t.mu.Unlock()

	if !ok {
		t.notify(Event{Type: EventRegistered, Object: o})
	}
	return slot, true
}

// Dummy returns the shared slot handed out while the table is disabled.
// Its content is reset on every call.
func (t *FinalizerTable) Dummy() *value.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dummy = value.Nil()
	return &t.dummy
}

// Lookup returns the finalizer stored for o.
func (t *FinalizerTable) Lookup(o value.CData) (value.Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	slot, ok := t.slots[o]
	if !ok {
		return value.Nil(), false
	}
	return *slot, true
}

// Remove deletes the entry for o and returns its finalizer.
func (t *FinalizerTable) Remove(o value.CData) (value.Value, bool) {
	t.mu.Lock()
	slot, ok := t.slots[o]
	if ok {
		delete(t.slots, o)
	}
	t.mu.Unlock()

	if !ok {
		return value.Nil(), false
	}
	t.notify(Event{Type: EventRemoved, Object: o})
	return *slot, true
}

// Len returns the number of registered objects.
func (t *FinalizerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots)
}

// Subscribe adds an observer.
func (t *FinalizerTable) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *FinalizerTable) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *FinalizerTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnFinalizerEvent(e)
	}
}
