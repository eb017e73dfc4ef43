package gc

import (
	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/value"
)

// Common GC header shared by every collectable object.
const (
	OffNext   = 0 // u32 link in the root list or the finalizer queue
	OffMarked = 4 // u8 color and flag bits
	OffGCT    = 5 // u8 object type tag
	GCHeader  = 6
)

// Mark bits.
const (
	White0    uint8 = 0x01
	White1    uint8 = 0x02
	Black     uint8 = 0x04
	Finalized uint8 = 0x08
	CDataFin  uint8 = 0x10 // object has a registered finalizer
	Fixed     uint8 = 0x20
	CDataVar  uint8 = 0x80 // object was allocated with a variable-size header

	Whites = White0 | White1
	colors = Whites | Black
)

// Collector owns the root list and the finalizer queue. Objects are linked
// through the next field of their own header.
//
// Collector is not safe for concurrent use.
type Collector struct {
	mem     ffiruntime.Memory
	root    value.CData
	mmudata value.CData // tail of the circular finalizer queue
	white   uint8

	// prev maps each object on the root list to its predecessor, 0 for the
	// head, so that Unlink does not walk the list.
	prev map[value.CData]value.CData
}

// NewCollector creates a collector over mem with white0 as the current white.
func NewCollector(mem ffiruntime.Memory) *Collector {
	return &Collector{mem: mem, white: White0, prev: make(map[value.CData]value.CData)}
}

// CurrentWhite returns the white used for newly allocated objects.
func (c *Collector) CurrentWhite() uint8 {
	return c.white
}

// FlipWhite swaps the current white, as a collector does at the start of a sweep.
func (c *Collector) FlipWhite() {
	c.white ^= Whites
}

// Root returns the head of the root list.
func (c *Collector) Root() value.CData {
	return c.root
}

// Len returns the number of objects on the root list.
func (c *Collector) Len() int {
	return len(c.prev)
}

// Contains reports whether o is on the root list.
func (c *Collector) Contains(o value.CData) bool {
	_, ok := c.prev[o]
	return ok
}

func (c *Collector) pushRoot(o value.CData) error {
	if err := c.setNext(o, c.root); err != nil {
		return err
	}
	if c.root != 0 {
		c.prev[c.root] = o
	}
	c.prev[o] = 0
	c.root = o
	return nil
}

func (c *Collector) next(o value.CData) (value.CData, error) {
	n, err := c.mem.ReadU32(uint32(o) + OffNext)
	return value.CData(n), err
}

func (c *Collector) setNext(o, n value.CData) error {
	return c.mem.WriteU32(uint32(o)+OffNext, uint32(n))
}

// Marked returns the mark byte of o.
func (c *Collector) Marked(o value.CData) (uint8, error) {
	return c.mem.ReadU8(uint32(o) + OffMarked)
}

// SetMarked overwrites the mark byte of o.
func (c *Collector) SetMarked(o value.CData, m uint8) error {
	return c.mem.WriteU8(uint32(o)+OffMarked, m)
}

func (c *Collector) update(o value.CData, fn func(uint8) uint8) error {
	m, err := c.Marked(o)
	if err != nil {
		return err
	}
	return c.SetMarked(o, fn(m))
}

// Link pushes a new object at the head of the root list and colors it with
// the current white, discarding any previous mark bits. A new object stays
// white until the host's next mark phase reaches it.
func (c *Collector) Link(o value.CData, gct uint8) error {
	if err := c.SetMarked(o, c.white); err != nil {
		return err
	}
	if err := c.mem.WriteU8(uint32(o)+OffGCT, gct); err != nil {
		return err
	}
	return c.pushRoot(o)
}

// Unlink removes o from the root list in constant time. It reports whether
// o was found.
func (c *Collector) Unlink(o value.CData) (bool, error) {
	p, ok := c.prev[o]
	if !ok {
		return false, nil
	}
	n, err := c.next(o)
	if err != nil {
		return false, err
	}
	if p == 0 {
		c.root = n
	} else if err := c.setNext(p, n); err != nil {
		return false, err
	}
	if n != 0 {
		c.prev[n] = p
	}
	delete(c.prev, o)
	return true, nil
}

// Each calls fn for every object on the root list, stopping when fn returns false.
func (c *Collector) Each(fn func(value.CData) bool) error {
	for cur := c.root; cur != 0; {
		n, err := c.next(cur)
		if err != nil {
			return err
		}
		if !fn(cur) {
			return nil
		}
		cur = n
	}
	return nil
}

// MakeWhite recolors o with the current white, keeping its flag bits.
func (c *Collector) MakeWhite(o value.CData) error {
	return c.update(o, func(m uint8) uint8 { return m&^colors | c.white })
}

// MarkFinalized sets the finalized bit of o.
func (c *Collector) MarkFinalized(o value.CData) error {
	return c.update(o, func(m uint8) uint8 { return m | Finalized })
}

// EnqueueFinalizer appends o to the finalizer queue. The queue is a circular
// list addressed by its tail; a single element links to itself.
func (c *Collector) EnqueueFinalizer(o value.CData) error {
	if tail := c.mmudata; tail != 0 {
		head, err := c.next(tail)
		if err != nil {
			return err
		}
		if err := c.setNext(o, head); err != nil {
			return err
		}
		if err := c.setNext(tail, o); err != nil {
			return err
		}
	} else if err := c.setNext(o, o); err != nil {
		return err
	}
	c.mmudata = o
	return nil
}

// PendingFinalizers reports whether the finalizer queue is non-empty.
func (c *Collector) PendingFinalizers() bool {
	return c.mmudata != 0
}

// NextFinalizer dequeues the oldest pending object, links it back into the
// root list as a live white object and clears its finalizer flag. It returns
// 0 when the queue is empty.
func (c *Collector) NextFinalizer() (value.CData, error) {
	tail := c.mmudata
	if tail == 0 {
		return 0, nil
	}
	o, err := c.next(tail)
	if err != nil {
		return 0, err
	}
	if o == tail {
		c.mmudata = 0
	} else {
		n, err := c.next(o)
		if err != nil {
			return 0, err
		}
		if err := c.setNext(tail, n); err != nil {
			return 0, err
		}
	}

	if err := c.pushRoot(o); err != nil {
		return 0, err
	}
	if err := c.update(o, func(m uint8) uint8 { return m&^(colors|CDataFin) | c.white }); err != nil {
		return 0, err
	}
	return o, nil
}

// DrainFinalizers dequeues every pending object in FIFO order and passes it
// to fn after it has been relinked as a live object. Draining stops at the
// first error.
func (c *Collector) DrainFinalizers(fn func(value.CData) error) error {
	for c.mmudata != 0 {
		o, err := c.NextFinalizer()
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	return nil
}
