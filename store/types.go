package store

import "fmt"

// ID identifies a record in a Store.
// The low 32 bits are the slot index plus one, the high 32 bits the slot's
// generation. ID 0 is reserved and always invalid.
type ID uint64

func makeID(index, gen uint32) ID {
	return ID(uint64(gen)<<32 | uint64(index+1))
}

func (id ID) index() (uint32, bool) {
	low := uint32(id)
	if low == 0 {
		return 0, false
	}
	return low - 1, true
}

func (id ID) generation() uint32 {
	return uint32(id >> 32)
}

// ID returns id itself, so a bare identifier can be passed where a Ref is
// expected.
func (id ID) ID() ID { return id }

// String formats the identifier as index@generation.
func (id ID) String() string {
	idx, ok := id.index()
	if !ok {
		return "nil"
	}
	return fmt.Sprintf("#%d@%d", idx, id.generation())
}

// Ref is anything that names a record: a Strong or Weak handle.
type Ref interface {
	ID() ID
}

// Strong is an owning handle. Each Strong value obtained from the store
// accounts for exactly one unit of the referent's strong count and must be
// released once, with ClearStrong or by moving it into a slot with Assign.
type Strong struct {
	id ID
}

// ID returns the referent's identifier.
func (h Strong) ID() ID { return h.id }

// IsZero reports whether h is the empty handle.
func (h Strong) IsZero() bool { return h.id == 0 }

// Weak is a non-owning handle. It keeps the record (not the object) around
// until released with ClearWeak.
type Weak struct {
	id ID
}

// ID returns the referent's identifier.
func (w Weak) ID() ID { return w.id }

// IsZero reports whether w is the empty handle.
func (w Weak) IsZero() bool { return w.id == 0 }

// Finalizer runs once, when an object's strong count drops to zero.
type Finalizer func(id ID)

// SlotRef describes one reference held in an object's state.
type SlotRef struct {
	Name   string
	Target ID
	Weak   bool
}

// Info is a read-only view of a record.
type Info struct {
	Label  string
	Slots  []SlotRef
	ID     ID
	Strong int
	Weak   int
	Live   bool
}

// Stats summarizes store activity.
type Stats struct {
	Allocated uint64 // objects ever allocated
	Finalized uint64 // finalizers run
	Purged    uint64 // records removed
	Live      int    // records with strong count > 0
	Zombies   int    // finalized records kept alive by weak handles
}

// Event types for lifecycle notifications.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventRetained
	EventReleased
	EventFinalized
	EventPurged
	EventWeakCreated
	EventWeakReleased
	EventResolved
)

func (t EventType) String() string {
	switch t {
	case EventAllocated:
		return "allocated"
	case EventRetained:
		return "retained"
	case EventReleased:
		return "released"
	case EventFinalized:
		return "finalized"
	case EventPurged:
		return "purged"
	case EventWeakCreated:
		return "weak-created"
	case EventWeakReleased:
		return "weak-released"
	case EventResolved:
		return "resolved"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// Event represents a lifecycle event. Strong and Weak are the counts after
// the transition. Cascade is set for releases triggered by another object's
// finalization rather than by a direct ClearStrong/ClearWeak call.
type Event struct {
	Label   string
	ID      ID
	Strong  int
	Weak    int
	Type    EventType
	Cascade bool
}

// Observer receives notifications about lifecycle events.
type Observer interface {
	OnStoreEvent(Event)
}
