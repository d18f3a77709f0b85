package store

import (
	"errors"
	"reflect"
	"testing"

	arcerrors "github.com/wippyai/arcstore/errors"
)

func mustAssign(t *testing.T, s *Store, owner Ref, name string, h Strong) {
	t.Helper()
	if err := s.Assign(owner, name, h); err != nil {
		t.Fatalf("Assign %s: %v", name, err)
	}
}

func mustAssignWeak(t *testing.T, s *Store, owner Ref, name string, w Weak) {
	t.Helper()
	if err := s.AssignWeak(owner, name, w); err != nil {
		t.Fatalf("AssignWeak %s: %v", name, err)
	}
}

// bar.foo = foo; foo = nil; bar = nil
func TestSlots_HeldObjectFinalizedWithOwner(t *testing.T) {
	s := NewWithDefaults()
	log := newDeinitLog()

	foo := s.Allocate("Foo", log.fin("Foo"))
	bar := s.Allocate("Bar", log.fin("Bar"))
	mustAssign(t, s, bar, "foo", mustCopy(t, s, foo))

	mustClear(t, s, foo)
	if len(log.order) != 0 {
		t.Fatalf("Foo finalized while Bar still holds it: %v", log.order)
	}

	mustClear(t, s, bar)
	if !reflect.DeepEqual(log.order, []string{"Bar", "Foo"}) {
		t.Fatalf("order = %v, want [Bar Foo]", log.order)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestSlots_ReverseReachabilityOrder(t *testing.T) {
	s := NewWithDefaults()
	log := newDeinitLog()

	// root -> a -> c
	// root -> b -> c
	root := s.Allocate("root", log.fin("root"))
	a := s.Allocate("a", log.fin("a"))
	b := s.Allocate("b", log.fin("b"))
	c := s.Allocate("c", log.fin("c"))

	mustAssign(t, s, root, "left", mustCopy(t, s, a))
	mustAssign(t, s, root, "right", mustCopy(t, s, b))
	mustAssign(t, s, a, "next", mustCopy(t, s, c))
	mustAssign(t, s, b, "next", mustCopy(t, s, c))

	mustClear(t, s, a)
	mustClear(t, s, b)
	mustClear(t, s, c)
	if len(log.order) != 0 {
		t.Fatalf("finalized while reachable from root: %v", log.order)
	}

	mustClear(t, s, root)

	want := []string{"root", "a", "b", "c"}
	if !reflect.DeepEqual(log.order, want) {
		t.Fatalf("order = %v, want %v", log.order, want)
	}
	for label, n := range log.calls {
		if n != 1 {
			t.Fatalf("%s finalized %d times", label, n)
		}
	}
}

func TestSlots_LongChain(t *testing.T) {
	s := NewWithDefaults()
	const n = 10000

	finalized := 0
	fin := func(ID) { finalized++ }

	head := s.Allocate("node", fin)
	prev := head
	for i := 1; i < n; i++ {
		next := s.Allocate("node", fin)
		mustAssign(t, s, prev, "next", mustCopy(t, s, next))
		if i > 1 {
			mustClear(t, s, prev)
		}
		prev = next
	}
	mustClear(t, s, prev)

	if finalized != 0 {
		t.Fatalf("finalized %d nodes while head is held", finalized)
	}

	mustClear(t, s, head)
	if finalized != n {
		t.Fatalf("finalized = %d, want %d", finalized, n)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestSlots_StrongCycleLeaks(t *testing.T) {
	s := NewWithDefaults()
	log := newDeinitLog()

	a := s.Allocate("A", log.fin("A"))
	b := s.Allocate("B", log.fin("B"))
	mustAssign(t, s, a, "peer", mustCopy(t, s, b))
	mustAssign(t, s, b, "peer", mustCopy(t, s, a))

	mustClear(t, s, a)
	mustClear(t, s, b)

	if len(log.order) != 0 {
		t.Fatalf("cycle members finalized: %v", log.order)
	}
	for _, h := range []Strong{a, b} {
		info := mustInfo(t, s, h)
		if !info.Live || info.Strong != 1 {
			t.Fatalf("%s: %+v, want live with strong 1", info.Label, info)
		}
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestSlots_SelfReferenceLeaks(t *testing.T) {
	s := NewWithDefaults()
	log := newDeinitLog()

	x := s.Allocate("X", log.fin("X"))
	mustAssign(t, s, x, "self", mustCopy(t, s, x))
	mustClear(t, s, x)

	if len(log.order) != 0 {
		t.Fatalf("self-referencing object finalized: %v", log.order)
	}
	if got := mustInfo(t, s, x).Strong; got != 1 {
		t.Fatalf("Strong = %d, want 1", got)
	}
}

// person.apartment = apartment (strong), apartment.tenant = person (weak)
func TestSlots_WeakTenant(t *testing.T) {
	s := NewWithDefaults()
	log := newDeinitLog()

	person := s.Allocate("Person", log.fin("Person"))
	apartment := s.Allocate("Apartment", log.fin("Apartment"))

	mustAssignWeak(t, s, apartment, "tenant", mustWeak(t, s, person))
	mustAssign(t, s, person, "apartment", mustCopy(t, s, apartment))

	mustClear(t, s, person)
	if !reflect.DeepEqual(log.order, []string{"Person"}) {
		t.Fatalf("order = %v, want [Person]", log.order)
	}
	if !s.Contains(person) {
		t.Fatal("Person record should remain while Apartment's weak slot refers to it")
	}
	ref, ok, err := s.Slot(apartment, "tenant")
	if err != nil || !ok {
		t.Fatalf("Slot tenant: ok=%v err=%v", ok, err)
	}
	if _, live, _ := s.Resolve(Weak{id: ref.Target}); live {
		t.Fatal("tenant should resolve empty after Person finalized")
	}

	mustClear(t, s, apartment)
	if !reflect.DeepEqual(log.order, []string{"Person", "Apartment"}) {
		t.Fatalf("order = %v, want [Person Apartment]", log.order)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0 (both purged)", s.Len())
	}
}

// view.manager = manager (strong), manager.delegate = view (weak)
func TestSlots_WeakDelegate(t *testing.T) {
	s := NewWithDefaults()
	log := newDeinitLog()

	manager := s.Allocate("Manager", log.fin("Manager"))
	view := s.Allocate("View", log.fin("View"))

	mustAssign(t, s, view, "manager", mustCopy(t, s, manager))
	mustAssignWeak(t, s, manager, "delegate", mustWeak(t, s, view))

	mustClear(t, s, manager)
	if len(log.order) != 0 {
		t.Fatalf("Manager finalized while View holds it: %v", log.order)
	}

	mustClear(t, s, view)
	if !reflect.DeepEqual(log.order, []string{"View", "Manager"}) {
		t.Fatalf("order = %v, want [View Manager]", log.order)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestSlots_OverwriteReleasesPrevious(t *testing.T) {
	s := NewWithDefaults()
	log := newDeinitLog()

	bar := s.Allocate("Bar", log.fin("Bar"))
	foo1 := s.Allocate("Foo1", log.fin("Foo1"))
	foo2 := s.Allocate("Foo2", log.fin("Foo2"))

	mustAssign(t, s, bar, "foo", foo1)
	mustAssign(t, s, bar, "foo", foo2)

	if !reflect.DeepEqual(log.order, []string{"Foo1"}) {
		t.Fatalf("order = %v, want [Foo1]", log.order)
	}
	ref, ok, err := s.Slot(bar, "foo")
	if err != nil || !ok || ref.Target != foo2.ID() || ref.Weak {
		t.Fatalf("Slot foo = %+v ok=%v err=%v", ref, ok, err)
	}
	if got := len(mustInfo(t, s, bar).Slots); got != 1 {
		t.Fatalf("slots = %d, want 1", got)
	}
}

func TestSlots_ReassignSameTarget(t *testing.T) {
	s := NewWithDefaults()
	log := newDeinitLog()

	bar := s.Allocate("Bar", nil)
	foo := s.Allocate("Foo", log.fin("Foo"))

	mustAssign(t, s, bar, "foo", mustCopy(t, s, foo))
	mustAssign(t, s, bar, "foo", mustCopy(t, s, foo))

	if got := mustInfo(t, s, foo).Strong; got != 2 {
		t.Fatalf("Strong = %d, want 2", got)
	}
	if len(log.order) != 0 {
		t.Fatal("reassigning the same target must not finalize it")
	}
}

func TestSlots_Unassign(t *testing.T) {
	s := NewWithDefaults()
	log := newDeinitLog()

	bar := s.Allocate("Bar", nil)
	foo := s.Allocate("Foo", log.fin("Foo"))
	mustAssign(t, s, bar, "foo", foo)

	if err := s.Unassign(bar, "foo"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(log.order, []string{"Foo"}) {
		t.Fatalf("order = %v, want [Foo]", log.order)
	}
	if _, ok, _ := s.Slot(bar, "foo"); ok {
		t.Fatal("slot should be empty after Unassign")
	}
	if err := s.Unassign(bar, "foo"); err != nil {
		t.Fatalf("Unassign of empty slot: %v", err)
	}
	if err := s.Unassign(Strong{}, "foo"); !errors.Is(err, arcerrors.ErrUnknownHandle) {
		t.Fatalf("Unassign on zero owner: got %v", err)
	}
}

func TestSlots_UnassignWeakPurgesZombie(t *testing.T) {
	s := NewWithDefaults()

	holder := s.Allocate("Holder", nil)
	target := s.Allocate("Target", nil)
	mustAssignWeak(t, s, holder, "t", mustWeak(t, s, target))
	mustClear(t, s, target)

	if !s.Contains(target) {
		t.Fatal("zombie purged too early")
	}
	if err := s.Unassign(holder, "t"); err != nil {
		t.Fatal(err)
	}
	if s.Contains(target) {
		t.Fatal("zombie should be purged once the weak slot is emptied")
	}
}

func TestSlots_AssignIntoFinalizedOwner(t *testing.T) {
	s := NewWithDefaults()

	owner := s.Allocate("Owner", nil)
	keep := mustWeak(t, s, owner)
	mustClear(t, s, owner)

	foo := s.Allocate("Foo", nil)
	ref := mustCopy(t, s, foo)

	err := s.Assign(keep, "foo", ref)
	if !errors.Is(err, arcerrors.ErrUseAfterFree) {
		t.Fatalf("got %v, want UseAfterFree", err)
	}
	if !errors.Is(err, &arcerrors.Error{Phase: arcerrors.PhaseSlot, Kind: arcerrors.KindUseAfterFree}) {
		t.Fatalf("expected slot phase, got %v", err)
	}
	if got := mustInfo(t, s, foo).Strong; got != 2 {
		t.Fatalf("failed Assign consumed the handle: Strong = %d", got)
	}
}

func TestSlots_AssignValidation(t *testing.T) {
	s := NewWithDefaults()
	owner := s.Allocate("Owner", nil)
	foo := s.Allocate("Foo", nil)

	var target *arcerrors.Error
	err := s.Assign(owner, "", foo)
	if !errors.As(err, &target) || target.Kind != arcerrors.KindInvalidInput {
		t.Fatalf("empty slot name: got %v", err)
	}

	if err := s.Assign(owner, "x", Strong{}); !errors.Is(err, arcerrors.ErrUnknownHandle) {
		t.Fatalf("zero target: got %v", err)
	}
	if err := s.AssignWeak(owner, "x", Weak{}); !errors.Is(err, arcerrors.ErrUnknownHandle) {
		t.Fatalf("zero weak target: got %v", err)
	}
	if err := s.Assign(Strong{}, "x", foo); !errors.Is(err, arcerrors.ErrUnknownHandle) {
		t.Fatalf("zero owner: got %v", err)
	}

	w := mustWeak(t, s, foo)
	mustClear(t, s, foo)
	if err := s.Assign(owner, "x", Strong{id: w.ID()}); !errors.Is(err, arcerrors.ErrUseAfterFree) {
		t.Fatalf("finalized target: got %v", err)
	}
	if err := s.AssignWeak(owner, "x", w); err != nil {
		t.Fatalf("weak slot to finalized target should be allowed: %v", err)
	}
}

func TestSlots_CascadeEvents(t *testing.T) {
	s := NewWithDefaults()
	obs := &testObserver{}

	bar := s.Allocate("Bar", nil)
	foo := s.Allocate("Foo", nil)
	mustAssign(t, s, bar, "foo", foo)

	s.Subscribe(obs)
	mustClear(t, s, bar)

	want := []EventType{
		EventReleased, EventFinalized, EventPurged,
		EventReleased, EventFinalized, EventPurged,
	}
	if got := obs.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if obs.events[0].Cascade {
		t.Fatal("direct release flagged as cascade")
	}
	if !obs.events[3].Cascade || obs.events[3].ID != foo.ID() {
		t.Fatalf("cascaded release event = %+v", obs.events[3])
	}
}
