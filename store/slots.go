package store

import (
	"go.uber.org/zap"

	arcerrors "github.com/wippyai/arcstore/errors"
)

// Assign moves h into owner's slot name. The store takes over h: the caller
// must not clear it afterwards. Whatever the slot held before is released,
// which may finalize the previous occupant.
//
// The owner must be live; assigning into a finalized object fails with
// UseAfterFree.
func (s *Store) Assign(owner Ref, name string, h Strong) error {
	target := s.lookup(h.id)
	if target == nil {
		return arcerrors.UnknownHandle(arcerrors.PhaseSlot, uint64(h.id))
	}
	if target.strong == 0 {
		return arcerrors.UseAfterFree(arcerrors.PhaseSlot, uint64(h.id), target.label, "assign")
	}
	return s.assign(owner, SlotRef{Name: name, Target: h.id})
}

// AssignWeak moves w into owner's slot name. The referent may already be
// finalized; the slot then simply resolves to nothing.
func (s *Store) AssignWeak(owner Ref, name string, w Weak) error {
	if s.lookup(w.id) == nil {
		return arcerrors.UnknownHandle(arcerrors.PhaseSlot, uint64(w.id))
	}
	return s.assign(owner, SlotRef{Name: name, Target: w.id, Weak: true})
}

func (s *Store) assign(owner Ref, ref SlotRef) error {
	if ref.Name == "" {
		return arcerrors.InvalidInput(arcerrors.PhaseSlot, "empty slot name")
	}
	oid := owner.ID()
	r := s.lookup(oid)
	if r == nil {
		return arcerrors.UnknownHandle(arcerrors.PhaseSlot, uint64(oid))
	}
	if !r.live {
		return arcerrors.New(arcerrors.PhaseSlot, arcerrors.KindUseAfterFree).
			Handle(uint64(oid), r.label).
			Value(ref.Name).
			Detail("assign %q into finalized object", ref.Name).
			Build()
	}

	prev, replaced := SlotRef{}, false
	for i := range r.slots {
		if r.slots[i].Name == ref.Name {
			prev, replaced = r.slots[i], true
			r.slots[i] = ref
			break
		}
	}
	if !replaced {
		r.slots = append(r.slots, ref)
	}

	s.logger.Debug("assign",
		zap.Stringer("owner", oid),
		zap.String("slot", ref.Name),
		zap.Stringer("target", ref.Target),
		zap.Bool("weak", ref.Weak))

	if replaced {
		s.drop(prev)
	}
	return nil
}

// Unassign releases whatever owner's slot name holds and empties the slot.
// Unassigning an empty slot, or any slot of a finalized owner, does nothing.
func (s *Store) Unassign(owner Ref, name string) error {
	oid := owner.ID()
	r := s.lookup(oid)
	if r == nil {
		return arcerrors.UnknownHandle(arcerrors.PhaseSlot, uint64(oid))
	}
	for i := range r.slots {
		if r.slots[i].Name == name {
			prev := r.slots[i]
			r.slots = append(r.slots[:i], r.slots[i+1:]...)
			s.drop(prev)
			return nil
		}
	}
	return nil
}

func (s *Store) drop(ref SlotRef) {
	if ref.Weak {
		s.releaseWeak(ref.Target, false)
		return
	}
	if r := s.lookup(ref.Target); r == nil || r.strong == 0 {
		return
	}
	s.release(ref.Target)
}

// Slot reports what owner's slot name refers to.
func (s *Store) Slot(owner Ref, name string) (SlotRef, bool, error) {
	oid := owner.ID()
	r := s.lookup(oid)
	if r == nil {
		return SlotRef{}, false, arcerrors.UnknownHandle(arcerrors.PhaseInspect, uint64(oid))
	}
	for _, ref := range r.slots {
		if ref.Name == name {
			return ref, true, nil
		}
	}
	return SlotRef{}, false, nil
}
