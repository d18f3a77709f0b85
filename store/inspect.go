package store

import (
	arcerrors "github.com/wippyai/arcstore/errors"
)

// Info returns a snapshot of ref's record.
func (s *Store) Info(ref Ref) (Info, error) {
	id := ref.ID()
	r := s.lookup(id)
	if r == nil {
		return Info{}, arcerrors.UnknownHandle(arcerrors.PhaseInspect, uint64(id))
	}
	return r.info(id), nil
}

func (r *record) info(id ID) Info {
	var slots []SlotRef
	if len(r.slots) > 0 {
		slots = make([]SlotRef, len(r.slots))
		copy(slots, r.slots)
	}
	return Info{
		ID:     id,
		Label:  r.label,
		Strong: r.strong,
		Weak:   r.weak,
		Live:   r.live,
		Slots:  slots,
	}
}

// Contains reports whether ref's record is still present (live or awaiting
// purge).
func (s *Store) Contains(ref Ref) bool {
	return s.lookup(ref.ID()) != nil
}

// Len returns the number of records present, finalized ones included.
func (s *Store) Len() int {
	count := 0
	for i := range s.records {
		if s.records[i].present {
			count++
		}
	}
	return count
}

// Stats returns activity counters.
func (s *Store) Stats() Stats {
	st := Stats{
		Allocated: s.allocated,
		Finalized: s.finalized,
		Purged:    s.purged,
	}
	for i := range s.records {
		r := &s.records[i]
		if !r.present {
			continue
		}
		if r.live {
			st.Live++
		} else {
			st.Zombies++
		}
	}
	return st
}

// Each iterates over present records in slot order.
func (s *Store) Each(fn func(Info) bool) {
	for i := range s.records {
		r := &s.records[i]
		if !r.present {
			continue
		}
		if !fn(r.info(makeID(uint32(i), r.gen))) {
			return
		}
	}
}
