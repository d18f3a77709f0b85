package store

import (
	"go.uber.org/zap"

	arcerrors "github.com/wippyai/arcstore/errors"
)

// Options configures store behavior.
type Options struct {
	Logger          *zap.Logger
	InitialCapacity int
}

// DefaultOptions returns default store configuration.
func DefaultOptions() Options {
	return Options{
		InitialCapacity: 64,
	}
}

// Store owns every object and its bookkeeping record. Handles are plain
// identifiers indexing into it.
//
// Store is NOT safe for concurrent use. The count update, finalizer call and
// cascade of one operation form a single critical section; callers sharing a
// Store across goroutines must serialize all calls.
type Store struct {
	logger    *zap.Logger
	records   []record
	freeList  []uint32
	observers []Observer
	allocated uint64
	finalized uint64
	purged    uint64
}

type record struct {
	fin     Finalizer
	label   string
	slots   []SlotRef
	strong  int
	weak    int
	gen     uint32
	present bool
	live    bool
	armed   bool
}

// New creates an empty store.
func New(opts Options) *Store {
	l := opts.Logger
	if l == nil {
		l = Logger()
	}
	capacity := opts.InitialCapacity
	if capacity < 0 {
		capacity = 0
	}
	return &Store{
		logger:   l,
		records:  make([]record, 0, capacity),
		freeList: make([]uint32, 0, capacity/4),
	}
}

// NewWithDefaults creates a store with default options.
func NewWithDefaults() *Store {
	return New(DefaultOptions())
}

// lookup returns the record for id, or nil if id was never issued or has
// been purged.
func (s *Store) lookup(id ID) *record {
	idx, ok := id.index()
	if !ok || int(idx) >= len(s.records) {
		return nil
	}
	r := &s.records[idx]
	if !r.present || r.gen != id.generation() {
		return nil
	}
	return r
}

// Allocate creates an object with strong count 1 and returns its first
// strong handle. fin may be nil.
func (s *Store) Allocate(label string, fin Finalizer) Strong {
	rec := record{
		fin:     fin,
		label:   label,
		strong:  1,
		present: true,
		live:    true,
		armed:   true,
	}

	var idx uint32
	if n := len(s.freeList); n > 0 {
		idx = s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		rec.gen = s.records[idx].gen
		s.records[idx] = rec
	} else {
		idx = uint32(len(s.records))
		s.records = append(s.records, rec)
	}

	id := makeID(idx, rec.gen)
	s.allocated++
	s.notify(Event{Type: EventAllocated, ID: id, Label: label, Strong: 1})
	return Strong{id: id}
}

// CopyStrong returns a second strong handle to h's referent.
// Copying a handle whose referent has already been finalized is a caller
// bug and fails with UseAfterFree; the store is left unchanged.
func (s *Store) CopyStrong(h Strong) (Strong, error) {
	r := s.lookup(h.id)
	if r == nil {
		return Strong{}, arcerrors.UnknownHandle(arcerrors.PhaseStrong, uint64(h.id))
	}
	if r.strong == 0 {
		s.logger.Warn("copy of finalized object",
			zap.Stringer("id", h.id),
			zap.String("label", r.label))
		return Strong{}, arcerrors.UseAfterFree(arcerrors.PhaseStrong, uint64(h.id), r.label, "copy")
	}

	r.strong++
	s.notify(Event{Type: EventRetained, ID: h.id, Label: r.label, Strong: r.strong, Weak: r.weak})
	return Strong{id: h.id}, nil
}

// ClearStrong releases h. When the strong count reaches zero the object is
// finalized and every strong handle held in its slots is released in the
// same call, cascading through the graph. Objects in a strong cycle never
// reach zero this way and stay allocated.
//
// Clearing a handle whose referent already has strong count zero fails with
// UseAfterFree and changes nothing.
func (s *Store) ClearStrong(h Strong) error {
	r := s.lookup(h.id)
	if r == nil {
		return arcerrors.UnknownHandle(arcerrors.PhaseStrong, uint64(h.id))
	}
	if r.strong == 0 {
		s.logger.Warn("release of finalized object",
			zap.Stringer("id", h.id),
			zap.String("label", r.label))
		return arcerrors.UseAfterFree(arcerrors.PhaseStrong, uint64(h.id), r.label, "clear")
	}
	s.release(h.id)
	return nil
}

// release decrements root's strong count and walks the resulting cascade
// depth first, children in slot order.
func (s *Store) release(root ID) {
	stack := []ID{root}
	cascade := false
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		r := s.lookup(id)
		if r == nil || r.strong == 0 {
			// Already gone; nothing left to release.
			s.logger.Debug("cascade release skipped", zap.Stringer("id", id))
			cascade = true
			continue
		}

		r.strong--
		if r.strong == 0 {
			// Dead from here on: observers see an object that cannot be
			// resolved or retained again.
			r.live = false
		}
		s.notify(Event{Type: EventReleased, ID: id, Label: r.label, Strong: r.strong, Weak: r.weak, Cascade: cascade})
		cascade = true

		r = s.lookup(id)
		if r == nil || r.strong > 0 {
			continue
		}

		held := s.finalize(id)
		for i := len(held) - 1; i >= 0; i-- {
			if !held[i].Weak {
				stack = append(stack, held[i].Target)
			}
		}
		for _, ref := range held {
			if ref.Weak {
				s.releaseWeak(ref.Target, true)
			}
		}
		s.purgeIfUnreferenced(id)
	}
}

// finalize marks the record dead, runs its finalizer once and detaches the
// references its state held. The caller releases them.
func (s *Store) finalize(id ID) []SlotRef {
	r := s.lookup(id)
	if r == nil || !r.armed {
		return nil
	}

	r.live = false
	held := r.slots
	r.slots = nil
	fin := r.fin
	r.fin = nil
	r.armed = false
	label := r.label
	weak := r.weak

	s.finalized++
	s.logger.Debug("finalize",
		zap.Stringer("id", id),
		zap.String("label", label),
		zap.Int("held", len(held)))

	if fin != nil {
		fin(id)
	}
	s.notify(Event{Type: EventFinalized, ID: id, Label: label, Weak: weak})
	return held
}

// purgeIfUnreferenced removes a finalized record once no weak handles remain.
func (s *Store) purgeIfUnreferenced(id ID) {
	r := s.lookup(id)
	if r == nil || r.live || r.armed || r.strong > 0 || r.weak > 0 {
		return
	}

	idx, _ := id.index()
	label := r.label
	s.records[idx] = record{gen: r.gen + 1}
	s.freeList = append(s.freeList, idx)
	s.purged++

	s.logger.Debug("purge", zap.Stringer("id", id), zap.String("label", label))
	s.notify(Event{Type: EventPurged, ID: id, Label: label})
}

// MakeWeak creates a weak handle to r's referent. It succeeds for finalized
// objects as long as their record has not been purged.
func (s *Store) MakeWeak(ref Ref) (Weak, error) {
	id := ref.ID()
	r := s.lookup(id)
	if r == nil {
		return Weak{}, arcerrors.UnknownHandle(arcerrors.PhaseWeak, uint64(id))
	}
	r.weak++
	s.notify(Event{Type: EventWeakCreated, ID: id, Label: r.label, Strong: r.strong, Weak: r.weak})
	return Weak{id: id}, nil
}

// ClearWeak releases w. The last weak release of a finalized object purges
// its record.
func (s *Store) ClearWeak(w Weak) error {
	if s.lookup(w.id) == nil {
		return arcerrors.UnknownHandle(arcerrors.PhaseWeak, uint64(w.id))
	}
	s.releaseWeak(w.id, false)
	return nil
}

func (s *Store) releaseWeak(id ID, cascade bool) {
	r := s.lookup(id)
	if r == nil {
		return
	}
	if r.weak == 0 {
		s.logger.Warn("weak release without outstanding weak handles",
			zap.Stringer("id", id),
			zap.String("label", r.label))
		return
	}
	r.weak--
	s.notify(Event{Type: EventWeakReleased, ID: id, Label: r.label, Strong: r.strong, Weak: r.weak, Cascade: cascade})
	s.purgeIfUnreferenced(id)
}

// Resolve upgrades w to a new strong handle if the referent is still live.
// ok is false once the object has been finalized.
func (s *Store) Resolve(w Weak) (h Strong, ok bool, err error) {
	r := s.lookup(w.id)
	if r == nil {
		return Strong{}, false, arcerrors.UnknownHandle(arcerrors.PhaseWeak, uint64(w.id))
	}
	if !r.live {
		return Strong{}, false, nil
	}
	r.strong++
	s.notify(Event{Type: EventResolved, ID: w.id, Label: r.label, Strong: r.strong, Weak: r.weak})
	return Strong{id: w.id}, true, nil
}

// Subscribe adds an observer for lifecycle events.
func (s *Store) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

// Unsubscribe removes an observer. It is safe to call from inside
// OnStoreEvent; the event in flight still reaches every other observer.
func (s *Store) Unsubscribe(o Observer) {
	for i, obs := range s.observers {
		if obs == o {
			next := make([]Observer, 0, len(s.observers)-1)
			next = append(next, s.observers[:i]...)
			s.observers = append(next, s.observers[i+1:]...)
			return
		}
	}
}

func (s *Store) notify(e Event) {
	for _, o := range s.observers {
		o.OnStoreEvent(e)
	}
}
