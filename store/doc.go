// Package store implements a reference-counted cell store: a small heap
// simulator with strong and weak handles and deterministic finalization.
//
// # Object Lifecycle
//
//	Allocate     - strong=1, weak=0, live
//	CopyStrong   - strong++ (UseAfterFree once strong reached 0)
//	ClearStrong  - strong--; at 0: finalize, release held slots, maybe purge
//	MakeWeak     - weak++ (also valid on finalized records)
//	ClearWeak    - weak--; at 0 on a finalized record: purge
//	Resolve      - weak -> strong upgrade, empty once finalized
//
// A finalizer runs exactly once, when the strong count goes from 1 to 0.
// The record then stays in the store, answering weak lookups, until the last
// weak handle is released. After the purge its identifier is unknown forever:
// slot indices are reused, but under a new generation.
//
// # Slots
//
// Objects hold references to each other through named slots:
//
//	apartment := s.Allocate("Apartment", nil)
//	person := s.Allocate("Person", nil)
//
//	// person.apartment = apartment (strong)
//	ref, _ := s.CopyStrong(apartment)
//	s.Assign(person, "apartment", ref)
//
//	// apartment.tenant = person (weak)
//	w, _ := s.MakeWeak(person)
//	s.AssignWeak(apartment, "tenant", w)
//
// Assign moves the handle into the slot. Overwriting or unassigning a slot
// releases what it held. Finalizing an object releases every slot it holds,
// in assignment order, depth first.
//
// # Retain Cycles
//
// Objects holding strong slots to each other never reach strong count zero
// once their external handles are cleared, so their finalizers never run. The
// store reproduces this leak and does not collect it. Leaks reports the
// affected objects:
//
//	for _, info := range s.Leaks() {
//	    log.Printf("leaked %s (%s), strong=%d", info.Label, info.ID, info.Strong)
//	}
//
// # Observers
//
// Register observers to follow lifecycle events:
//
//	s.Subscribe(store.NewLogObserver(logger))
//
// # Thread Safety
//
// Store is NOT safe for concurrent use. Finalizers and observers run
// synchronously inside the operation that triggered them and may call back
// into the store.
package store
