// Package arcstore is a reference-counted cell store for studying automatic
// reference counting: strong and weak handles, deterministic finalization
// and the retain cycles that come with it.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	arcstore/            Module documentation
//	├── store/           Cell store: handles, counts, slots, finalization, leak graph
//	├── scenario/        YAML scenario harness with built-in ARC walkthroughs
//	├── errors/          Structured error types for debugging
//	├── cmd/arcplay/     Command-line scenario runner with an interactive TUI
//	└── examples/basic/  Person/Apartment walkthrough against the store API
//
// # Quick Start
//
// Allocate objects, link them and drop the external handles:
//
//	s := store.NewWithDefaults()
//
//	person := s.Allocate("Person", func(store.ID) { fmt.Println("Person deinit") })
//	apt := s.Allocate("Apartment", func(store.ID) { fmt.Println("Apartment deinit") })
//
//	ref, _ := s.CopyStrong(apt)
//	s.Assign(person, "apartment", ref)
//	w, _ := s.MakeWeak(person)
//	s.AssignWeak(apt, "tenant", w)
//
//	s.ClearStrong(person) // Person deinit
//	s.ClearStrong(apt)    // Apartment deinit
//
// Making both slots strong leaks the pair instead; store.Store.Leaks lists
// them.
//
// # Scenarios
//
// Scenarios describe a sequence of store operations and the expected
// finalization order:
//
//	name: person-apartment
//	steps:
//	  - {op: allocate, bind: person, label: Person}
//	  - {op: allocate, bind: apartment, label: Apartment}
//	  - {op: assign-weak, owner: apartment, slot: tenant, from: person}
//	  - {op: assign, owner: person, slot: apartment, from: apartment}
//	  - {op: clear, from: person}
//	  - {op: clear, from: apartment}
//	expect:
//	  finalized: [Person, Apartment]
//
// Run them with cmd/arcplay:
//
//	arcplay -list
//	arcplay -scenario person-apartment -v
//	arcplay -scenario retain-cycle -i
//
// # Thread Safety
//
// Store is NOT safe for concurrent use. Finalizers run synchronously inside
// the call that dropped the last strong reference.
package arcstore
