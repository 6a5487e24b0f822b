package stitching

import (
	"sync"

	"github.com/exoplex/stitchcore/internal/xmldom"
)

// Aggregate is a process-wide unique object keyed by URN. Spec.md §3/§9
// calls for interning ("Aggregate.find(urn) returns the canonical
// instance") scoped to a single orchestration run rather than a real
// process-wide global, so ownership lives on a World value instead of a
// package-level map — this is the "encapsulate it in a World value passed
// explicitly through the engine" design note, which also means tests
// never need global teardown between runs.
type Aggregate struct {
	mu sync.RWMutex

	URN          string
	URL          string
	APIVersion   int // 2 or 3
	DCN          bool
	UserRequested bool

	inProcess bool
	completed bool

	// Hops is the set of hops (by weak reference) this aggregate owns.
	Hops []HopRef
	// Paths is the set of path ids this aggregate appears on.
	Paths []string

	DependsOn       map[string]*Aggregate
	IsDependencyFor map[string]*Aggregate

	RequestDom  *xmldom.Element
	ManifestDom *xmldom.Element
}

// InProcess reports whether an allocate() call is currently running for
// this aggregate.
func (a *Aggregate) InProcess() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.inProcess
}

// SetInProcess sets the in-progress flag. Only the aggregate's own
// scheduler task should call this (spec.md §5 exclusive-write
// discipline).
func (a *Aggregate) SetInProcess(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inProcess = v
}

// Completed reports whether this aggregate has a valid manifest for every
// owned hop. Downstream tasks poll this as the only gate for reading this
// aggregate's hop manifests (spec.md §5).
func (a *Aggregate) Completed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.completed
}

// SetCompleted sets the completed flag.
func (a *Aggregate) SetCompleted(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completed = v
}

// Ready reports whether this aggregate may be dispatched by the
// scheduler: not already completed or in progress, and every dependency
// completed (spec.md §4.4).
func (a *Aggregate) Ready() bool {
	if a.Completed() || a.InProcess() {
		return false
	}
	for _, dep := range a.DependsOn {
		if !dep.Completed() {
			return false
		}
	}
	return true
}

// AddHop records that this aggregate owns the hop identified by ref.
func (a *Aggregate) AddHop(ref HopRef) {
	for _, existing := range a.Hops {
		if existing == ref {
			return
		}
	}
	a.Hops = append(a.Hops, ref)
}

// AddPath records that this aggregate appears on pathID.
func (a *Aggregate) AddPath(pathID string) {
	for _, existing := range a.Paths {
		if existing == pathID {
			return
		}
	}
	a.Paths = append(a.Paths, pathID)
}

// World owns the per-run set of interned Aggregates plus the parsed
// RSpec(s) the engine operates over. A World is created fresh for every
// orchestration run; nothing in it is process-global.
type World struct {
	mu         sync.Mutex
	aggregates map[string]*Aggregate
	RSpec      *RSpec
}

// NewWorld returns an empty World.
func NewWorld() *World {
	return &World{aggregates: map[string]*Aggregate{}}
}

// FindOrCreate returns the canonical Aggregate for urn, creating it (with
// empty dependency sets) on first reference. Aggregates persist for the
// lifetime of the World and are never deleted (spec.md §3).
func (w *World) FindOrCreate(urn string) *Aggregate {
	w.mu.Lock()
	defer w.mu.Unlock()
	if a, ok := w.aggregates[urn]; ok {
		return a
	}
	a := &Aggregate{
		URN:             urn,
		DependsOn:       map[string]*Aggregate{},
		IsDependencyFor: map[string]*Aggregate{},
	}
	w.aggregates[urn] = a
	return a
}

// Find returns the Aggregate for urn if it has already been interned.
func (w *World) Find(urn string) (*Aggregate, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.aggregates[urn]
	return a, ok
}

// Aggregates returns every interned aggregate, in no particular order.
func (w *World) Aggregates() []*Aggregate {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Aggregate, 0, len(w.aggregates))
	for _, a := range w.aggregates {
		out = append(out, a)
	}
	return out
}

// ResolveHop dereferences a weak HopRef against the World's RSpec.
func (w *World) ResolveHop(ref HopRef) *Hop {
	if w.RSpec == nil || w.RSpec.Stitching == nil {
		return nil
	}
	path := w.RSpec.Stitching.PathByID(ref.PathID)
	if path == nil {
		return nil
	}
	return path.HopByID(ref.HopID)
}

// AddDependsOn records that aggregate a depends on dependency (a must
// wait for dependency to complete before it can be dispatched).
func AddDependsOn(a, dependency *Aggregate) {
	a.DependsOn[dependency.URN] = dependency
	dependency.IsDependencyFor[a.URN] = a
}

// TransitiveIsDependencyFor returns every aggregate transitively
// dependent on a (used by deleteReservation's ripple-down invalidation,
// spec.md §4.4).
func TransitiveIsDependencyFor(a *Aggregate) []*Aggregate {
	seen := map[string]*Aggregate{}
	var walk func(*Aggregate)
	walk = func(cur *Aggregate) {
		for urn, dep := range cur.IsDependencyFor {
			if _, ok := seen[urn]; ok {
				continue
			}
			seen[urn] = dep
			walk(dep)
		}
	}
	walk(a)
	out := make([]*Aggregate, 0, len(seen))
	for _, dep := range seen {
		out = append(out, dep)
	}
	return out
}
