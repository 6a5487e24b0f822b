// Package dependencies builds the hop-level VLAN import chain and the
// aggregate-level dependsOn graph from a parsed Stitching, and validates
// that the resulting graph is acyclic (spec.md §4.3).
//
// The adjacency-list-plus-in-degree cycle check here is adapted from the
// Kahn's-algorithm layered topological sort the corpus this engine grew
// out of uses for service-instance startup ordering; the same shape (an
// in-degree map that must fully drain) is the simplest way to both detect
// a cycle and, if the caller wants it, produce a parallel-dispatch layer
// order in one pass.
package dependencies

import (
	"github.com/exoplex/stitchcore/internal/stitcherr"
	"github.com/exoplex/stitchcore/internal/stitching"
)

// Build scans every path in the world's RSpec pairwise, wiring up
// Hop.ImportVlans / ImportVlansFrom and Aggregate.DependsOn /
// IsDependencyFor, then verifies the resulting aggregate graph is
// acyclic. It must run once, after document parsing and before
// scheduling begins (spec.md §5).
func Build(w *stitching.World) error {
	if w.RSpec == nil || w.RSpec.Stitching == nil {
		return nil
	}

	for _, path := range w.RSpec.Stitching.Paths {
		wireVLANImportChain(w, path)
	}

	if cyclePath, ok := findCycle(w.Aggregates()); ok {
		return stitcherr.NewCycleError(cyclePath)
	}
	return nil
}

// wireVLANImportChain scans adjacent hop pairs on a path. For each pair
// (A, B) on different aggregates, B imports VLANs from A — unless A
// translates VLAN tags, in which case the chain simply does not cross
// that boundary: B keeps its user-supplied request (spec.md §4.3 Detect
// VLAN-translation, scenario 4). The hop right after a translating hop
// therefore neither imports from it nor makes its aggregate depend on
// the translator's aggregate.
func wireVLANImportChain(w *stitching.World, path *stitching.Path) {
	for i, hop := range path.Hops {
		agg := w.FindOrCreate(hop.AggregateURN)
		agg.AddHop(stitching.HopRef{PathID: path.ID, HopID: hop.ID})
		agg.AddPath(path.ID)

		if i == 0 {
			continue
		}
		prev := path.Hops[i-1]
		if prev.AggregateURN == hop.AggregateURN {
			continue
		}
		if prev.Link != nil && prev.Link.VlanXlate {
			continue
		}

		hop.ImportVlans = true
		ref := stitching.HopRef{PathID: path.ID, HopID: prev.ID}
		hop.ImportVlansFrom = &ref
		hop.Dependencies = append(hop.Dependencies, ref)

		fromAgg := w.FindOrCreate(prev.AggregateURN)
		stitching.AddDependsOn(agg, fromAgg)
	}
}

// findCycle reports whether the dependsOn graph over the given
// aggregates contains a cycle, returning the participating URNs if so.
// Kahn's algorithm: repeatedly remove aggregates with in-degree zero
// (every dependency satisfied); an aggregate that is never removed either
// sits on a cycle or depends, directly or transitively, on one. Every
// such aggregate is reported.
func findCycle(aggregates []*stitching.Aggregate) ([]string, bool) {
	inDegree := make(map[string]int, len(aggregates))
	for _, a := range aggregates {
		inDegree[a.URN] = len(a.DependsOn)
	}

	queue := make([]string, 0, len(aggregates))
	for urn, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, urn)
		}
	}

	byURN := make(map[string]*stitching.Aggregate, len(aggregates))
	for _, a := range aggregates {
		byURN[a.URN] = a
	}

	removed := 0
	for len(queue) > 0 {
		urn := queue[0]
		queue = queue[1:]
		removed++

		for depURN := range byURN[urn].IsDependencyFor {
			inDegree[depURN]--
			if inDegree[depURN] == 0 {
				queue = append(queue, depURN)
			}
		}
	}

	if removed == len(aggregates) {
		return nil, false
	}

	var cycle []string
	for urn, deg := range inDegree {
		if deg > 0 {
			cycle = append(cycle, urn)
		}
	}
	return cycle, true
}
