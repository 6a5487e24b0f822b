// Package negotiate implements the VLAN negotiation algorithm (spec.md
// §4.5): for every hop that imports VLANs from an upstream hop, it
// recomputes the request-side suggested/available ranges from the
// upstream manifest, decides whether a prior local manifest is still
// valid, and reports whether the owning aggregate must tear down and
// redo its reservation.
package negotiate

import (
	"github.com/exoplex/stitchcore/internal/stitcherr"
	"github.com/exoplex/stitchcore/internal/stitching"
)

// Result is the outcome of negotiating every hop owned by one aggregate.
type Result struct {
	// MustDelete is true when at least one hop's negotiated state
	// invalidates the aggregate's current manifest; the caller must run
	// deleteReservation before re-allocating.
	MustDelete bool
	// AlreadyDone is true when every owned hop is individually satisfied
	// by its current manifest and the aggregate already has one — no RPC
	// is needed at all.
	AlreadyDone bool
}

// Aggregate negotiates every hop owned by agg, mutating each hop's
// request-side VLAN fields in place. It returns as soon as a hop fails
// negotiation.
func Aggregate(w *stitching.World, agg *stitching.Aggregate) (Result, error) {
	hadManifest := agg.ManifestDom != nil

	satisfiedCount := 0
	mustDelete := false

	for _, ref := range agg.Hops {
		hop := w.ResolveHop(ref)
		if hop == nil {
			continue
		}

		if !hop.ImportVlans {
			// User-supplied request fields stand; this hop is never the
			// cause of a forced redo on its own.
			satisfiedCount++
			continue
		}

		satisfied, del, err := Hop(w, hop)
		if err != nil {
			return Result{}, err
		}
		if del {
			mustDelete = true
		}
		if satisfied {
			satisfiedCount++
		}
	}

	alreadyDone := hadManifest && !mustDelete && satisfiedCount == len(agg.Hops)
	return Result{MustDelete: mustDelete, AlreadyDone: alreadyDone}, nil
}

// Hop negotiates a single importing hop, returning whether it is already
// satisfied by its current request/manifest state and whether the
// negotiated state forces the owning aggregate to redo its reservation.
// A hop that fails with NoFeasibleVLAN because its suggestion is excluded
// or its available range is exhausted is flagged ExcludeFromSCS.
func Hop(w *stitching.World, hop *stitching.Hop) (satisfied bool, mustDelete bool, err error) {
	upstream := w.ResolveHop(*hop.ImportVlansFrom)
	if upstream == nil || upstream.Link == nil {
		return false, false, stitcherr.NewNoFeasibleVLANError(hop.ID, "upstream hop not resolvable")
	}

	newSuggested := hop.Link.VlanSuggestedRequest
	if upstream.Link.VlanSuggestedManifest != nil {
		newSuggested = *upstream.Link.VlanSuggestedManifest
	}

	newAvail := hop.Link.VlanRangeRequest
	if upstream.Link.VlanRangeManifest != nil {
		newAvail = upstream.Link.VlanRangeManifest.Intersect(hop.Link.VlanRangeRequest)
	}
	newAvail = newAvail.Diff(hop.VlansUnavailable)

	if newSuggested.IsSubsetOf(hop.VlansUnavailable) && !newSuggested.IsEmpty() {
		hop.ExcludeFromSCS = true
		return false, false, stitcherr.NewNoFeasibleVLANError(hop.ID, "suggested VLAN previously reported unavailable")
	}
	if newAvail.IsEmpty() {
		hop.ExcludeFromSCS = true
		return false, false, stitcherr.NewNoFeasibleVLANError(hop.ID, "available range exhausted")
	}
	if !newSuggested.IsSubsetOf(newAvail) {
		return false, false, stitcherr.NewInconsistentVLANError(hop.ID)
	}

	oldManifest := hop.Link.VlanSuggestedManifest
	oldRequestSuggested := hop.Link.VlanSuggestedRequest
	oldRequestAvail := hop.Link.VlanRangeRequest

	switch {
	case oldManifest == nil:
		// No manifest at this hop yet: nothing to preserve.
		hop.Link.VlanSuggestedRequest = newSuggested
		hop.Link.VlanRangeRequest = newAvail
		return false, false, nil

	case upstream.Link.HasManifest():
		unchanged := oldRequestSuggested.Equal(newSuggested) && oldRequestAvail.Equal(newAvail)
		if unchanged {
			return true, false, nil
		}
		if oldManifest.Equal(newSuggested) {
			// Our own manifest already matches what upstream now wants;
			// update the bookkeeping fields but the reservation itself
			// stays valid.
			hop.Link.VlanSuggestedRequest = newSuggested
			hop.Link.VlanRangeRequest = newAvail
			return false, false, nil
		}
		hop.Link.VlanSuggestedRequest = newSuggested
		hop.Link.VlanRangeRequest = newAvail
		return false, true, nil

	default:
		hop.Link.VlanSuggestedRequest = newSuggested
		hop.Link.VlanRangeRequest = newAvail
		return false, false, nil
	}
}
