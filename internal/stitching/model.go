// Package stitching holds the core data model of the reservation engine:
// HopLinks, Hops, Paths, the Stitching collection, the main-body Node/Link
// entities, the RSpec root, and the process-wide Aggregate registry
// (World). See spec.md §3 for the invariants these types must uphold.
package stitching

import (
	"fmt"
	"time"

	"github.com/exoplex/stitchcore/internal/vlanrange"
	"github.com/exoplex/stitchcore/internal/xmldom"
)

// HopLink is one endpoint of a stitched edge, identified by a URN. It
// holds the VLAN ranges we request next and, once an AM has confirmed a
// reservation, the VLAN ranges it manifested.
type HopLink struct {
	URN string

	// VlanXlate is true when the owning AM translates VLAN tags at this
	// endpoint; a translating hop breaks VLAN import to downstream hops
	// (spec.md §4.3).
	VlanXlate bool

	VlanRangeRequest      vlanrange.Range
	VlanSuggestedRequest  vlanrange.Range

	// VlanRangeManifest and VlanSuggestedManifest are nil until a
	// reservation at this hop's aggregate succeeds.
	VlanRangeManifest     *vlanrange.Range
	VlanSuggestedManifest *vlanrange.Range
}

// HasManifest reports whether the AM has confirmed a VLAN for this hop
// link.
func (hl *HopLink) HasManifest() bool {
	return hl.VlanSuggestedManifest != nil
}

// ClearManifest resets the manifested VLAN fields, used when a
// reservation is torn down (spec.md §4.4 deleteReservation).
func (hl *HopLink) ClearManifest() {
	hl.VlanRangeManifest = nil
	hl.VlanSuggestedManifest = nil
}

// HopRef is a weak reference to a Hop: a path id plus a path-local hop
// id. Hops are exclusively owned by their Path (spec.md §3); every
// cross-hop pointer in this model is a HopRef resolved through a Path or
// World lookup rather than a strong pointer, so the ownership graph stays
// acyclic (spec.md §9 Design Notes).
type HopRef struct {
	PathID string
	HopID  string
}

// Hop is a path-specific reference to one HopLink: one AM's contribution
// to a path.
type Hop struct {
	ID   string // path-local
	Idx  int    // ordinal on the path
	Link *HopLink

	PathID       string
	AggregateURN string

	// NextHop is nil at the last hop on a path, otherwise a weak
	// reference to hops[idx+1].
	NextHop *HopRef

	Loose          bool // SCS directive
	ExcludeFromSCS bool

	ImportVlans     bool
	ImportVlansFrom *HopRef

	Dependencies []HopRef

	// VlansUnavailable accumulates tags known to fail at this hop across
	// retries (spec.md §3, §4.5).
	VlansUnavailable vlanrange.Range
}

// NewHop constructs a Hop with its VlansUnavailable initialized empty.
func NewHop(id string, idx int, link *HopLink) *Hop {
	return &Hop{
		ID:               id,
		Idx:              idx,
		Link:             link,
		VlansUnavailable: vlanrange.Empty(),
	}
}

// Path is an ordered chain of Hops sharing an id.
type Path struct {
	ID   string
	Hops []*Hop
}

// HopByID returns the hop with the given path-local id, or nil.
func (p *Path) HopByID(id string) *Hop {
	for _, h := range p.Hops {
		if h.ID == id {
			return h
		}
	}
	return nil
}

// Aggregates returns the set of aggregate URNs appearing in the chain, in
// first-seen order.
func (p *Path) Aggregates() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, h := range p.Hops {
		if _, ok := seen[h.AggregateURN]; ok {
			continue
		}
		seen[h.AggregateURN] = struct{}{}
		out = append(out, h.AggregateURN)
	}
	return out
}

// Validate checks the Path invariant from spec.md §3: hops[i].next_hop is
// hops[i+1] or nil at the last index, and hops[i].idx == i.
func (p *Path) Validate() error {
	for i, h := range p.Hops {
		if h.Idx != i {
			return invariantErrorf("hop %s has idx %d, expected %d", h.ID, h.Idx, i)
		}
		if i == len(p.Hops)-1 {
			if h.NextHop != nil {
				return invariantErrorf("last hop %s must have nil next_hop", h.ID)
			}
			continue
		}
		want := p.Hops[i+1]
		if h.NextHop == nil || h.NextHop.HopID != want.ID || h.NextHop.PathID != p.ID {
			return invariantErrorf("hop %s next_hop must reference %s", h.ID, want.ID)
		}
	}
	return nil
}

// Stitching is the collection of Paths plus a last-update timestamp.
type Stitching struct {
	Paths      []*Path
	LastUpdate time.Time
}

// PathByID returns the path with the given id, or nil.
func (s *Stitching) PathByID(id string) *Path {
	for _, p := range s.Paths {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Node is a main-body (non-stitching) node: carries a client id and the
// aggregate it is associated with.
type Node struct {
	ClientID     string
	AggregateURN string
}

// InterfaceRef references an interface on a main-body Link by client id.
type InterfaceRef struct {
	ClientID string
}

// Link is a main-body (non-stitching) link.
type Link struct {
	ClientID      string
	AggregateURNs []string
	InterfaceRefs []InterfaceRef
	SharedVlan    bool
}

// RSpec is the root entity: the stitching collection, main-body nodes and
// links, the original parsed document, and the set of AM URNs touched.
type RSpec struct {
	Stitching *Stitching
	Nodes     []*Node
	Links     []*Link
	Dom       *xmldom.Element
	AMURNs    map[string]struct{}
}

// NewRSpec returns an RSpec with empty collections ready to be populated
// by the document binder.
func NewRSpec() *RSpec {
	return &RSpec{
		Stitching: &Stitching{},
		AMURNs:    map[string]struct{}{},
	}
}

func invariantErrorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
