// Package rspecdoc is the document binder (spec.md §4.2): it reads a
// request document's stitching/path/hop/link subtree into the stitching
// model, writes model-side VLAN edits back into per-AM request
// documents, and parses manifest documents for produced VLAN tags.
//
// Byte-level document serialization is out of scope (spec.md §1(c)); this
// package only reads and writes the specific attributes spec.md §6 names.
package rspecdoc

import (
	"strings"

	"github.com/exoplex/stitchcore/internal/stitcherr"
	"github.com/exoplex/stitchcore/internal/stitching"
	"github.com/exoplex/stitchcore/internal/vlanrange"
	"github.com/exoplex/stitchcore/internal/xmldom"
)

const (
	tagRSpec          = "rspec"
	tagStitching      = "stitching"
	tagPath           = "path"
	tagHop            = "hop"
	tagNextHop        = "nextHop"
	tagLink           = "link"
	tagSwitchingDesc  = "switchingCapabilityDescriptor"
	tagSwitchingInfo  = "switchingCapabilitySpecificInfo"
	tagL2sc           = "switchingCapabilitySpecificInfo_L2sc"
	tagVlanXlate      = "vlanTranslation"
	tagVlanAvail      = "vlanRangeAvailability"
	tagVlanSuggested  = "suggestedVLANRange"
	attrID            = "id"
	attrType          = "type"
	attrComponentMgr  = "component_manager_id"
	typeLoose         = "loose"
)

// Read locates the <stitching> element under root and populates a fresh
// stitching.RSpec's Stitching.Paths from it. The original document is
// retained on RSpec.Dom for later round-tripping.
func Read(root *xmldom.Element) (*stitching.RSpec, error) {
	rspec := stitching.NewRSpec()
	rspec.Dom = root

	stitchingEl := findStitching(root)
	if stitchingEl == nil {
		// A request with no stitched links at all is legal; Stitching
		// just has no paths.
		return rspec, nil
	}

	for _, pathEl := range stitchingEl.ChildrenNamed(tagPath) {
		path, err := readPath(pathEl)
		if err != nil {
			return nil, err
		}
		rspec.Stitching.Paths = append(rspec.Stitching.Paths, path)
		for _, urn := range path.Aggregates() {
			rspec.AMURNs[urn] = struct{}{}
		}
	}
	return rspec, nil
}

func findStitching(root *xmldom.Element) *xmldom.Element {
	if root.Name == tagStitching {
		return root
	}
	return root.Child(tagStitching)
}

func readPath(pathEl *xmldom.Element) (*stitching.Path, error) {
	path := &stitching.Path{ID: pathEl.Attr(attrID)}

	hopEls := pathEl.ChildrenNamed(tagHop)
	nextHopIDs := make([]string, len(hopEls))

	for i, hopEl := range hopEls {
		hop, nextID, err := readHop(hopEl, path.ID, i)
		if err != nil {
			return nil, err
		}
		path.Hops = append(path.Hops, hop)
		nextHopIDs[i] = nextID
	}

	// next_hop is a weak reference resolved only after every hop on the
	// path has been parsed (spec.md §3).
	for i, hop := range path.Hops {
		if nextHopIDs[i] == "" {
			continue
		}
		if target := path.HopByID(nextHopIDs[i]); target != nil {
			ref := stitching.HopRef{PathID: path.ID, HopID: target.ID}
			hop.NextHop = &ref
		}
	}

	return path, nil
}

func readHop(hopEl *xmldom.Element, pathID string, idx int) (*stitching.Hop, string, error) {
	linkEl := hopEl.Child(tagLink)
	link := &stitching.HopLink{URN: linkEl.Attr(attrID)}

	l2scEl := linkEl.Child(tagSwitchingDesc).Child(tagSwitchingInfo).Child(tagL2sc)

	vlanXlateText := l2scEl.TextOrDefault(tagVlanXlate, "false")
	link.VlanXlate = vlanXlateText == "true" || vlanXlateText == "1"

	avail, err := vlanrange.Parse(l2scEl.TextOrDefault(tagVlanAvail, "any"))
	if err != nil {
		return nil, "", err
	}
	link.VlanRangeRequest = avail

	suggested, err := vlanrange.Parse(l2scEl.TextOrDefault(tagVlanSuggested, "any"))
	if err != nil {
		return nil, "", err
	}
	link.VlanSuggestedRequest = suggested

	hop := stitching.NewHop(hopEl.Attr(attrID), idx, link)
	hop.PathID = pathID
	hop.Loose = hopEl.Attr(attrType) == typeLoose
	// component_manager_id carries the owning AM's URN. Reading it off
	// <hop> is this module's own convention, borrowed from the node schema
	// fragment's component_manager_id attribute (spec.md §6); see
	// DESIGN.md.
	hop.AggregateURN = hopEl.Attr(attrComponentMgr)

	nextID := ""
	if nh := hopEl.Child(tagNextHop); nh != nil {
		nextID = nh.Attr(attrID)
	}
	return hop, nextID, nil
}

// Write clones the original document and overwrites, for every hop owned
// by agg, the request-side VLAN fields and loose flag from the model
// (spec.md §4.2 Write). Callers pass in the original document (typically
// RSpec.Dom) rather than relying on Write to mutate shared state, per the
// "build from the model each time" design note (spec.md §9).
func Write(w *stitching.World, agg *stitching.Aggregate, original *xmldom.Element) (*xmldom.Element, error) {
	doc := original.Clone()
	stitchingEl := findStitching(doc)
	if stitchingEl == nil {
		return doc, nil
	}

	owned := make(map[stitching.HopRef]struct{}, len(agg.Hops))
	for _, ref := range agg.Hops {
		owned[ref] = struct{}{}
	}

	for _, pathEl := range stitchingEl.ChildrenNamed(tagPath) {
		pathID := pathEl.Attr(attrID)
		for _, hopEl := range pathEl.ChildrenNamed(tagHop) {
			ref := stitching.HopRef{PathID: pathID, HopID: hopEl.Attr(attrID)}
			if _, ok := owned[ref]; !ok {
				continue
			}
			hop := w.ResolveHop(ref)
			if hop == nil {
				continue
			}
			writeHop(hopEl, hop)
		}
	}
	return doc, nil
}

func writeHop(hopEl *xmldom.Element, hop *stitching.Hop) {
	if hop.Loose {
		hopEl.SetAttr(attrType, typeLoose)
	}
	if hop.AggregateURN != "" {
		hopEl.SetAttr(attrComponentMgr, hop.AggregateURN)
	}

	linkEl := hopEl.EnsureChild(tagLink)
	linkEl.SetAttr(attrID, hop.Link.URN)

	l2scEl := linkEl.EnsureChild(tagSwitchingDesc).EnsureChild(tagSwitchingInfo).EnsureChild(tagL2sc)
	l2scEl.SetText(tagVlanAvail, hop.Link.VlanRangeRequest.String())
	l2scEl.SetText(tagVlanSuggested, hop.Link.VlanSuggestedRequest.String())
}

// ParseManifest descends rspec -> stitching -> path -> hop[id] -> link ->
// switchingCapabilityDescriptor -> switchingCapabilitySpecificInfo ->
// switchingCapabilitySpecificInfo_L2sc, returning the manifested
// available and suggested VLAN ranges. Any missing step on the way fails
// with ManifestMalformed (spec.md §4.2 Manifest parse).
func ParseManifest(manifestRoot *xmldom.Element, pathID, hopID string) (avail, suggested vlanrange.Range, err error) {
	stitchingEl := findStitching(manifestRoot)
	if stitchingEl == nil {
		return vlanrange.Range{}, vlanrange.Range{}, stitcherr.NewManifestMalformedError("", hopID, "stitching")
	}

	pathEl := stitchingEl.ChildWithAttr(tagPath, attrID, pathID)
	if pathEl == nil {
		return vlanrange.Range{}, vlanrange.Range{}, stitcherr.NewManifestMalformedError("", hopID, "path")
	}

	hopEl := pathEl.ChildWithAttr(tagHop, attrID, hopID)
	if hopEl == nil {
		return vlanrange.Range{}, vlanrange.Range{}, stitcherr.NewManifestMalformedError("", hopID, "hop")
	}

	linkEl := hopEl.Child(tagLink)
	if linkEl == nil {
		return vlanrange.Range{}, vlanrange.Range{}, stitcherr.NewManifestMalformedError("", hopID, "link")
	}

	descEl := linkEl.Child(tagSwitchingDesc)
	if descEl == nil {
		return vlanrange.Range{}, vlanrange.Range{}, stitcherr.NewManifestMalformedError("", hopID, tagSwitchingDesc)
	}
	infoEl := descEl.Child(tagSwitchingInfo)
	if infoEl == nil {
		return vlanrange.Range{}, vlanrange.Range{}, stitcherr.NewManifestMalformedError("", hopID, tagSwitchingInfo)
	}
	l2scEl := infoEl.Child(tagL2sc)
	if l2scEl == nil {
		return vlanrange.Range{}, vlanrange.Range{}, stitcherr.NewManifestMalformedError("", hopID, tagL2sc)
	}

	avail, err = vlanrange.Parse(l2scEl.TextOrDefault(tagVlanAvail, "any"))
	if err != nil {
		return vlanrange.Range{}, vlanrange.Range{}, err
	}

	// "null"/"None" are ambiguous-suggestion sentinels some AMs return
	// instead of omitting the element; the engine treats them as a
	// manifest-invalid empty suggestion rather than a parse failure, the
	// way it treats "any" as invalid-by-being-non-singleton (spec.md §4.4
	// step 5).
	suggestedText := strings.TrimSpace(l2scEl.TextOrDefault(tagVlanSuggested, "any"))
	if strings.EqualFold(suggestedText, "null") || strings.EqualFold(suggestedText, "none") {
		return avail, vlanrange.Empty(), nil
	}

	suggested, err = vlanrange.Parse(suggestedText)
	if err != nil {
		return vlanrange.Range{}, vlanrange.Range{}, err
	}
	return avail, suggested, nil
}
