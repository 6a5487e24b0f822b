// Package vlanrange implements the VLAN range algebra used throughout the
// stitching reservation engine: a finite set of VLAN tags in [1,4094] with
// union, intersection, difference, membership, and subset operations, plus
// the canonical comma/dash-run serialization the RSpec/manifest documents
// use.
//
// IEEE 802.1Q reserves VLAN IDs 0 and 4095; the valid range for tagged
// traffic is 1-4094, matching the pool bounds the VLAN allocator in the
// corpus this engine is adapted from enforces.
package vlanrange

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/exoplex/stitchcore/internal/stitcherr"
)

const (
	// MinVLAN and MaxVLAN bound the legal VLAN id space.
	MinVLAN = 1
	MaxVLAN = 4094
)

// Range is an immutable-by-convention set of VLAN ids. The zero value is
// the empty set. Callers should treat a Range as copy-on-write: mutating
// methods return a new Range rather than modifying the receiver, mirroring
// the WithX pattern used by the error hierarchy this package is adapted
// alongside.
type Range struct {
	// set holds member ids for O(1) membership/union/intersection. VLAN
	// spaces are small (<=4094) so a set is cheaper to reason about
	// correctly than a run-list, at the cost of a once-per-serialize sort.
	set map[int]struct{}
}

// Empty returns the empty VLAN range.
func Empty() Range {
	return Range{set: map[int]struct{}{}}
}

// Any returns the full [MinVLAN, MaxVLAN] range, the canonical "any".
func Any() Range {
	return FromSlice(fullRange())
}

func fullRange() []int {
	ids := make([]int, 0, MaxVLAN-MinVLAN+1)
	for v := MinVLAN; v <= MaxVLAN; v++ {
		ids = append(ids, v)
	}
	return ids
}

// FromSlice builds a Range from individual VLAN ids, silently ignoring
// duplicates. Out-of-bound ids are dropped; callers that need to reject
// them should use Parse instead.
func FromSlice(ids []int) Range {
	r := Range{set: make(map[int]struct{}, len(ids))}
	for _, id := range ids {
		if id >= MinVLAN && id <= MaxVLAN {
			r.set[id] = struct{}{}
		}
	}
	return r
}

// Single returns a Range containing exactly one VLAN id.
func Single(id int) Range {
	return Range{set: map[int]struct{}{id: {}}}
}

// Parse reads a VLAN range from its wire representation: "any" for the
// full range, or a comma-separated list of integers and dash-ranges
// ("100-103,200"). Out-of-range or malformed tokens produce a ParseError.
func Parse(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "any") {
		return Any(), nil
	}

	r := Empty()
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		lo, hi, err := parseToken(token)
		if err != nil {
			return Range{}, err
		}
		for v := lo; v <= hi; v++ {
			r.set[v] = struct{}{}
		}
	}
	return r, nil
}

func parseToken(token string) (lo, hi int, err error) {
	if dash := strings.IndexByte(token, '-'); dash > 0 {
		lo, err = strconv.Atoi(strings.TrimSpace(token[:dash]))
		if err != nil {
			return 0, 0, stitcherr.NewParseError(token, "invalid range start")
		}
		hi, err = strconv.Atoi(strings.TrimSpace(token[dash+1:]))
		if err != nil {
			return 0, 0, stitcherr.NewParseError(token, "invalid range end")
		}
	} else {
		v, convErr := strconv.Atoi(token)
		if convErr != nil {
			return 0, 0, stitcherr.NewParseError(token, "not an integer")
		}
		lo, hi = v, v
	}
	if lo > hi || lo < MinVLAN || hi > MaxVLAN {
		return 0, 0, stitcherr.NewParseError(token, fmt.Sprintf("must be within %d-%d", MinVLAN, MaxVLAN))
	}
	return lo, hi, nil
}

// String serializes the range to the canonical minimal comma-separated
// list of dash-runs, e.g. "100-103,200". The empty range serializes to "".
func (r Range) String() string {
	if len(r.set) == 0 {
		return ""
	}
	ids := r.sortedIDs()

	var b strings.Builder
	runStart := ids[0]
	prev := ids[0]
	for i := 1; i <= len(ids); i++ {
		if i < len(ids) && ids[i] == prev+1 {
			prev = ids[i]
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if runStart == prev {
			fmt.Fprintf(&b, "%d", runStart)
		} else {
			fmt.Fprintf(&b, "%d-%d", runStart, prev)
		}
		if i < len(ids) {
			runStart = ids[i]
			prev = ids[i]
		}
	}
	return b.String()
}

func (r Range) sortedIDs() []int {
	ids := make([]int, 0, len(r.set))
	for id := range r.set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// IsEmpty reports whether the range has no members.
func (r Range) IsEmpty() bool {
	return len(r.set) == 0
}

// Len returns the number of distinct VLAN ids in the range.
func (r Range) Len() int {
	return len(r.set)
}

// Contains reports whether vlan is a member of the range.
func (r Range) Contains(vlan int) bool {
	_, ok := r.set[vlan]
	return ok
}

// SingleValue returns the lone member of a singleton range, or (0, false) if
// the range doesn't contain exactly one id.
func (r Range) SingleValue() (int, bool) {
	if len(r.set) != 1 {
		return 0, false
	}
	for id := range r.set {
		return id, true
	}
	return 0, false
}

// Union returns the set union of r and other.
func (r Range) Union(other Range) Range {
	out := make(map[int]struct{}, len(r.set)+len(other.set))
	for id := range r.set {
		out[id] = struct{}{}
	}
	for id := range other.set {
		out[id] = struct{}{}
	}
	return Range{set: out}
}

// Intersect returns the set intersection of r and other.
func (r Range) Intersect(other Range) Range {
	small, big := r, other
	if len(other.set) < len(r.set) {
		small, big = other, r
	}
	out := make(map[int]struct{}, len(small.set))
	for id := range small.set {
		if _, ok := big.set[id]; ok {
			out[id] = struct{}{}
		}
	}
	return Range{set: out}
}

// Diff returns r minus other (set difference).
func (r Range) Diff(other Range) Range {
	out := make(map[int]struct{}, len(r.set))
	for id := range r.set {
		if _, ok := other.set[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return Range{set: out}
}

// IsSubsetOf reports whether every member of r is also a member of other.
func (r Range) IsSubsetOf(other Range) bool {
	for id := range r.set {
		if _, ok := other.set[id]; !ok {
			return false
		}
	}
	return true
}

// Equal reports whether r and other contain exactly the same ids.
func (r Range) Equal(other Range) bool {
	if len(r.set) != len(other.set) {
		return false
	}
	return r.IsSubsetOf(other)
}

// Copy returns an independent copy of the range.
func (r Range) Copy() Range {
	out := make(map[int]struct{}, len(r.set))
	for id := range r.set {
		out[id] = struct{}{}
	}
	return Range{set: out}
}
