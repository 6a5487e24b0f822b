package stitcherr

import "fmt"

// CycleError reports a cycle in the aggregate dependsOn graph. Per spec it
// must list every participating aggregate URN.
type CycleError struct {
	*StitchError
	URNs []string
}

func NewCycleError(urns []string) *CycleError {
	return &CycleError{
		StitchError: newBase(CodeCycleDetected, CategoryTopology,
			fmt.Sprintf("dependency cycle among aggregates: %v", urns), false),
		URNs: urns,
	}
}

// ManifestMalformedError reports that a manifest document is missing a
// required element on the path rspec -> stitching -> path -> hop -> link ->
// switchingCapabilityDescriptor -> switchingCapabilitySpecificInfo -> L2sc.
type ManifestMalformedError struct {
	*StitchError
	AggregateURN string
	HopID        string
	MissingPath  string
}

func NewManifestMalformedError(aggregateURN, hopID, missingPath string) *ManifestMalformedError {
	e := &ManifestMalformedError{
		StitchError: newBase(CodeManifestMalformed, CategoryManifest,
			fmt.Sprintf("manifest missing %s for hop %s", missingPath, hopID), false),
		AggregateURN: aggregateURN,
		HopID:        hopID,
		MissingPath:  missingPath,
	}
	e.Context["aggregateURN"] = aggregateURN
	e.Context["hopID"] = hopID
	e.Context["missingPath"] = missingPath
	return e
}

// ManifestInvalidError reports a manifest that parsed but violates the
// contract: empty/ambiguous suggested VLAN ("null"/"None"/"any"), or an
// empty available range.
type ManifestInvalidError struct {
	*StitchError
	AggregateURN string
	HopID        string
}

func NewManifestInvalidError(aggregateURN, hopID, reason string) *ManifestInvalidError {
	e := &ManifestInvalidError{
		StitchError: newBase(CodeManifestInvalid, CategoryManifest,
			fmt.Sprintf("invalid manifest for hop %s: %s", hopID, reason), false),
		AggregateURN: aggregateURN,
		HopID:        hopID,
	}
	e.Context["aggregateURN"] = aggregateURN
	e.Context["hopID"] = hopID
	return e
}

// VLANMismatchError reports that the AM's manifested suggested VLAN is not
// a subset of what was requested.
type VLANMismatchError struct {
	*StitchError
	AggregateURN string
	HopID        string
	Requested    string
	Manifested   string
}

func NewVLANMismatchError(aggregateURN, hopID, requested, manifested string) *VLANMismatchError {
	e := &VLANMismatchError{
		StitchError: newBase(CodeVLANMismatch, CategoryVLAN,
			fmt.Sprintf("manifested VLAN %s for hop %s not a subset of requested %s", manifested, hopID, requested), false),
		AggregateURN: aggregateURN,
		HopID:        hopID,
		Requested:    requested,
		Manifested:   manifested,
	}
	e.Context["aggregateURN"] = aggregateURN
	e.Context["hopID"] = hopID
	return e
}

// NoFeasibleVLANError reports that VLAN negotiation found no legal value
// for a hop: either the inherited suggestion is entirely excluded, or the
// available range became empty once local exclusions were subtracted.
type NoFeasibleVLANError struct {
	*StitchError
	HopID string
}

func NewNoFeasibleVLANError(hopID, reason string) *NoFeasibleVLANError {
	e := &NoFeasibleVLANError{
		StitchError: newBase(CodeNoFeasibleVLAN, CategoryVLAN,
			fmt.Sprintf("no feasible VLAN for hop %s: %s", hopID, reason), true),
		HopID: hopID,
	}
	e.Context["hopID"] = hopID
	return e
}

// InconsistentVLANError reports that the negotiated suggested VLAN is not
// contained in the negotiated available range for a hop.
type InconsistentVLANError struct {
	*StitchError
	HopID string
}

func NewInconsistentVLANError(hopID string) *InconsistentVLANError {
	e := &InconsistentVLANError{
		StitchError: newBase(CodeInconsistentVLAN, CategoryVLAN,
			fmt.Sprintf("suggested VLAN not contained in available range for hop %s", hopID), false),
		HopID: hopID,
	}
	e.Context["hopID"] = hopID
	return e
}

// RPCErrorKind classifies a failure returned by the AM client facade.
type RPCErrorKind string

const (
	RPCBusy           RPCErrorKind = "busy"
	RPCVLANUnavailable RPCErrorKind = "vlan_unavailable"
	RPCAuthError      RPCErrorKind = "auth_error"
	RPCTimeout        RPCErrorKind = "timeout"
	RPCMalformed      RPCErrorKind = "malformed"
	RPCOther          RPCErrorKind = "other"
)

// RPCError wraps a failure from the AM client facade, classified per
// spec.md §4.6/§7.
type RPCError struct {
	*StitchError
	Kind           RPCErrorKind
	AggregateURN   string
	OffendingVLAN  int // only set when Kind == RPCVLANUnavailable
}

func rpcCode(kind RPCErrorKind) string {
	switch kind {
	case RPCBusy:
		return CodeRPCBusy
	case RPCVLANUnavailable:
		return CodeRPCVLANUnavailable
	case RPCAuthError:
		return CodeRPCAuthError
	case RPCTimeout:
		return CodeRPCTimeout
	case RPCMalformed:
		return CodeRPCMalformed
	default:
		return CodeRPCOther
	}
}

// NewRPCError builds an RPCError. Busy and VLANUnavailable are recoverable
// by the scheduler (retry / reroute); everything else is fatal.
func NewRPCError(kind RPCErrorKind, aggregateURN, message string) *RPCError {
	recoverable := kind == RPCBusy || kind == RPCVLANUnavailable
	e := &RPCError{
		StitchError:  newBase(rpcCode(kind), CategoryRPC, message, recoverable),
		Kind:         kind,
		AggregateURN: aggregateURN,
	}
	e.Context["aggregateURN"] = aggregateURN
	e.Context["kind"] = string(kind)
	return e
}

// WithOffendingVLAN records the VLAN tag an AM rejected.
func (e *RPCError) WithOffendingVLAN(vlan int) *RPCError {
	cp := *e
	cp.OffendingVLAN = vlan
	cp.Context = copyContext(e.Context)
	cp.Context["offendingVLAN"] = vlan
	return &cp
}

// ParseError reports a malformed VLANRange string or request document
// fragment.
type ParseError struct {
	*StitchError
	Input string
}

func NewParseError(input, reason string) *ParseError {
	e := &ParseError{
		StitchError: newBase(CodeParseError, CategoryValidation,
			fmt.Sprintf("cannot parse %q: %s", input, reason), false),
		Input: input,
	}
	e.Context["input"] = input
	return e
}

// InvariantError is the umbrella for engine-internal invariant violations
// (spec.md §7 StitchingError) — e.g. a scheduler that stalls with
// aggregates still pending, or a DCN sliver that reports failed.
type InvariantError struct {
	*StitchError
	AggregateURN string
}

func NewInvariantError(aggregateURN, message string) *InvariantError {
	e := &InvariantError{
		StitchError:  newBase(CodeInvariantViolation, CategoryScheduler, message, false),
		AggregateURN: aggregateURN,
	}
	e.Context["aggregateURN"] = aggregateURN
	return e
}
