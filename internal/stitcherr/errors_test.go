package stitcherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStitchError_Is_ComparesByCode(t *testing.T) {
	a := NewCycleError([]string{"urn:AM-A"})

	sameCode := &StitchError{Code: CodeCycleDetected}
	assert.True(t, errors.Is(a, sameCode), "errors sharing a code compare equal regardless of context")

	differentCode := &StitchError{Code: CodeNoFeasibleVLAN}
	assert.False(t, errors.Is(a, differentCode))
}

func TestStitchError_Unwrap_ExposesCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	se := newBase(CodeParseError, CategoryValidation, "wrapped", false)
	se.Cause = cause
	assert.ErrorIs(t, se, cause)
}

func TestWithContext_DoesNotMutateOriginal(t *testing.T) {
	base := NewNoFeasibleVLANError("H1", "exhausted")
	withExtra := base.WithContext("attempt", 3)

	assert.NotContains(t, base.Context, "attempt")
	assert.Equal(t, 3, withExtra.Context["attempt"])
}

func TestGetStitchError_ExtractsFromChain(t *testing.T) {
	cyc := NewCycleError([]string{"urn:AM-A", "urn:AM-B"})
	wrapped := fmt.Errorf("run failed: %w", cyc)

	se := GetStitchError(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, CodeCycleDetected, se.Code)

	assert.Nil(t, GetStitchError(fmt.Errorf("unrelated")))
}

func TestIsRecoverable_BusyAndVLANUnavailableOnly(t *testing.T) {
	assert.True(t, IsRecoverable(NewRPCError(RPCBusy, "urn:AM-A", "busy")))
	assert.True(t, IsRecoverable(NewRPCError(RPCVLANUnavailable, "urn:AM-A", "vlan gone")))
	assert.False(t, IsRecoverable(NewRPCError(RPCAuthError, "urn:AM-A", "denied")))
	assert.False(t, IsRecoverable(NewCycleError([]string{"urn:AM-A"})))
}

func TestRPCError_WithOffendingVLAN_CopyOnWrite(t *testing.T) {
	base := NewRPCError(RPCVLANUnavailable, "urn:AM-A", "vlan 102 rejected")
	tagged := base.WithOffendingVLAN(102)

	assert.Equal(t, 0, base.OffendingVLAN)
	assert.Equal(t, 102, tagged.OffendingVLAN)

	var rpc *RPCError
	require.ErrorAs(t, error(tagged), &rpc)
	assert.Equal(t, RPCVLANUnavailable, rpc.Kind)
}

func TestNewRPCError_CodeByKind(t *testing.T) {
	cases := map[RPCErrorKind]string{
		RPCBusy:            CodeRPCBusy,
		RPCVLANUnavailable: CodeRPCVLANUnavailable,
		RPCAuthError:       CodeRPCAuthError,
		RPCTimeout:         CodeRPCTimeout,
		RPCMalformed:       CodeRPCMalformed,
		RPCOther:           CodeRPCOther,
	}
	for kind, code := range cases {
		err := NewRPCError(kind, "urn:AM-A", "x")
		assert.Equal(t, code, err.Code, "kind %s", kind)
	}
}

func TestManifestMalformedError_CarriesMissingPath(t *testing.T) {
	err := NewManifestMalformedError("urn:AM-A", "H1", "switchingCapabilityDescriptor")
	assert.Equal(t, "switchingCapabilityDescriptor", err.MissingPath)
	assert.Equal(t, "H1", err.HopID)

	var malformed *ManifestMalformedError
	require.ErrorAs(t, error(err), &malformed)
}
