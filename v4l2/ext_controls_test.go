package v4l2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNormalizeLegacyControlZeroExtendsBitmask pins down S4: a legacy
// BITMASK control with a high bit set in its 32-bit maximum/default must
// widen to a positive int64, not a sign-extended negative one.
func TestNormalizeLegacyControlZeroExtendsBitmask(t *testing.T) {
	legacy := Control{
		ID:      1,
		Type:    CtrlTypeBitMask,
		Name:    "test_bitmask",
		Minimum: 0,
		Maximum: -1, // bit pattern 0xFFFFFFFF as a signed int32
		Step:    1,
		Default: -2147483648, // bit pattern 0x80000000
	}

	ext := normalizeLegacyControl(legacy)
	require.Equal(t, int64(0xFFFFFFFF), ext.Maximum)
	require.Equal(t, int64(0x80000000), ext.Default)
	require.Equal(t, int64(0), ext.Minimum)
}

// TestNormalizeLegacyControlSignExtendsNonBitmask ensures the zero-extension
// in the BITMASK branch above does not leak into ordinary integer controls,
// whose negative minimums are real signed magnitudes.
func TestNormalizeLegacyControlSignExtendsNonBitmask(t *testing.T) {
	legacy := Control{
		ID:      2,
		Type:    CtrlTypeInt,
		Name:    "test_int",
		Minimum: -100,
		Maximum: 100,
		Step:    1,
		Default: 0,
	}

	ext := normalizeLegacyControl(legacy)
	require.Equal(t, int64(-100), ext.Minimum)
	require.Equal(t, int64(100), ext.Maximum)
}

// TestQueryExtControlDoesNotFallBackOnNonENOTTY pins down the other half of
// S3: QueryExtControl only falls back to the legacy ioctl when the extended
// one is unsupported (ENOTTY). An invalid file descriptor reliably fails
// with EBADF, which parseErrorType maps to ErrorSystem, not
// ErrorUnsupported — so this must return a wrapped error directly rather
// than attempting (and then also failing) the legacy fallback path.
func TestQueryExtControlDoesNotFallBackOnNonENOTTY(t *testing.T) {
	const invalidFd = ^uintptr(0)

	_, err := QueryExtControl(invalidFd, 1)
	require.Error(t, err)
	require.NotContains(t, err.Error(), "fallback")
}
