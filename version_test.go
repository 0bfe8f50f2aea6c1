package posw

import (
	"testing"

	"github.com/blang/semver/v4"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	assert := require.New(t)

	// the hardcoded version must be a valid semver with no pre-release tag;
	// serialized keys embed it and compare on load.
	assert.Empty(Version.Pre)
	assert.True(Version.GTE(semver.MustParse("0.1.0")))
}

func TestCurveID(t *testing.T) {
	require.Equal(t, ecc.BLS12_377, CurveID())
}
