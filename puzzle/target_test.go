package puzzle

import (
	"math"
	"math/big"
	"testing"

	curve "github.com/consensys/gnark-crypto/ecc/bls12-377"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

// digestOf deterministically maps a scalar to a G1 point, standing in for a
// commitment.
func digestOf(s uint64) kzg.Digest {
	var jac curve.G1Jac
	jac.ScalarMultiplicationBase(new(big.Int).SetUint64(s + 1))
	var d kzg.Digest
	d.FromJacobian(&jac)
	return d
}

func TestInvertTargetProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 1000

	properties := gopter.NewProperties(parameters)

	properties.Property("target is always at least 1", prop.ForAll(
		func(h uint64) bool {
			return invertTarget(h) >= 1
		},
		gen.UInt64(),
	))

	properties.Property("hash closer to zero yields larger target", prop.ForAll(
		func(a, b uint64) bool {
			if a > b {
				a, b = b, a
			}
			return invertTarget(a) >= invertTarget(b)
		},
		gen.UInt64(), gen.UInt64(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestInvertTargetBounds(t *testing.T) {
	assert := require.New(t)
	assert.Equal(uint64(math.MaxUint64), invertTarget(0))
	assert.Equal(uint64(1), invertTarget(math.MaxUint64))
	assert.Equal(uint64(1), invertTarget(math.MaxUint64-1))
}

func TestTargetHashSensitivity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	challengeID := testSeed(0xAB)

	properties.Property("distinct commitments yield distinct hashes", prop.ForAll(
		func(a, b uint64) bool {
			if a == b {
				return true
			}
			da, db := digestOf(a), digestOf(b)
			return targetHash(&da, challengeID) != targetHash(&db, challengeID)
		},
		gen.UInt64(), gen.UInt64(),
	))

	properties.Property("hash is bound to the epoch challenge", prop.ForAll(
		func(a uint64) bool {
			d := digestOf(a)
			return targetHash(&d, testSeed(1)) != targetHash(&d, testSeed(2))
		},
		gen.UInt64(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProofTargetPurity(t *testing.T) {
	assert := require.New(t)
	p := testPuzzle(t)

	ch, err := p.NewEpochChallenge(7, testSeed(0x42), 4)
	assert.NoError(err)

	var addr Address
	addr[0] = 0xA1
	sol, target, err := p.ConstructPartialSolution(addr, 42, ch)
	assert.NoError(err)

	// prover and verifier must reach the same value on every recomputation
	for i := 0; i < 3; i++ {
		assert.Equal(target, ProofTarget(&sol.Commitment, ch))
	}
}
