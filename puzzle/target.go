package puzzle

import (
	"encoding/binary"
	"math"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
	"golang.org/x/crypto/blake2b"
)

// ProofTarget maps a commitment to its 64-bit proof target under the given
// epoch challenge. Pure and side-effect free: prover and verifier reach the
// same value independently.
//
// The direction is inverted relative to raw proof-of-work: a BLAKE2b digest
// of the commitment closer to zero yields a larger target, and larger targets
// carry more reward weight.
func ProofTarget(commitment *kzg.Digest, ch *EpochChallenge) uint64 {
	return proofTarget(commitment, ch.id)
}

func proofTarget(commitment *kzg.Digest, challengeID [32]byte) uint64 {
	return invertTarget(targetHash(commitment, challengeID))
}

// targetHash is the uniform 64-bit value the target is normalized from: the
// first 8 bytes of BLAKE2b-256 over the domain tag, the challenge id and the
// compressed commitment.
func targetHash(commitment *kzg.Digest, challengeID [32]byte) uint64 {
	cb := commitment.Bytes()

	preimage := make([]byte, 0, len(dstProofTarget)+len(challengeID)+len(cb))
	preimage = append(preimage, dstProofTarget...)
	preimage = append(preimage, challengeID[:]...)
	preimage = append(preimage, cb[:]...)

	digest := blake2b.Sum256(preimage)
	return binary.BigEndian.Uint64(digest[:8])
}

// invertTarget normalizes a uniform 64-bit hash into the target domain:
// target = MaxUint64 / (h+1), with the addition saturating so h = MaxUint64
// stays well defined. The result is always at least 1.
func invertTarget(h uint64) uint64 {
	if h == math.MaxUint64 {
		return 1
	}
	return math.MaxUint64 / (h + 1)
}
