package puzzle

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"golang.org/x/crypto/blake2b"
)

// Domain separation tags. Changing any of them is a consensus break and must
// come with a version bump of the serialized keys.
const (
	dstEpochChallenge = "posw/epoch-challenge/v1"
	dstProverPoly     = "posw/prover-polynomial/v1"
	dstProofTarget    = "posw/proof-target/v1"
	dstChallengeID    = "posw/epoch-id/v1"
)

// EpochChallenge is the public puzzle instance of one epoch: a challenge
// polynomial deterministically expanded from consensus entropy. It is
// immutable once derived; provers and verifiers recompute it independently
// from (epochNumber, seed) rather than transmitting it.
type EpochChallenge struct {
	epochNumber  uint32
	id           [32]byte
	coefficients []fr.Element
}

// NewEpochChallenge derives the challenge of epoch epochNumber from the
// consensus-supplied seed (typically the previous block hash), as a
// polynomial of degree degreeBound.
//
// The derivation is deterministic: the same inputs always yield bit-identical
// coefficients. Returns ErrInvalidDegreeBound if the setup cannot commit to
// polynomials of degree degreeBound.
func (p *Puzzle) NewEpochChallenge(epochNumber uint32, seed [32]byte, degreeBound uint32) (*EpochChallenge, error) {
	if degreeBound > p.maxDegree {
		return nil, fmt.Errorf("%w: degree bound %d, setup max degree %d", ErrInvalidDegreeBound, degreeBound, p.maxDegree)
	}

	var msg [4 + 32]byte
	binary.BigEndian.PutUint32(msg[:4], epochNumber)
	copy(msg[4:], seed[:])

	coefficients, err := hashToField(msg[:], dstEpochChallenge, int(degreeBound)+1)
	if err != nil {
		return nil, fmt.Errorf("expand epoch seed: %w", err)
	}

	idPreimage := make([]byte, 0, len(dstChallengeID)+len(msg))
	idPreimage = append(idPreimage, dstChallengeID...)
	idPreimage = append(idPreimage, msg[:]...)

	return &EpochChallenge{
		epochNumber:  epochNumber,
		id:           blake2b.Sum256(idPreimage),
		coefficients: coefficients,
	}, nil
}

// EpochNumber returns the epoch this challenge was derived for.
func (ch *EpochChallenge) EpochNumber() uint32 {
	return ch.epochNumber
}

// DegreeBound returns the degree of the challenge polynomial.
func (ch *EpochChallenge) DegreeBound() uint32 {
	return uint32(len(ch.coefficients) - 1)
}

// ID returns the challenge identifier binding epoch number and seed. It seeds
// both the prover polynomial derivation and the proof target hash, so partial
// solutions cannot be carried across epochs.
func (ch *EpochChallenge) ID() [32]byte {
	return ch.id
}

// Coefficients returns a copy of the challenge polynomial coefficients, in
// canonical form, lowest degree first.
func (ch *EpochChallenge) Coefficients() []fr.Element {
	out := make([]fr.Element, len(ch.coefficients))
	copy(out, ch.coefficients)
	return out
}

// fr.Hash expands through expand_message_xmd, which emits at most 255 SHA-256
// blocks (8160 bytes), so one call yields at most 170 BLS12-377 scalars.
const maxHashElements = 170

// hashToField expands msg into count field elements under dst. Expansions
// beyond the single-call limit are chunked, each chunk hashed under dst with a
// big-endian chunk index appended.
func hashToField(msg []byte, dst string, count int) ([]fr.Element, error) {
	out := make([]fr.Element, 0, count)
	tag := make([]byte, len(dst)+4)
	copy(tag, dst)
	for chunk := uint32(0); len(out) < count; chunk++ {
		n := count - len(out)
		if n > maxHashElements {
			n = maxHashElements
		}
		binary.BigEndian.PutUint32(tag[len(dst):], chunk)
		elems, err := fr.Hash(msg, tag, n)
		if err != nil {
			return nil, err
		}
		out = append(out, elems...)
	}
	return out, nil
}

// candidatePolynomial derives the polynomial a prover commits to for a given
// (address, nonce) attempt: a hash-to-field expansion of the prover identity
// under the challenge id, shifted by the challenge polynomial. It depends on
// both the prover and the epoch, so it cannot be precomputed independent of
// either.
func candidatePolynomial(addr Address, nonce uint64, ch *EpochChallenge) ([]fr.Element, error) {
	var msg [32 + 32 + 8]byte
	copy(msg[:32], ch.id[:])
	copy(msg[32:64], addr[:])
	binary.BigEndian.PutUint64(msg[64:], nonce)

	f, err := hashToField(msg[:], dstProverPoly, len(ch.coefficients))
	if err != nil {
		return nil, fmt.Errorf("expand prover polynomial: %w", err)
	}
	for i := range f {
		f[i].Add(&f[i], &ch.coefficients[i])
	}
	return f, nil
}
