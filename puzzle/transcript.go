package puzzle

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	fiatshamir "github.com/consensys/gnark-crypto/fiat-shamir"
)

// The accumulation transcript derives two challenges:
//   - "z": the common evaluation point, bound to the epoch challenge and the
//     ordered (address, nonce, commitment) sequence
//   - "gamma": the folding challenge, additionally bound to every claimed
//     evaluation (the transcript chains "z" into "gamma")
//
// No prover can choose a commitment to cancel another's contribution after
// the fact: any change to the set changes both challenges.

// deriveEvaluationPoint binds the epoch challenge and the ordered partial
// solutions into the transcript and squeezes the evaluation point z.
func deriveEvaluationPoint(ch *EpochChallenge, solutions []PartialSolution) (fr.Element, *fiatshamir.Transcript, error) {
	var z fr.Element

	fs := fiatshamir.NewTranscript(sha256.New(), "z", "gamma")
	if err := fs.Bind("z", ch.id[:]); err != nil {
		return z, nil, err
	}
	var nonceBytes [8]byte
	for i := range solutions {
		binary.BigEndian.PutUint64(nonceBytes[:], solutions[i].Nonce)
		if err := fs.Bind("z", solutions[i].Address[:]); err != nil {
			return z, nil, err
		}
		if err := fs.Bind("z", nonceBytes[:]); err != nil {
			return z, nil, err
		}
		if err := fs.Bind("z", solutions[i].Commitment.Marshal()); err != nil {
			return z, nil, err
		}
	}

	zBytes, err := fs.ComputeChallenge("z")
	if err != nil {
		return z, nil, fmt.Errorf("derive evaluation point: %w", err)
	}
	z.SetBytes(zBytes)
	return z, fs, nil
}

// deriveFoldingChallenge binds the claimed evaluations and squeezes the
// folding challenge gamma.
func deriveFoldingChallenge(fs *fiatshamir.Transcript, evaluations []fr.Element) (fr.Element, error) {
	var gamma fr.Element
	for i := range evaluations {
		if err := fs.Bind("gamma", evaluations[i].Marshal()); err != nil {
			return gamma, err
		}
	}
	gammaBytes, err := fs.ComputeChallenge("gamma")
	if err != nil {
		return gamma, fmt.Errorf("derive folding challenge: %w", err)
	}
	gamma.SetBytes(gammaBytes)
	return gamma, nil
}

// powers returns [1, x, x², ..., x^{n-1}].
func powers(x fr.Element, n int) []fr.Element {
	res := make([]fr.Element, n)
	res[0].SetOne()
	for i := 1; i < n; i++ {
		res[i].Mul(&res[i-1], &x)
	}
	return res
}

// eval returns f(point) where f is interpreted as a polynomial
// ∑_{i<len(f)} f[i]·Xⁱ.
func eval(f []fr.Element, point fr.Element) fr.Element {
	var res fr.Element
	n := len(f)
	res.Set(&f[n-1])
	for i := n - 2; i >= 0; i-- {
		res.Mul(&res, &point).Add(&res, &f[i])
	}
	return res
}
