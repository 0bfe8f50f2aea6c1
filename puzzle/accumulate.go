package puzzle

import (
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
	"github.com/consensys/posw/logger"
)

// Accumulate combines partial solutions of one epoch into a single
// CoinbaseSolution carrying one aggregate opening proof.
//
// Every member is validated first: proof target at least minTarget, no
// duplicate (address, nonce) pair, and a commitment that matches a
// recomputation from public data under ch. A member built against another
// epoch challenge fails that recomputation and is reported as
// ErrCrossEpochMismatch; nothing is ever silently dropped.
//
// The aggregation coefficients come from a Fiat-Shamir transcript over the
// ordered solutions, so the order is part of the proof. Verification does not
// require a canonical order, only that accumulator and verifier agree on it.
func (p *Puzzle) Accumulate(solutions []PartialSolution, ch *EpochChallenge, minTarget uint64) (*CoinbaseSolution, error) {
	if len(solutions) == 0 {
		return nil, ErrEmptySolutionSet
	}
	if ch.DegreeBound() > p.maxDegree {
		return nil, fmt.Errorf("%w: degree bound %d, setup max degree %d", ErrInvalidDegreeBound, ch.DegreeBound(), p.maxDegree)
	}

	log := logger.Logger().With().Uint32("epoch", ch.epochNumber).Int("nbSolutions", len(solutions)).Logger()
	start := time.Now()

	seen := make(map[solutionKey]struct{}, len(solutions))
	polynomials := make([][]fr.Element, len(solutions))
	for i := range solutions {
		s := &solutions[i]
		if _, ok := seen[s.key()]; ok {
			return nil, fmt.Errorf("%w: address %x nonce %d", ErrDuplicateSolution, s.Address, s.Nonce)
		}
		seen[s.key()] = struct{}{}

		if target := proofTarget(&s.Commitment, ch.id); target < minTarget {
			return nil, fmt.Errorf("%w: address %x nonce %d target %d, minimum %d", ErrBelowMinimumTarget, s.Address, s.Nonce, target, minTarget)
		}

		f, err := candidatePolynomial(s.Address, s.Nonce, ch)
		if err != nil {
			return nil, err
		}
		expected, err := kzg.Commit(f, p.pk)
		if err != nil {
			return nil, fmt.Errorf("recommit candidate polynomial: %w", err)
		}
		if !expected.Equal(&s.Commitment) {
			return nil, fmt.Errorf("%w: address %x nonce %d", ErrCrossEpochMismatch, s.Address, s.Nonce)
		}
		polynomials[i] = f
	}

	z, fs, err := deriveEvaluationPoint(ch, solutions)
	if err != nil {
		return nil, err
	}
	evaluations := make([]fr.Element, len(solutions))
	for i := range polynomials {
		evaluations[i] = eval(polynomials[i], z)
	}
	gamma, err := deriveFoldingChallenge(fs, evaluations)
	if err != nil {
		return nil, err
	}
	lambdas := powers(gamma, len(solutions))

	// F = ∑ᵢ λᵢ·fᵢ
	folded := make([]fr.Element, len(ch.coefficients))
	var tmp fr.Element
	for i := range polynomials {
		for j := range polynomials[i] {
			tmp.Mul(&polynomials[i][j], &lambdas[i])
			folded[j].Add(&folded[j], &tmp)
		}
	}

	proof, err := kzg.Open(folded, z, p.pk)
	if err != nil {
		return nil, fmt.Errorf("open folded polynomial: %w", err)
	}

	log.Debug().Dur("took", time.Since(start)).Msg("accumulated coinbase solution")

	return &CoinbaseSolution{
		PartialSolutions: append([]PartialSolution(nil), solutions...),
		Proof:            proof,
	}, nil
}
