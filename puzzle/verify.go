package puzzle

import (
	"fmt"
	"runtime"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
	"github.com/consensys/posw/logger"
	"golang.org/x/sync/errgroup"
)

// Verify checks a CoinbaseSolution against ch and the epoch's minimum target.
//
// It recomputes every member's proof target, recomputes the Fiat-Shamir
// challenges from the ordered partial solutions, recombines the public
// commitments with the folding coefficients, and runs one pairing check
// against the aggregate proof. The pairing cost is independent of the number
// of partial solutions; the per-member work is hashing and field arithmetic
// only.
//
// Verification is all or nothing: any failing member or a failing aggregate
// check rejects the whole solution with ErrPuzzleVerificationFailed.
func (p *Puzzle) Verify(cs *CoinbaseSolution, ch *EpochChallenge, minTarget uint64) error {
	if cs == nil || len(cs.PartialSolutions) == 0 {
		return fmt.Errorf("%w: empty partial solution set", ErrPuzzleVerificationFailed)
	}
	if ch.DegreeBound() > p.maxDegree {
		return fmt.Errorf("%w: degree bound %d, setup max degree %d", ErrInvalidDegreeBound, ch.DegreeBound(), p.maxDegree)
	}

	log := logger.Logger().With().Uint32("epoch", ch.epochNumber).Int("nbSolutions", len(cs.PartialSolutions)).Logger()
	start := time.Now()

	solutions := cs.PartialSolutions
	seen := make(map[solutionKey]struct{}, len(solutions))
	for i := range solutions {
		s := &solutions[i]
		if _, ok := seen[s.key()]; ok {
			return fmt.Errorf("%w: duplicate solution, address %x nonce %d", ErrPuzzleVerificationFailed, s.Address, s.Nonce)
		}
		seen[s.key()] = struct{}{}

		if target := proofTarget(&s.Commitment, ch.id); target < minTarget {
			return fmt.Errorf("%w: address %x nonce %d target %d below minimum %d", ErrPuzzleVerificationFailed, s.Address, s.Nonce, target, minTarget)
		}
	}

	z, fs, err := deriveEvaluationPoint(ch, solutions)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPuzzleVerificationFailed, err)
	}

	// recompute the claimed evaluations from public data; this is what binds
	// each commitment to its prover identity.
	evaluations := make([]fr.Element, len(solutions))
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i := range solutions {
		g.Go(func() error {
			f, err := candidatePolynomial(solutions[i].Address, solutions[i].Nonce, ch)
			if err != nil {
				return err
			}
			evaluations[i] = eval(f, z)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrPuzzleVerificationFailed, err)
	}

	gamma, err := deriveFoldingChallenge(fs, evaluations)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPuzzleVerificationFailed, err)
	}
	lambdas := powers(gamma, len(solutions))

	// folded claimed value ∑ᵢ λᵢ·fᵢ(z) must match the aggregate proof
	var foldedEval, tmp fr.Element
	for i := range evaluations {
		tmp.Mul(&evaluations[i], &lambdas[i])
		foldedEval.Add(&foldedEval, &tmp)
	}
	if !foldedEval.Equal(&cs.Proof.ClaimedValue) {
		return fmt.Errorf("%w: claimed value does not match recomputed evaluations", ErrPuzzleVerificationFailed)
	}

	// folded commitment D = ∑ᵢ λᵢ·Wᵢ
	commitments := make([]kzg.Digest, len(solutions))
	for i := range solutions {
		commitments[i] = solutions[i].Commitment
	}
	var foldedDigest kzg.Digest
	if _, err := foldedDigest.MultiExp(commitments, lambdas, ecc.MultiExpConfig{}); err != nil {
		return fmt.Errorf("%w: fold commitments: %v", ErrPuzzleVerificationFailed, err)
	}

	if err := kzg.Verify(&foldedDigest, &cs.Proof, z, p.vk); err != nil {
		return fmt.Errorf("%w: %v", ErrPuzzleVerificationFailed, err)
	}

	log.Debug().Dur("took", time.Since(start)).Msg("coinbase solution verified")
	return nil
}
