package puzzle

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
)

// PartialSolution is one prover's contribution to an epoch's coinbase
// solution. It is immutable once constructed and uniquely identified by
// (Address, Nonce) within the epoch.
type PartialSolution struct {
	Address    Address
	Nonce      uint64
	Commitment kzg.Digest
}

// solutionKey identifies a partial solution inside a batch.
type solutionKey struct {
	addr  Address
	nonce uint64
}

func (s *PartialSolution) key() solutionKey {
	return solutionKey{addr: s.Address, nonce: s.Nonce}
}

// CoinbaseSolution aggregates many partial solutions of one epoch under a
// single KZG opening proof. It is produced by [Puzzle.Accumulate] and checked
// as a whole by [Puzzle.Verify]; the ordered sequence of partial solutions is
// part of the Fiat-Shamir transcript, so reordering changes the proof bytes.
type CoinbaseSolution struct {
	PartialSolutions []PartialSolution
	Proof            kzg.OpeningProof
}

// SolutionWeight is the (address, proof target) pair consensus consumes to
// split the coinbase reward, proportionally to Target over the sum of all
// targets in the accepted solution.
type SolutionWeight struct {
	Address Address
	Target  uint64
}

// ProofTargets recomputes the proof target of every member under ch, in
// solution order. The exact reward split policy is a consensus concern; this
// only exposes the weights.
func (cs *CoinbaseSolution) ProofTargets(ch *EpochChallenge) []SolutionWeight {
	weights := make([]SolutionWeight, len(cs.PartialSolutions))
	for i := range cs.PartialSolutions {
		weights[i] = SolutionWeight{
			Address: cs.PartialSolutions[i].Address,
			Target:  proofTarget(&cs.PartialSolutions[i].Commitment, ch.id),
		}
	}
	return weights
}
