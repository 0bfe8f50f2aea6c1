package puzzle

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
	"github.com/consensys/posw/logger"
)

// Address identifies the prover claiming the reward share of a partial
// solution; typically the hash of its public key.
type Address [32]byte

// Puzzle holds the KZG proving and verifying keys produced at setup. It is
// immutable after construction and safe to share across goroutines; provers,
// accumulators and verifiers all operate on the same instance.
type Puzzle struct {
	pk        kzg.ProvingKey
	vk        kzg.VerifyingKey
	maxDegree uint32
}

// Setup generates a fresh SRS supporting challenge polynomials up to
// maxDegree and wraps it in a Puzzle.
//
// This is the one-time, expensive genesis step. The toxic waste is sampled
// from crypto/rand and discarded; in production an SRS generated through an
// MPC ceremony should be used instead (see [NewPuzzle]).
func Setup(maxDegree uint32) (*Puzzle, error) {
	if maxDegree == 0 {
		return nil, fmt.Errorf("setup: max degree must be at least 1")
	}

	log := logger.Logger().With().Str("curve", "bls12-377").Uint32("maxDegree", maxDegree).Logger()
	log.Debug().Msg("puzzle setup started")
	start := time.Now()

	alpha, err := rand.Int(rand.Reader, fr.Modulus())
	if err != nil {
		return nil, fmt.Errorf("setup: sample alpha: %w", err)
	}
	srs, err := kzg.NewSRS(uint64(maxDegree)+1, alpha)
	if err != nil {
		return nil, fmt.Errorf("setup: build srs: %w", err)
	}

	log.Debug().Dur("took", time.Since(start)).Msg("puzzle setup done")
	return NewPuzzle(srs, maxDegree)
}

// NewPuzzle wraps an externally produced SRS (for example the output of an
// MPC ceremony) in a Puzzle supporting challenge polynomials up to maxDegree.
func NewPuzzle(srs *kzg.SRS, maxDegree uint32) (*Puzzle, error) {
	if srs == nil {
		return nil, fmt.Errorf("new puzzle: nil srs")
	}
	if uint64(len(srs.Pk.G1)) < uint64(maxDegree)+1 {
		return nil, fmt.Errorf("new puzzle: srs of size %d cannot commit to degree %d polynomials", len(srs.Pk.G1), maxDegree)
	}
	return &Puzzle{
		pk:        srs.Pk,
		vk:        srs.Vk,
		maxDegree: maxDegree,
	}, nil
}

// MaxDegree returns the largest challenge degree bound the setup supports.
func (p *Puzzle) MaxDegree() uint32 {
	return p.maxDegree
}
