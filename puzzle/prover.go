package puzzle

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
	"github.com/consensys/posw/logger"
	"golang.org/x/sync/errgroup"
)

// ConstructPartialSolution performs a single mining attempt: it derives the
// candidate polynomial for (addr, nonce) under ch, commits to it, and returns
// the partial solution together with its proof target.
//
// The call is deterministic and stateless; callers drive the nonce search
// themselves or use [Puzzle.Mine].
func (p *Puzzle) ConstructPartialSolution(addr Address, nonce uint64, ch *EpochChallenge) (*PartialSolution, uint64, error) {
	if ch.DegreeBound() > p.maxDegree {
		return nil, 0, fmt.Errorf("%w: degree bound %d, setup max degree %d", ErrInvalidDegreeBound, ch.DegreeBound(), p.maxDegree)
	}

	f, err := candidatePolynomial(addr, nonce, ch)
	if err != nil {
		return nil, 0, err
	}
	commitment, err := kzg.Commit(f, p.pk)
	if err != nil {
		return nil, 0, fmt.Errorf("commit candidate polynomial: %w", err)
	}

	sol := &PartialSolution{Address: addr, Nonce: nonce, Commitment: commitment}
	return sol, proofTarget(&commitment, ch.id), nil
}

type mineConfig struct {
	workers     int
	startNonce  uint64
	startSet    bool
	maxAttempts uint64
}

// MineOption configures the nonce search of [Puzzle.Mine].
type MineOption func(*mineConfig) error

// WithWorkers sets the number of parallel workers. Defaults to
// runtime.NumCPU().
func WithWorkers(n int) MineOption {
	return func(cfg *mineConfig) error {
		if n <= 0 {
			return fmt.Errorf("mine: workers must be positive, got %d", n)
		}
		cfg.workers = n
		return nil
	}
}

// WithStartNonce fixes the first nonce of the search instead of drawing it at
// random. Worker w starts at nonce+w and strides by the worker count.
func WithStartNonce(nonce uint64) MineOption {
	return func(cfg *mineConfig) error {
		cfg.startNonce = nonce
		cfg.startSet = true
		return nil
	}
}

// WithMaxAttempts bounds the number of attempts per worker. 0 (the default)
// means the search runs until the context is cancelled.
func WithMaxAttempts(n uint64) MineOption {
	return func(cfg *mineConfig) error {
		cfg.maxAttempts = n
		return nil
	}
}

// errFound unwinds the worker group once one worker has met the target.
var errFound = errors.New("solution found")

// Mine searches nonces until it finds a partial solution whose proof target
// meets minTarget. The search is embarrassingly parallel: each worker owns a
// strided nonce sub-space and shares no mutable state with its siblings.
//
// Cancellation is cooperative. The context is sampled between attempts, never
// mid-commitment; consensus cancels it when a new epoch arrives or the block
// interval elapses, and Mine then returns the context error. Difficulty
// misses are silent control flow inside the loop.
func (p *Puzzle) Mine(ctx context.Context, addr Address, ch *EpochChallenge, minTarget uint64, opts ...MineOption) (*PartialSolution, uint64, error) {
	cfg := mineConfig{workers: runtime.NumCPU()}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, 0, err
		}
	}
	if !cfg.startSet {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, 0, fmt.Errorf("mine: draw start nonce: %w", err)
		}
		cfg.startNonce = binary.BigEndian.Uint64(buf[:])
	}

	log := logger.Logger().With().
		Uint32("epoch", ch.epochNumber).
		Uint64("minTarget", minTarget).
		Int("workers", cfg.workers).
		Logger()
	start := time.Now()

	type result struct {
		sol    *PartialSolution
		target uint64
	}
	found := make(chan result, cfg.workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.workers; w++ {
		nonce := cfg.startNonce + uint64(w)
		g.Go(func() error {
			step := uint64(cfg.workers)
			for attempts := uint64(0); cfg.maxAttempts == 0 || attempts < cfg.maxAttempts; attempts++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				sol, target, err := p.ConstructPartialSolution(addr, nonce, ch)
				if err != nil {
					return err
				}
				if target >= minTarget {
					found <- result{sol: sol, target: target}
					return errFound
				}
				nonce += step
			}
			return nil
		})
	}

	waitErr := g.Wait()

	select {
	case res := <-found:
		log.Debug().Dur("took", time.Since(start)).Uint64("nonce", res.sol.Nonce).Uint64("target", res.target).Msg("solution found")
		return res.sol, res.target, nil
	default:
	}

	if waitErr != nil && !errors.Is(waitErr, errFound) {
		return nil, 0, waitErr
	}
	return nil, 0, ErrNoSolutionFound
}
