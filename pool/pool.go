// Package pool collects gossiped partial solutions on the validator or pool
// side ahead of accumulation.
//
// Submissions below the epoch minimum target and duplicates are rejected at
// the door; the pool keeps the best solutions by proof target up to its
// capacity and hands an ordered snapshot to the puzzle accumulator.
package pool

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/posw/logger"
	"github.com/consensys/posw/puzzle"
	"golang.org/x/crypto/blake2b"
)

// prefilterBits sizes the dedup bitset; 2^20 bits is 128 KiB per epoch.
const prefilterBits = 1 << 20

// Entry is a pooled partial solution with its recomputed proof target.
type Entry struct {
	Solution puzzle.PartialSolution
	Target   uint64
}

type key struct {
	addr  puzzle.Address
	nonce uint64
}

// Pool accumulates partial solutions for one epoch. Safe for concurrent use;
// pooled puzzle values themselves are immutable.
type Pool struct {
	// mu guards the epoch state (ch, minTarget) and the solution set;
	// puz, capacity and recommit are fixed at construction.
	mu        sync.Mutex
	puz       *puzzle.Puzzle
	ch        *puzzle.EpochChallenge
	minTarget uint64
	capacity  int
	recommit  bool

	// prefilter answers "definitely new" cheaply; the map is authoritative.
	prefilter *bitset.BitSet
	entries   map[key]Entry
}

// Option configures a Pool.
type Option func(*Pool) error

// WithCapacity bounds the number of retained solutions; when full, the worst
// target is evicted. Defaults to 256.
func WithCapacity(n int) Option {
	return func(p *Pool) error {
		if n <= 0 {
			return fmt.Errorf("pool: capacity must be positive, got %d", n)
		}
		p.capacity = n
		return nil
	}
}

// WithRecommitCheck makes Add recompute each submission's commitment from
// public data, rejecting malformed or cross-epoch solutions immediately at
// the cost of one multi-exponentiation per submission. Off by default; the
// accumulator always performs the check.
func WithRecommitCheck() Option {
	return func(p *Pool) error {
		p.recommit = true
		return nil
	}
}

// New creates a pool for one epoch challenge and minimum target.
func New(puz *puzzle.Puzzle, ch *puzzle.EpochChallenge, minTarget uint64, opts ...Option) (*Pool, error) {
	p := &Pool{
		puz:       puz,
		ch:        ch,
		minTarget: minTarget,
		capacity:  256,
		prefilter: bitset.New(prefilterBits),
		entries:   make(map[key]Entry),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Add submits a partial solution. It returns the solution's proof target, or
// an error wrapping puzzle.ErrBelowMinimumTarget, puzzle.ErrDuplicateSolution
// or puzzle.ErrCrossEpochMismatch (with the recommit check enabled, or when
// the epoch rolls mid-submission). A solution evicted for capacity is not an
// error for the submitter.
func (p *Pool) Add(sol puzzle.PartialSolution) (uint64, error) {
	// snapshot the epoch state; target evaluation and the recommit check are
	// too expensive to hold the lock across
	p.mu.Lock()
	ch, minTarget, recommit := p.ch, p.minTarget, p.recommit
	p.mu.Unlock()

	target := puzzle.ProofTarget(&sol.Commitment, ch)
	if target < minTarget {
		return target, fmt.Errorf("%w: target %d, minimum %d", puzzle.ErrBelowMinimumTarget, target, minTarget)
	}

	if recommit {
		expected, _, err := p.puz.ConstructPartialSolution(sol.Address, sol.Nonce, ch)
		if err != nil {
			return target, err
		}
		if !expected.Commitment.Equal(&sol.Commitment) {
			return target, fmt.Errorf("%w: address %x nonce %d", puzzle.ErrCrossEpochMismatch, sol.Address, sol.Nonce)
		}
	}

	k := key{addr: sol.Address, nonce: sol.Nonce}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != ch {
		// the epoch rolled while we validated against the old challenge
		return target, fmt.Errorf("%w: address %x nonce %d submitted across an epoch roll", puzzle.ErrCrossEpochMismatch, sol.Address, sol.Nonce)
	}

	idx := prefilterIndex(&k)
	if p.prefilter.Test(idx) {
		// possible duplicate; the map decides
		if _, ok := p.entries[k]; ok {
			return target, fmt.Errorf("%w: address %x nonce %d", puzzle.ErrDuplicateSolution, sol.Address, sol.Nonce)
		}
	}
	p.prefilter.Set(idx)
	p.entries[k] = Entry{Solution: sol, Target: target}

	if len(p.entries) > p.capacity {
		p.evictWorst()
	}
	return target, nil
}

// evictWorst drops the entry with the lowest target. Caller holds the lock.
func (p *Pool) evictWorst() {
	first := true
	var worstKey key
	var worst uint64
	for k, e := range p.entries {
		if first || e.Target < worst {
			worstKey, worst = k, e.Target
			first = false
		}
	}
	delete(p.entries, worstKey)
	// the prefilter bit stays set; the map remains authoritative
}

// Len returns the number of pooled solutions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Best returns up to n pooled entries ordered by descending target, ties
// broken by (address, nonce) for a stable order.
func (p *Pool) Best(n int) []Entry {
	p.mu.Lock()
	snapshot := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		snapshot = append(snapshot, e)
	}
	p.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].Target != snapshot[j].Target {
			return snapshot[i].Target > snapshot[j].Target
		}
		si, sj := &snapshot[i].Solution, &snapshot[j].Solution
		if c := bytes.Compare(si.Address[:], sj.Address[:]); c != 0 {
			return c < 0
		}
		return si.Nonce < sj.Nonce
	})
	if n < len(snapshot) {
		snapshot = snapshot[:n]
	}
	return snapshot
}

// Accumulate snapshots the current best solutions and combines them into one
// CoinbaseSolution. The pool is left untouched; consensus decides when to
// reset for the next epoch.
func (p *Pool) Accumulate() (*puzzle.CoinbaseSolution, error) {
	p.mu.Lock()
	ch, minTarget, capacity := p.ch, p.minTarget, p.capacity
	p.mu.Unlock()

	entries := p.Best(capacity)
	if len(entries) == 0 {
		return nil, puzzle.ErrEmptySolutionSet
	}
	solutions := make([]puzzle.PartialSolution, len(entries))
	for i := range entries {
		solutions[i] = entries[i].Solution
	}

	log := logger.Logger().With().Uint32("epoch", ch.EpochNumber()).Int("nbSolutions", len(solutions)).Logger()
	cs, err := p.puz.Accumulate(solutions, ch, minTarget)
	if err != nil {
		return nil, err
	}
	log.Debug().Msg("pool accumulated coinbase solution")
	return cs, nil
}

// Reset rolls the pool over to a new epoch, dropping all pooled solutions.
func (p *Pool) Reset(ch *puzzle.EpochChallenge, minTarget uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ch = ch
	p.minTarget = minTarget
	p.prefilter.ClearAll()
	p.entries = make(map[key]Entry)
}

func prefilterIndex(k *key) uint {
	var buf [32 + 8]byte
	copy(buf[:32], k.addr[:])
	binary.BigEndian.PutUint64(buf[32:], k.nonce)
	digest := blake2b.Sum256(buf[:])
	return uint(binary.BigEndian.Uint64(digest[:8]) % prefilterBits)
}
