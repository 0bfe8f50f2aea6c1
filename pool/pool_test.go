package pool

import (
	"sync"
	"testing"

	"github.com/consensys/posw/puzzle"
	"github.com/stretchr/testify/require"
)

const testMaxDegree = 15

func testFixture(t *testing.T) (*puzzle.Puzzle, *puzzle.EpochChallenge) {
	t.Helper()
	assert := require.New(t)

	p, err := puzzle.Setup(testMaxDegree)
	assert.NoError(err)
	var seed [32]byte
	seed[0] = 0x42
	ch, err := p.NewEpochChallenge(7, seed, 4)
	assert.NoError(err)
	return p, ch
}

func testSolution(t *testing.T, p *puzzle.Puzzle, ch *puzzle.EpochChallenge, addrByte byte, nonce uint64) (puzzle.PartialSolution, uint64) {
	t.Helper()
	var addr puzzle.Address
	addr[0] = addrByte
	sol, target, err := p.ConstructPartialSolution(addr, nonce, ch)
	require.NoError(t, err)
	return *sol, target
}

func TestPoolAdd(t *testing.T) {
	assert := require.New(t)
	p, ch := testFixture(t)

	pl, err := New(p, ch, 1)
	assert.NoError(err)

	sol, target := testSolution(t, p, ch, 1, 0)
	got, err := pl.Add(sol)
	assert.NoError(err)
	assert.Equal(target, got)
	assert.Equal(1, pl.Len())

	// same (address, nonce) twice is a duplicate
	_, err = pl.Add(sol)
	assert.ErrorIs(err, puzzle.ErrDuplicateSolution)
	assert.Equal(1, pl.Len())

	// same address, different nonce is a new solution
	other, _ := testSolution(t, p, ch, 1, 1)
	_, err = pl.Add(other)
	assert.NoError(err)
	assert.Equal(2, pl.Len())
}

func TestPoolRejectsBelowMinimum(t *testing.T) {
	assert := require.New(t)
	p, ch := testFixture(t)

	sol, target := testSolution(t, p, ch, 1, 0)

	pl, err := New(p, ch, target+1)
	assert.NoError(err)

	_, err = pl.Add(sol)
	assert.ErrorIs(err, puzzle.ErrBelowMinimumTarget)
	assert.Equal(0, pl.Len())
}

func TestPoolRecommitCheck(t *testing.T) {
	assert := require.New(t)
	p, ch := testFixture(t)

	var seed [32]byte
	seed[0] = 0x43
	otherEpoch, err := p.NewEpochChallenge(8, seed, 4)
	assert.NoError(err)

	pl, err := New(p, ch, 1, WithRecommitCheck())
	assert.NoError(err)

	// built against another epoch's challenge: rejected at the door
	crossEpoch, _ := testSolution(t, p, otherEpoch, 1, 0)
	_, err = pl.Add(crossEpoch)
	assert.ErrorIs(err, puzzle.ErrCrossEpochMismatch)

	genuine, _ := testSolution(t, p, ch, 1, 0)
	_, err = pl.Add(genuine)
	assert.NoError(err)
}

func TestPoolCapacityEviction(t *testing.T) {
	assert := require.New(t)
	p, ch := testFixture(t)

	pl, err := New(p, ch, 1, WithCapacity(2))
	assert.NoError(err)

	var worst uint64
	for i := byte(1); i <= 3; i++ {
		sol, target := testSolution(t, p, ch, i, 0)
		_, err := pl.Add(sol)
		assert.NoError(err)
		if worst == 0 || target < worst {
			worst = target
		}
	}
	assert.Equal(2, pl.Len())

	// the lowest-target solution was evicted
	for _, e := range pl.Best(2) {
		assert.GreaterOrEqual(e.Target, worst)
	}
}

func TestPoolBestOrdering(t *testing.T) {
	assert := require.New(t)
	p, ch := testFixture(t)

	pl, err := New(p, ch, 1)
	assert.NoError(err)

	for i := byte(1); i <= 5; i++ {
		sol, _ := testSolution(t, p, ch, i, uint64(i))
		_, err := pl.Add(sol)
		assert.NoError(err)
	}

	best := pl.Best(3)
	assert.Len(best, 3)
	for i := 1; i < len(best); i++ {
		assert.GreaterOrEqual(best[i-1].Target, best[i].Target)
	}
}

func TestPoolAccumulate(t *testing.T) {
	assert := require.New(t)
	p, ch := testFixture(t)

	pl, err := New(p, ch, 1)
	assert.NoError(err)

	_, err = pl.Accumulate()
	assert.ErrorIs(err, puzzle.ErrEmptySolutionSet)

	for i := byte(1); i <= 3; i++ {
		sol, _ := testSolution(t, p, ch, i, 0)
		_, err := pl.Add(sol)
		assert.NoError(err)
	}

	csol, err := pl.Accumulate()
	assert.NoError(err)
	assert.Len(csol.PartialSolutions, 3)
	assert.NoError(p.Verify(csol, ch, 1))
}

func TestPoolConcurrentAddReset(t *testing.T) {
	assert := require.New(t)
	p, ch := testFixture(t)

	pl, err := New(p, ch, 1)
	assert.NoError(err)

	// gossip submissions racing an epoch roll is the normal operating
	// condition; run under the race detector
	const nbSolutions = 8
	solutions := make([]puzzle.PartialSolution, nbSolutions)
	for i := range solutions {
		solutions[i], _ = testSolution(t, p, ch, byte(i+1), 0)
	}
	epochs := make([]*puzzle.EpochChallenge, 4)
	for i := range epochs {
		var seed [32]byte
		seed[0] = byte(0x50 + i)
		epochs[i], err = p.NewEpochChallenge(uint32(10+i), seed, 4)
		assert.NoError(err)
	}

	var wg sync.WaitGroup
	for i := range solutions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// stale submissions across a roll are rejected, not racy
			_, _ = pl.Add(solutions[i])
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, next := range epochs {
			pl.Reset(next, 1)
			_, _ = pl.Accumulate()
		}
	}()
	wg.Wait()

	assert.LessOrEqual(pl.Len(), nbSolutions)
}

func TestPoolReset(t *testing.T) {
	assert := require.New(t)
	p, ch := testFixture(t)

	pl, err := New(p, ch, 1)
	assert.NoError(err)

	sol, _ := testSolution(t, p, ch, 1, 0)
	_, err = pl.Add(sol)
	assert.NoError(err)
	assert.Equal(1, pl.Len())

	var seed [32]byte
	seed[0] = 0x99
	next, err := p.NewEpochChallenge(8, seed, 4)
	assert.NoError(err)

	pl.Reset(next, 1)
	assert.Equal(0, pl.Len())

	// the old epoch's solution no longer belongs here; with the recommit
	// check off it pools, but accumulation rejects it
	_, err = pl.Add(sol)
	assert.NoError(err)
	_, err = pl.Accumulate()
	assert.ErrorIs(err, puzzle.ErrCrossEpochMismatch)
}
