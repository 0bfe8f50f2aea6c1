package puzzle

import "errors"

var (
	// ErrInvalidDegreeBound is returned when an epoch asks for a challenge
	// degree the setup cannot serve. The epoch must be rejected; there is no
	// way to recover without a larger setup.
	ErrInvalidDegreeBound = errors.New("degree bound exceeds setup max degree")

	// ErrBelowMinimumTarget signals a partial solution that does not meet the
	// epoch's minimum proof target. Inside the mining loop this is silent
	// control flow; it only surfaces when a caller hands such a solution to
	// the accumulator.
	ErrBelowMinimumTarget = errors.New("proof target below epoch minimum")

	// ErrCrossEpochMismatch is returned by the accumulator when a partial
	// solution was constructed against a different epoch challenge.
	ErrCrossEpochMismatch = errors.New("partial solution targets a different epoch challenge")

	// ErrEmptySolutionSet is returned when accumulating zero partial solutions.
	ErrEmptySolutionSet = errors.New("empty partial solution set")

	// ErrDuplicateSolution is returned when the same (address, nonce) pair
	// appears more than once in a batch.
	ErrDuplicateSolution = errors.New("duplicate partial solution")

	// ErrPuzzleVerificationFailed is returned by Verify when any member or the
	// aggregate opening proof fails. The whole coinbase solution is rejected;
	// there is no partial credit.
	ErrPuzzleVerificationFailed = errors.New("coinbase solution verification failed")

	// ErrNoSolutionFound is returned by Mine when the attempt budget is
	// exhausted before a solution meeting the minimum target is found.
	ErrNoSolutionFound = errors.New("no solution found within attempt budget")
)
