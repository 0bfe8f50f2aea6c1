// Package puzzle implements the network's coinbase puzzle: a
// proof-of-succinct-work scheme in which a prover's work product is a KZG
// commitment to a polynomial derived from its address, a nonce and the
// current epoch challenge.
//
// Provers search nonces until the commitment's proof target meets the epoch
// minimum (see [Puzzle.Mine]). A validator or pool accumulates many partial
// solutions into one [CoinbaseSolution] whose aggregate opening proof is
// checked with a single pairing, independent of the number of contributors
// (see [Puzzle.Accumulate] and [Puzzle.Verify]).
package puzzle
