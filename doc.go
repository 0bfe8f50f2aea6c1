// Package posw implements the proof-of-succinct-work coinbase puzzle of a
// zero-knowledge virtual machine network.
//
// The puzzle lets many independent provers contribute partial cryptographic
// work (KZG polynomial commitments bound to a per-epoch challenge) which a
// validator verifies in constant pairing time regardless of how many
// contributions arrive:
//   - puzzle: challenge derivation, partial-solution construction and mining,
//     accumulation into a single CoinbaseSolution, verification
//   - pool: validator/pool-side collection of partial solutions ahead of
//     accumulation
//
// The puzzle operates over the BLS12-377 curve through
// github.com/consensys/gnark-crypto.
package posw

import (
	"github.com/blang/semver/v4"
	"github.com/consensys/gnark-crypto/ecc"
)

var Version = semver.MustParse("0.1.0")

// CurveID returns the curve the puzzle is instantiated over.
func CurveID() ecc.ID {
	return ecc.BLS12_377
}
