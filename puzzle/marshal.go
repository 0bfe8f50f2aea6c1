package puzzle

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/blang/semver/v4"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
	"github.com/consensys/posw"
	"github.com/consensys/posw/logger"
	"github.com/fxamacker/cbor/v2"
)

// Byte encodings use deterministic CBOR for the structural parts and the
// gnark-crypto encodings for curve points (compressed G1, subgroup-checked on
// decode). They must stay identical between prover and verifier builds; any
// change is versioned through the keys header.

type partialSolutionRaw struct {
	Address    []byte `cbor:"1,keyasint"`
	Nonce      uint64 `cbor:"2,keyasint"`
	Commitment []byte `cbor:"3,keyasint"`
}

type coinbaseSolutionRaw struct {
	PartialSolutions []partialSolutionRaw `cbor:"1,keyasint"`
	ProofQuotient    []byte               `cbor:"2,keyasint"`
	ProofValue       []byte               `cbor:"3,keyasint"`
}

func encMode() (cbor.EncMode, error) {
	return cbor.CoreDetEncOptions().EncMode()
}

func (s *PartialSolution) toRaw() partialSolutionRaw {
	commitment := s.Commitment.Bytes()
	return partialSolutionRaw{
		Address:    append([]byte(nil), s.Address[:]...),
		Nonce:      s.Nonce,
		Commitment: commitment[:],
	}
}

func (s *PartialSolution) fromRaw(raw *partialSolutionRaw) error {
	if len(raw.Address) != len(s.Address) {
		return fmt.Errorf("invalid address length %d", len(raw.Address))
	}
	copy(s.Address[:], raw.Address)
	s.Nonce = raw.Nonce
	if _, err := s.Commitment.SetBytes(raw.Commitment); err != nil {
		return fmt.Errorf("decode commitment: %w", err)
	}
	return nil
}

// MarshalBinary encodes the partial solution with deterministic CBOR.
func (s *PartialSolution) MarshalBinary() ([]byte, error) {
	em, err := encMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(s.toRaw())
}

// UnmarshalBinary decodes a partial solution, subgroup-checking the
// commitment.
func (s *PartialSolution) UnmarshalBinary(data []byte) error {
	var raw partialSolutionRaw
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	return s.fromRaw(&raw)
}

// MarshalBinary encodes the coinbase solution with deterministic CBOR.
func (cs *CoinbaseSolution) MarshalBinary() ([]byte, error) {
	raw := coinbaseSolutionRaw{
		PartialSolutions: make([]partialSolutionRaw, len(cs.PartialSolutions)),
		ProofValue:       cs.Proof.ClaimedValue.Marshal(),
	}
	quotient := cs.Proof.H.Bytes()
	raw.ProofQuotient = quotient[:]
	for i := range cs.PartialSolutions {
		raw.PartialSolutions[i] = cs.PartialSolutions[i].toRaw()
	}

	em, err := encMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(raw)
}

// UnmarshalBinary decodes a coinbase solution, subgroup-checking every curve
// point.
func (cs *CoinbaseSolution) UnmarshalBinary(data []byte) error {
	var raw coinbaseSolutionRaw
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}

	solutions := make([]PartialSolution, len(raw.PartialSolutions))
	for i := range raw.PartialSolutions {
		if err := solutions[i].fromRaw(&raw.PartialSolutions[i]); err != nil {
			return fmt.Errorf("partial solution %d: %w", i, err)
		}
	}

	var proof kzg.OpeningProof
	if _, err := proof.H.SetBytes(raw.ProofQuotient); err != nil {
		return fmt.Errorf("decode proof quotient: %w", err)
	}
	if len(raw.ProofValue) != fr.Bytes {
		return fmt.Errorf("invalid proof value length %d", len(raw.ProofValue))
	}
	proof.ClaimedValue.SetBytes(raw.ProofValue)

	cs.PartialSolutions = solutions
	cs.Proof = proof
	return nil
}

// keysHeader is serialized ahead of the raw SRS bytes. Version pins the
// library release the keys were produced with: regenerating keys or changing
// challenge derivation parameters changes all subsequent commitments'
// semantics, so both travel under the same version.
type keysHeader struct {
	Version     string `cbor:"1,keyasint"`
	MaxDegree   uint32 `cbor:"2,keyasint"`
	ScalarField string `cbor:"3,keyasint"`
}

// WriteTo serializes the puzzle keys: a deterministic CBOR header
// (length-prefixed) followed by the gnark-crypto SRS encoding.
func (p *Puzzle) WriteTo(w io.Writer) (int64, error) {
	em, err := encMode()
	if err != nil {
		return 0, err
	}
	header, err := em.Marshal(keysHeader{
		Version:     posw.Version.String(),
		MaxDegree:   p.maxDegree,
		ScalarField: fr.Modulus().Text(16),
	})
	if err != nil {
		return 0, err
	}

	var written int64
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(header)))
	n, err := w.Write(lenBuf[:])
	written += int64(n)
	if err != nil {
		return written, err
	}
	n, err = w.Write(header)
	written += int64(n)
	if err != nil {
		return written, err
	}

	srs := kzg.SRS{Pk: p.pk, Vk: p.vk}
	m, err := srs.WriteTo(w)
	written += m
	return written, err
}

// ReadFrom deserializes puzzle keys produced by WriteTo. A library version
// mismatch is logged as a warning; a scalar field mismatch is an error.
func (p *Puzzle) ReadFrom(r io.Reader) (int64, error) {
	var read int64
	var lenBuf [4]byte
	n, err := io.ReadFull(r, lenBuf[:])
	read += int64(n)
	if err != nil {
		return read, err
	}
	headerBytes := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	n, err = io.ReadFull(r, headerBytes)
	read += int64(n)
	if err != nil {
		return read, err
	}

	var header keysHeader
	if err := cbor.Unmarshal(headerBytes, &header); err != nil {
		return read, fmt.Errorf("decode keys header: %w", err)
	}
	objectVersion, err := semver.Parse(header.Version)
	if err != nil {
		return read, fmt.Errorf("parse keys version: %w", err)
	}
	if posw.Version.Compare(objectVersion) != 0 {
		log := logger.Logger()
		log.Warn().Str("binary", posw.Version.String()).Str("object", objectVersion.String()).Msg("posw version (binary) mismatch with serialized keys. there are no guarantees on compatibility")
	}
	if header.ScalarField != fr.Modulus().Text(16) {
		return read, fmt.Errorf("unsupported scalar field %s", header.ScalarField)
	}

	var srs kzg.SRS
	m, err := srs.ReadFrom(r)
	read += m
	if err != nil {
		return read, err
	}
	q, err := NewPuzzle(&srs, header.MaxDegree)
	if err != nil {
		return read, err
	}
	*p = *q
	return read, nil
}

var (
	_ io.WriterTo   = (*Puzzle)(nil)
	_ io.ReaderFrom = (*Puzzle)(nil)
)
