// Package address derives launch and mint addresses.
//
// Addresses are program derived addresses: sha256 over the seeds, a bump byte, the program id and
// the "ProgramDerivedAddress" marker, taking the first bump (counting down from 255) whose hash is
// not a valid ed25519 point.
package address

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// MaxSeedLength is the longest single seed accepted.
const MaxSeedLength = 32

const pdaMarker = "ProgramDerivedAddress"

var (
	// ErrSeedTooLong is returned when a seed exceeds MaxSeedLength.
	ErrSeedTooLong = errors.New("seed too long")

	// ErrNoViableBump is returned when every bump lands on the curve.
	ErrNoViableBump = errors.New("no viable bump seed")

	// ErrInvalidProgramID is returned for program ids that are not 32-byte base58 keys.
	ErrInvalidProgramID = errors.New("invalid program id")
)

// DerivePDA derives a program derived address, returning the base58 address and its bump.
func DerivePDA(seeds [][]byte, programID []byte) (string, uint8, error) {
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return "", 0, fmt.Errorf("%w: %d bytes", ErrSeedTooLong, len(seed))
		}
	}

	for bump := 255; bump > 0; bump-- {
		data := make([]byte, 0, 64+len(programID)+len(pdaMarker))
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programID...)
		data = append(data, pdaMarker...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), uint8(bump), nil
		}
	}

	return "", 0, ErrNoViableBump
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// DecodeKey decodes a base58 32-byte public key.
func DecodeKey(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("key %q decodes to %d bytes", s, len(b))
	}
	return b, nil
}

// accountSeed returns the seed bytes for an account identifier: the raw key for base58
// public keys, the identifier bytes otherwise.
func accountSeed(account string) []byte {
	if b, err := DecodeKey(account); err == nil {
		return b
	}
	return []byte(account)
}

// LaunchSeeds returns the seeds of a launch address: creator key and little-endian index.
func LaunchSeeds(creator string, index uint32) [][]byte {
	idx := make([]byte, 4)
	binary.LittleEndian.PutUint32(idx, index)
	return [][]byte{accountSeed(creator), idx}
}

// MintSeeds returns the seeds of a mint address: the little-endian seed value.
func MintSeeds(seed uint64) [][]byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, seed)
	return [][]byte{b}
}
