package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	stdhash "hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a 256-bit digest used for fingerprints and Merkle nodes.
type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	Blake2b256 Algorithm = "blake2b_256"
	SHA3256    Algorithm = "sha3_256"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = SHA256

// Algorithms lists every supported algorithm name.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, Blake2b256, SHA3256}
}

func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		return DefaultAlgorithm, nil
	}
	for _, a := range Algorithms() {
		if string(a) == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("unsupported hash algorithm: %s (valid options: sha256, blake2b_256, sha3_256)", name)
}

func (a Algorithm) New() (stdhash.Hash, error) {
	switch a {
	case SHA256, "":
		return sha256.New(), nil
	case Blake2b256:
		return blake2b.New256(nil)
	case SHA3256:
		return sha3.New256(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", a)
	}
}

func (a Algorithm) String() string {
	if a == "" {
		return string(DefaultAlgorithm)
	}
	return string(a)
}

// Sum returns the hex digest of data.
func (a Algorithm) Sum(data []byte) (string, error) {
	h, err := a.New()
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumWithDomain hashes domain, a 0x00 separator and data.
// The separator keeps the domain/data boundary unambiguous.
func (a Algorithm) SumWithDomain(domain string, data []byte) (string, error) {
	h, err := a.New()
	if err != nil {
		return "", err
	}
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Calculate canonicalizes data and returns its digest.
func (a Algorithm) Calculate(data any) (string, error) {
	canonical, err := MarshalCanonical(data)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize data: %w", err)
	}
	return a.Sum(canonical)
}
