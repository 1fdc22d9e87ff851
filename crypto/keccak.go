package crypto

import "golang.org/x/crypto/sha3"

// HashSize is the output size in bytes of Keccak256Hash.
const HashSize = 32

// Hash is a fixed-size Keccak-256 digest.
type Hash [HashSize]byte

// BytesToHash truncates or zero-pads b on the left to fit a Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashSize {
		b = b[len(b)-HashSize:]
	}
	copy(h[HashSize-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

// Keccak256 calculates the Keccak-256 hash of the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash calculates Keccak-256 and returns it as a Hash.
func Keccak256Hash(data ...[]byte) Hash {
	return BytesToHash(Keccak256(data...))
}
