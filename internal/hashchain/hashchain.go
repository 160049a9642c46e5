// Package hashchain computes and verifies the linked hash/signature
// sequence over canonical record payloads. Pure functions, no I/O.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeHash returns the hex SHA-256 digest of the canonical payload
// concatenated with the previous record's hash. The empty string is the
// genesis sentinel. A separator byte keeps (payload, prevHash) pairs
// unambiguous.
func ComputeHash(payload []byte, prevHash string) string {
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte{0})
	h.Write([]byte(prevHash))

	return hex.EncodeToString(h.Sum(nil))
}

// BundleHash digests an ordered sequence of record hashes into one
// value, binding both content and order of an exported range.
func BundleHash(hashes []string) string {
	h := sha256.New()
	for _, rh := range hashes {
		h.Write([]byte(rh))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// SigningInput is the byte sequence signatures are computed over: the
// record hash followed by the canonical payload, so a signature binds
// both the chain position and the record content.
func SigningInput(hash string, payload []byte) []byte {
	input := make([]byte, 0, len(hash)+1+len(payload))
	input = append(input, hash...)
	input = append(input, 0)
	input = append(input, payload...)

	return input
}
