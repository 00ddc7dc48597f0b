package utils

import (
	"encoding/hex"
	"hash/fnv"
)

func U64ToBytes(u uint64) []byte {
	return []byte{
		byte(u >> 56), byte(u >> 48), byte(u >> 40), byte(u >> 32),
		byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u),
	}
}

// U64 hashes a string with FNV-1a. Order-sensitive, non-cryptographic.
func U64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// Mix64 folds two hashes into one, preserving order sensitivity.
func Mix64(a, b uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(U64ToBytes(a))
	_, _ = h.Write(U64ToBytes(b))
	return h.Sum64()
}

// Hex64 renders a hash as a fixed-width 16-char lowercase hex string.
func Hex64(u uint64) string {
	return hex.EncodeToString(U64ToBytes(u))
}
