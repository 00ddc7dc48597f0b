package cache

import (
	"encoding/binary"
)

// FixedKey is a packed cache key. Fixed width keeps key construction
// allocation-free on the query path.
type FixedKey [12]byte

// OwnerKey builds the cache key for an owner-scoped query.
//
// Layout:
//
//	[0-7]:  owner pointer identity (8 bytes)
//	[8]:    owner kind tag (1 byte)
//	[9-11]: reserved
func OwnerKey(owner uintptr, kind uint8) FixedKey {
	var key FixedKey

	binary.BigEndian.PutUint64(key[0:8], uint64(owner))
	key[8] = kind

	return key // No heap allocation - returns by value
}
