package papercache

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// hashKey reduces an arbitrary comparable key to the 64-bit HashedKey that
// every internal structure (object map shard, policy stack, mini-stack,
// expiry index) actually indexes on. Collisions are expected and handled at
// the object-map level by keeping the raw key alongside the hash and
// verifying it on lookup, so this only needs to be fast and well
// distributed, not injective.
func hashKey[K comparable](key K) HashedKey {
	switch v := any(key).(type) {
	case string:
		return xxhash.Sum64String(v)
	case []byte:
		return xxhash.Sum64(v)
	case int:
		return hashUint64(uint64(v))
	case int8:
		return hashUint64(uint64(v))
	case int16:
		return hashUint64(uint64(v))
	case int32:
		return hashUint64(uint64(v))
	case int64:
		return hashUint64(uint64(v))
	case uint:
		return hashUint64(uint64(v))
	case uint8:
		return hashUint64(uint64(v))
	case uint16:
		return hashUint64(uint64(v))
	case uint32:
		return hashUint64(uint64(v))
	case uint64:
		return hashUint64(v)
	default:
		// Rare path for struct/array keys: stable textual form, hashed the
		// same way a string key would be.
		return xxhash.Sum64String(fmt.Sprintf("%+v", v))
	}
}

func hashUint64(v uint64) HashedKey {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return xxhash.Sum64(buf[:])
}
