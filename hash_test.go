package papercache

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestHashKeyIsDeterministic(t *testing.T) {
	require.Equal(t, hashKey("same"), hashKey("same"))
	require.Equal(t, hashKey(42), hashKey(42))
	require.Equal(t, hashKey(uint64(7)), hashKey(uint64(7)))
}

func TestHashKeyStringMatchesXxhash(t *testing.T) {
	require.Equal(t, xxhash.Sum64String("hello"), hashKey("hello"))
}

func TestHashKeyBytesMatchesXxhash(t *testing.T) {
	b := []byte("hello")
	require.Equal(t, xxhash.Sum64(b), hashKey(b))
}

func TestHashKeyIntegerKindsAgreeOnCommonValue(t *testing.T) {
	// the same numeric value via different integer kinds must hash the same
	// way, since hashUint64 normalizes through a uint64 byte representation.
	require.Equal(t, hashKey(int64(7)), hashKey(uint64(7)))
	require.Equal(t, hashKey(int32(7)), hashKey(uint64(7)))
}

func TestHashKeyDistinguishesDifferentValues(t *testing.T) {
	require.NotEqual(t, hashKey("a"), hashKey("b"))
	require.NotEqual(t, hashKey(1), hashKey(2))
}

type structKey struct{ A, B int }

func TestHashKeyFallsBackForStructKeys(t *testing.T) {
	require.Equal(t, hashKey(structKey{1, 2}), hashKey(structKey{1, 2}))
	require.NotEqual(t, hashKey(structKey{1, 2}), hashKey(structKey{2, 1}))
}
