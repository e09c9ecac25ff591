package papercache

import (
	"reflect"
	"time"
)

// ObjectSize is a reported payload size in bytes.
type ObjectSize = uint32

// HashedKey is the 64-bit hash used as the sole internal index into the
// object map and every policy stack. Raw keys are never used for ordering.
type HashedKey = uint64

// Object owns the raw key (for collision verification), a shared handle to
// the value, and an optional expiry. It is immutable after construction
// except for its expiry, which ttl() may rewrite in place.
type Object[K comparable, V any] struct {
	key    K
	value  V
	expiry int64 // UnixNano deadline; 0 means no expiry
}

func newObject[K comparable, V any](key K, value V, expiresAt int64) Object[K, V] {
	return Object[K, V]{key: key, value: value, expiry: expiresAt}
}

func (o *Object[K, V]) Value() V { return o.value }
func (o *Object[K, V]) Key() K   { return o.key }

// Expiry returns the UnixNano deadline, or 0 if the object never expires.
func (o *Object[K, V]) Expiry() int64 { return o.expiry }

func (o *Object[K, V]) setExpiry(expiresAt int64) { o.expiry = expiresAt }

// IsExpired reports whether an expiry is set and not in the future.
func (o *Object[K, V]) IsExpired(now int64) bool {
	return o.expiry != 0 && o.expiry <= now
}

// expiryFromTTL converts a TTL given in seconds (0 meaning no expiry) to an
// absolute UnixNano deadline.
func expiryFromTTL(ttlSeconds uint32) int64 {
	if ttlSeconds == 0 {
		return 0
	}
	return time.Now().Add(time.Duration(ttlSeconds) * time.Second).UnixNano()
}

// Sized is implemented by values that know their own in-cache payload size.
// Types that don't implement it fall back to a reflect-based estimate, the
// same role ristretto's Config.Cost callback plays for arbitrary values.
type Sized interface {
	CacheSize() uint32
}

// valueSize returns the caller-declared size, or a structural best guess.
func valueSize[V any](v V) ObjectSize {
	if sized, ok := any(v).(Sized); ok {
		return sized.CacheSize()
	}
	return reflectSize(reflect.ValueOf(v))
}

// keySize mirrors valueSize for the raw key, which the overhead manager also
// charges against base_used_size since it must be retained for the
// collision guard in erase().
func keySize[K comparable](k K) ObjectSize {
	if sized, ok := any(k).(Sized); ok {
		return sized.CacheSize()
	}
	return reflectSize(reflect.ValueOf(k))
}

func reflectSize(v reflect.Value) ObjectSize {
	switch v.Kind() {
	case reflect.String:
		return ObjectSize(v.Len())
	case reflect.Slice, reflect.Array:
		elemSize := v.Type().Elem().Size()
		return ObjectSize(uintptr(v.Len()) * elemSize)
	case reflect.Invalid:
		return 0
	default:
		return ObjectSize(v.Type().Size())
	}
}
