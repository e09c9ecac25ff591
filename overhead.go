package papercache

// Per-policy per-object bookkeeping overhead, in bytes. These are constants
// rather than measured values: they exist so that switching the active
// policy revalues reported memory usage instantly, without walking every
// object.
const (
	lfuOverhead    ObjectSize = 32
	fifoOverhead   ObjectSize = 24
	clockOverhead  ObjectSize = 25
	sieveOverhead  ObjectSize = 25
	lruOverhead    ObjectSize = 24
	mruOverhead    ObjectSize = 24
	twoQOverhead   ObjectSize = 28
	arcOverhead    ObjectSize = 28
	s3FifoOverhead ObjectSize = 29

	// ttlOverhead is charged against base_used_size for any object that
	// carries an expiry, modeling the cost of its entry in the expiry
	// index.
	ttlOverhead ObjectSize = 48
)

// policyOverhead returns the constant per-object bookkeeping cost of
// maintaining the given policy's stack.
func policyOverhead(p Policy) ObjectSize {
	switch p.Kind {
	case Lfu:
		return lfuOverhead
	case Fifo:
		return fifoOverhead
	case Clock:
		return clockOverhead
	case Sieve:
		return sieveOverhead
	case Lru:
		return lruOverhead
	case Mru:
		return mruOverhead
	case TwoQ:
		return twoQOverhead
	case Arc:
		return arcOverhead
	case S3Fifo:
		return s3FifoOverhead
	default:
		return 0
	}
}

// overheadManager is a declarative lookup table over the policies a cache
// was configured with; it never mutates after construction.
type overheadManager struct {
	policies []Policy
}

func newOverheadManager(policies []Policy) *overheadManager {
	return &overheadManager{policies: policies}
}

func (m *overheadManager) policyOverhead(p Policy) ObjectSize {
	return policyOverhead(p)
}

// baseSize is the portion of an object's footprint that does not depend on
// the active policy: its key, its value, and TTL bookkeeping if it expires.
func baseSize(keySz, valueSz ObjectSize, hasExpiry bool) ObjectSize {
	size := keySz + valueSz
	if hasExpiry {
		size += ttlOverhead
	}
	return size
}

// totalSize is the base size plus the bookkeeping overhead of the currently
// active policy.
func (m *overheadManager) totalSize(keySz, valueSz ObjectSize, hasExpiry bool, active Policy) ObjectSize {
	return baseSize(keySz, valueSz, hasExpiry) + m.policyOverhead(active)
}
