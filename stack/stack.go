package stack

// Stack is the uniform contract every eviction-policy variant implements.
// Stacks never store values; they participate only in ordering decisions
// over hashed keys.
type Stack interface {
	// Insert admits a new key with the given reported size.
	Insert(key Key, size Size)
	// Update records an access to an already-present key.
	Update(key Key)
	// Remove evicts bookkeeping for a key regardless of eviction pressure.
	Remove(key Key)
	// Contains reports whether key is currently tracked.
	Contains(key Key) bool
	// Resize adjusts the stack's capacity (used size threshold for the
	// compound policies; purely informational for the simple ones).
	Resize(maxSize uint64)
	// Clear drops all tracked keys.
	Clear()
	// EvictOne selects and removes the next eviction candidate.
	EvictOne() (Key, bool)
	// Len reports the number of tracked keys.
	Len() int
	// Kind reports which policy family this stack implements.
	Kind() Kind
}

// Kind identifies one of the eviction-policy families.
type Kind uint8

const (
	Lfu Kind = iota
	Fifo
	Clock
	Sieve
	Lru
	Mru
	TwoQ
	Arc
	S3Fifo
)

// New constructs an empty Stack of the given kind and capacity. kIn/kOut are
// only consulted for TwoQ; ratio is only consulted for S3Fifo.
func New(kind Kind, maxSize uint64, kIn, kOut, ratio float64) Stack {
	switch kind {
	case Lfu:
		return newLfuStack()
	case Fifo:
		return newFifoStack()
	case Clock:
		return newClockStack()
	case Sieve:
		return newSieveStack()
	case Lru:
		return newLruStack()
	case Mru:
		return newMruStack()
	case TwoQ:
		return newTwoQStack(maxSize, kIn, kOut)
	case Arc:
		return newArcStack(maxSize)
	case S3Fifo:
		return newS3FifoStack(maxSize, ratio)
	default:
		panic("stack: unknown kind")
	}
}
