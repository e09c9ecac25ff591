package papercache

// workerEventKind tags a workerEvent; Go has no tagged-union enum, so the
// payload fields below are simply left zero when not relevant to the kind.
type workerEventKind uint8

const (
	eventGet workerEventKind = iota
	eventSet
	eventDel
	eventTtl
	eventWipe
	eventResize
	eventPolicy
)

// workerEvent is what the foreground emits to the manager bus after every
// mutating (or hit/miss-recording) operation. Events are small and cheaply
// copyable so fanning one out to several workers is just a struct copy.
type workerEvent struct {
	kind workerEventKind

	key HashedKey
	hit bool // Get

	size    ObjectSize // Set
	oldSize ObjectSize // Set, if the key already existed
	hadOld  bool       // Set

	expiry    int64 // Set, Ttl: the object's (new) expiry
	oldExpiry int64 // Ttl: the previous expiry

	maxSize uint64 // Resize

	policy Policy // Policy
}

// stackEvent projects a workerEvent onto the subset that the policy stacks
// and trace log care about. Ttl never converts: explicit ttl() changes are
// not traced, matching the cache's choice not to treat TTL reindexing as a
// stack-decisive event.
func (e workerEvent) toStackEvent() (stackEventKind, bool) {
	switch e.kind {
	case eventGet:
		if !e.hit {
			return stackEventKind{}, false
		}
		return stackEventKind{kind: eventGet, key: e.key}, true
	case eventSet:
		return stackEventKind{kind: eventSet, key: e.key, size: uint64(e.size)}, true
	case eventDel:
		return stackEventKind{kind: eventDel, key: e.key}, true
	case eventWipe:
		return stackEventKind{kind: eventWipe}, true
	case eventResize:
		return stackEventKind{kind: eventResize, size: e.maxSize}, true
	default:
		return stackEventKind{}, false
	}
}

// stackEventKind is the in-memory mirror of trace.Event, kept separate so
// the trace package doesn't need to import this one.
type stackEventKind struct {
	kind workerEventKind
	key  HashedKey
	size uint64
}
