package papercache

import "time"

// expiryEntry is one min-heap element: the earliest expiry sorts first.
type expiryEntry struct {
	expiry int64
	key    HashedKey
}

func (e *expiryEntry) Less(other *expiryEntry) bool { return e.expiry < other.expiry }

// expiryIndex is an ordered map from expiry instant to hashed key. It's
// backed by a min-heap rather than a balanced tree: heaps don't support
// arbitrary removal, so a reindex or delete just drops the key from
// current, and popExpired lazily discards any heap entry whose expiry no
// longer matches what's on record.
type expiryIndex struct {
	heap    *MinHeap[expiryEntry]
	current map[HashedKey]int64
}

func newExpiryIndex() *expiryIndex {
	return &expiryIndex{
		heap:    NewMinHeap[expiryEntry](),
		current: make(map[HashedKey]int64),
	}
}

func (idx *expiryIndex) insert(key HashedKey, expiry int64) {
	if expiry == 0 {
		return
	}
	idx.current[key] = expiry
	idx.heap.Insert(&expiryEntry{expiry: expiry, key: key})
}

func (idx *expiryIndex) remove(key HashedKey) {
	delete(idx.current, key)
}

func (idx *expiryIndex) reindex(key HashedKey, newExpiry int64) {
	idx.remove(key)
	idx.insert(key, newExpiry)
}

// popExpired returns every key whose recorded expiry is <= now, in expiry
// order, discarding stale heap entries left behind by remove/reindex along
// the way.
func (idx *expiryIndex) popExpired(now int64) []HashedKey {
	var out []HashedKey
	for {
		top, ok := idx.heap.Peek()
		if !ok || top.expiry > now {
			break
		}
		idx.heap.Extract()

		current, tracked := idx.current[top.key]
		if !tracked || current != top.expiry {
			continue
		}
		delete(idx.current, top.key)
		out = append(out, top.key)
	}
	return out
}

// hasWithin reports whether the next (possibly stale) expiry falls within d
// of now; used only to pick the worker's polling interval, so a stale
// overestimate just costs one extra wakeup.
func (idx *expiryIndex) hasWithin(d time.Duration, now int64) bool {
	top, ok := idx.heap.Peek()
	if !ok {
		return false
	}
	return time.Duration(top.expiry-now) <= d
}

func (idx *expiryIndex) clear() {
	idx.heap = NewMinHeap[expiryEntry]()
	idx.current = make(map[HashedKey]int64)
}

// ttlWorker maintains the expiry index and prunes due objects out of the
// object map, the active stack, and every mini-stack via the same erase
// path the foreground del() uses. That path publishes a Del event to every
// bus subscriber, the trace worker included, so each expiry-driven removal
// is recorded in the trace log as a Del.
type ttlWorker struct {
	events <-chan workerEvent
	cache  eraser
	index  *expiryIndex
	stop   <-chan struct{}
}

// eraser is the subset of Cache the background workers need; kept as an
// interface so these files don't have to know about Cache's generic
// parameters.
type eraser interface {
	eraseHashed(key HashedKey)
	eraseArbitrary() bool
}

func newTTLWorker(events <-chan workerEvent, cache eraser, stop <-chan struct{}) *ttlWorker {
	return &ttlWorker{
		events: events,
		cache:  cache,
		index:  newExpiryIndex(),
		stop:   stop,
	}
}

func (w *ttlWorker) run() {
	for {
		now := time.Now().UnixNano()

	drain:
		for {
			select {
			case e, ok := <-w.events:
				if !ok {
					return
				}
				w.handle(e)
			default:
				break drain
			}
		}

		for _, key := range w.index.popExpired(now) {
			w.cache.eraseHashed(key)
		}

		delay := time.Second
		if w.index.hasWithin(2*time.Second, now) {
			delay = time.Millisecond
		}

		select {
		case <-w.stop:
			return
		case <-time.After(delay):
		}
	}
}

func (w *ttlWorker) handle(e workerEvent) {
	switch e.kind {
	case eventSet:
		w.index.remove(e.key)
		w.index.insert(e.key, e.expiry)
	case eventDel:
		w.index.remove(e.key)
	case eventTtl:
		w.index.reindex(e.key, e.expiry)
	case eventWipe:
		w.index.clear()
	}
}
