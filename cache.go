// Package papercache implements PaperCache: an in-memory, size-bounded
// key/value cache that picks its eviction policy online by sampling several
// candidate policies concurrently against a trickle of real traffic.
package papercache

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/PaperCache/paper-cache/stack"
	"github.com/PaperCache/paper-cache/trace"
)

// Version is the package's semantic version, reported by Cache.Version so a
// client library pinned against an older wire/behavior contract can refuse
// to talk to a newer cache.
const Version = "0.1.0"

// Cache is a concurrent, size-bounded key/value store with online adaptive
// eviction-policy selection. The zero value is not usable; construct one
// with New.
type Cache[K comparable, V any] struct {
	store    *objectStore[K, V]
	status   *atomicStatus
	overhead *overheadManager
	mini     *miniStackManager
	bus      *eventBus
	traceQ   *trace.Queue

	policyW *policyWorker
	ttlW    *ttlWorker
	traceW  *traceWorker

	log zerolog.Logger

	stop    chan struct{}
	closed  atomic.Bool
	rotator atomic.Uint32
}

// New constructs a Cache bounded to maxSize bytes, configured with the given
// policies (none of which may be Auto), starting on initial (which may be
// Auto, selecting among policies online, or any one of the configured
// policies).
func New[K comparable, V any](maxSize uint64, policies []Policy, initial Policy) (*Cache[K, V], error) {
	if maxSize == 0 {
		return nil, ErrZeroCacheSize
	}
	if len(policies) == 0 {
		return nil, ErrEmptyPolicies
	}

	seen := make([]Policy, 0, len(policies))
	for _, p := range policies {
		if p.Kind == Auto {
			return nil, ErrConfiguredAutoPolicy
		}
		if err := p.validate(); err != nil {
			return nil, err
		}
		for _, s := range seen {
			if s.Equal(p) {
				return nil, ErrDuplicatePolicies
			}
		}
		seen = append(seen, p)
	}

	isAuto := initial.Kind == Auto
	startPolicy := initial
	if isAuto {
		startPolicy = policies[0]
	} else {
		found := false
		for _, p := range policies {
			if p.Equal(initial) {
				found = true
				break
			}
		}
		if !found {
			return nil, ErrUnconfiguredPolicy
		}
	}

	startIndex := 0
	for i, p := range policies {
		if p.Equal(startPolicy) {
			startIndex = i
			break
		}
	}

	status := newAtomicStatus(maxSize, policies, startIndex, isAuto)
	overhead := newOverheadManager(policies)
	mini := newMiniStackManager(policies, maxSize)
	bus := newEventBus()
	traceQ := trace.NewQueue()
	stop := make(chan struct{})

	activeStack := stack.New(toStackKind(startPolicy.Kind), maxSize, startPolicy.KIn, startPolicy.KOut, startPolicy.Ratio)

	c := &Cache[K, V]{
		store:    newObjectStore[K, V](),
		status:   status,
		overhead: overhead,
		mini:     mini,
		bus:      bus,
		traceQ:   traceQ,
		log:      newLogger(),
		stop:     stop,
	}

	policyEvents := bus.subscribe()
	ttlEvents := bus.subscribe()
	traceEvents := bus.subscribe()

	c.policyW = newPolicyWorker(policyEvents, status, c, mini, traceQ, stop, activeStack)
	c.ttlW = newTTLWorker(ttlEvents, c, stop)
	c.traceW = newTraceWorker(traceEvents, traceQ, stop)

	go c.policyW.run()
	go c.ttlW.run()
	go c.traceW.run()

	c.log.Info().
		Str("max_size", humanSize(maxSize)).
		Str("policy", startPolicy.String()).
		Bool("auto", isAuto).
		Msg("cache started")

	return c, nil
}

// Get returns the value stored under key, incrementing the hit or miss
// counter and, on a hit, promoting the key in the active policy stack.
func (c *Cache[K, V]) Get(key K) (V, error) {
	var zero V
	hashed := hashKey(key)

	obj, ok := c.store.get(hashed)
	hit := ok && obj.Key() == key && !obj.IsExpired(time.Now().UnixNano())

	c.status.IncrGets()
	if hit {
		c.status.IncrHits()
	}

	_ = c.bus.publish(workerEvent{kind: eventGet, key: hashed, hit: hit})

	if !hit {
		return zero, ErrKeyNotFound
	}
	return obj.Value(), nil
}

// Peek is like Get but never counts as an access for eviction-ordering
// purposes: it neither promotes the key nor feeds the hit/miss counters,
// making it safe for introspection without perturbing the cache.
func (c *Cache[K, V]) Peek(key K) (V, error) {
	var zero V
	hashed := hashKey(key)

	obj, ok := c.store.get(hashed)
	if !ok || obj.Key() != key || obj.IsExpired(time.Now().UnixNano()) {
		return zero, ErrKeyNotFound
	}
	return obj.Value(), nil
}

// Has reports whether key is present and unexpired, without affecting
// eviction ordering or hit/miss counters.
func (c *Cache[K, V]) Has(key K) bool {
	hashed := hashKey(key)
	obj, ok := c.store.get(hashed)
	return ok && obj.Key() == key && !obj.IsExpired(time.Now().UnixNano())
}

// Set inserts or replaces the value stored under key. A ttlSeconds of 0
// means the object never expires.
func (c *Cache[K, V]) Set(key K, value V, ttlSeconds uint32) error {
	valSz := valueSize(value)
	keySz := keySize(key)
	if valSz == 0 {
		return ErrZeroValueSize
	}
	if uint64(baseSize(keySz, valSz, ttlSeconds != 0)) > c.status.MaxSize() {
		return ErrExceedingValueSize
	}

	hashed := hashKey(key)
	expiry := expiryFromTTL(ttlSeconds)
	obj := newObject(key, value, expiry)

	prev, hadOld := c.store.get(hashed)
	var oldBase ObjectSize
	if hadOld && prev.Key() == key {
		oldBase = baseSize(keySize(prev.Key()), valueSize(prev.Value()), prev.Expiry() != 0)
	} else {
		hadOld = false
	}

	c.store.set(hashed, &obj)

	newBase := baseSize(keySz, valSz, ttlSeconds != 0)
	c.status.UpdateBaseUsedSize(int64(newBase) - int64(oldBase))
	if !hadOld {
		c.status.IncrNumObjects()
	}
	c.status.IncrSets()

	_ = c.bus.publish(workerEvent{
		kind:    eventSet,
		key:     hashed,
		size:    newBase,
		oldSize: oldBase,
		hadOld:  hadOld,
		expiry:  expiry,
	})

	return nil
}

// Del removes key from the cache. Deleting an already-absent key reports
// ErrKeyNotFound: the deletion itself did nothing, even though the
// postcondition (key absent) already held.
func (c *Cache[K, V]) Del(key K) error {
	hashed := hashKey(key)
	if !c.eraseVerified(hashed, key) {
		return ErrKeyNotFound
	}
	c.status.IncrDels()
	return nil
}

// Ttl resets the expiry of an existing key. A ttlSeconds of 0 clears its
// expiry (the key becomes persistent).
func (c *Cache[K, V]) Ttl(key K, ttlSeconds uint32) error {
	hashed := hashKey(key)
	obj, ok := c.store.get(hashed)
	if !ok || obj.Key() != key {
		return ErrKeyNotFound
	}

	oldExpiry := obj.Expiry()
	newExpiry := expiryFromTTL(ttlSeconds)

	oldBase := baseSize(keySize(obj.Key()), valueSize(obj.Value()), oldExpiry != 0)
	newBase := baseSize(keySize(obj.Key()), valueSize(obj.Value()), newExpiry != 0)
	c.status.UpdateBaseUsedSize(int64(newBase) - int64(oldBase))

	obj.setExpiry(newExpiry)

	_ = c.bus.publish(workerEvent{kind: eventTtl, key: hashed, expiry: newExpiry, oldExpiry: oldExpiry})
	return nil
}

// Wipe empties the cache entirely: every object, every policy stack and
// mini-stack, the expiry index, and the trace fragment queue.
func (c *Cache[K, V]) Wipe() error {
	c.store.clear()
	c.status.Clear()
	_ = c.bus.publish(workerEvent{kind: eventWipe})
	c.log.Info().Msg("cache wiped")
	return nil
}

// Resize changes the cache's max size. A smaller max size triggers
// evictions in the background policy worker rather than synchronously here.
func (c *Cache[K, V]) Resize(maxSize uint64) error {
	if maxSize == 0 {
		return ErrZeroCacheSize
	}
	c.status.SetMaxSize(maxSize)
	_ = c.bus.publish(workerEvent{kind: eventResize, maxSize: maxSize})
	return nil
}

// Policy switches the active eviction policy, given its external text form
// (see ParsePolicy). Switching to "auto" hands policy selection back to the
// online selector; switching to a concrete policy performs a lossless
// online reconstruction rather than discarding cache contents.
func (c *Cache[K, V]) Policy(s string) error {
	parsed, err := ParsePolicy(s)
	if err != nil {
		return err
	}

	if parsed.Kind == Auto {
		c.status.SetAutoPolicy()
		return nil
	}

	found := false
	for _, p := range c.status.Policies() {
		if p.Equal(parsed) {
			found = true
			break
		}
	}
	if !found {
		return ErrUnconfiguredPolicy
	}

	c.log.Info().Str("policy", parsed.String()).Msg("policy switch requested")
	_ = c.bus.publish(workerEvent{kind: eventPolicy, policy: parsed})
	return nil
}

// MaxSize returns the cache's configured max size, in bytes.
func (c *Cache[K, V]) MaxSize() uint64 {
	return c.status.MaxSize()
}

// Size returns the number of bytes key currently occupies: its base size
// (key, value, and TTL bookkeeping if it expires) plus the active policy's
// per-object overhead. It is subject to the same collision and expiry
// guards as Get.
func (c *Cache[K, V]) Size(key K) (uint64, error) {
	hashed := hashKey(key)
	obj, ok := c.store.get(hashed)
	if !ok || obj.Key() != key || obj.IsExpired(time.Now().UnixNano()) {
		return 0, ErrKeyNotFound
	}

	base := baseSize(keySize(obj.Key()), valueSize(obj.Value()), obj.Expiry() != 0)
	total := base + c.overhead.policyOverhead(c.status.Policy())
	return uint64(total), nil
}

// Status returns a snapshot of the cache's counters and configuration.
func (c *Cache[K, V]) Status() *Status {
	return c.status.Snapshot()
}

// Version reports the package version.
func (c *Cache[K, V]) Version() string {
	return Version
}

// Close stops the background workers. A closed Cache must not be used
// afterward.
func (c *Cache[K, V]) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stop)
		c.bus.close()
		c.log.Info().Msg("cache closed")
	}
}

// eraseVerified removes key if, and only if, the object currently stored
// under its hash actually belongs to key: two different raw keys landing on
// the same 64-bit hash must never let one delete be mistaken for the other.
func (c *Cache[K, V]) eraseVerified(hashed HashedKey, key K) bool {
	sh := c.store.shardFor(hashed)
	sh.mu.Lock()
	obj, ok := sh.objects[hashed]
	if !ok || obj.Key() != key {
		sh.mu.Unlock()
		return false
	}
	delete(sh.objects, hashed)
	sh.mu.Unlock()

	c.afterErase(hashed, obj)
	return true
}

// eraseHashed removes whatever object is currently stored under hashed,
// without a raw-key check: used by the background workers, which only ever
// learn about a key as its hash (from the active stack or the expiry
// index) and have no raw key to verify against.
func (c *Cache[K, V]) eraseHashed(hashed HashedKey) {
	obj, ok := c.store.del(hashed)
	if !ok {
		return
	}
	c.afterErase(hashed, obj)
}

// eraseArbitrary removes some key still present in the store. It exists so
// the eviction loop always makes progress even if the active stack's
// bookkeeping has drifted out of sync with the object map (the stack
// believes it tracks a key the map no longer has, or vice versa).
func (c *Cache[K, V]) eraseArbitrary() bool {
	start := int(c.rotator.Add(1))
	key, ok := c.store.arbitraryKey(start)
	if !ok {
		return false
	}
	c.eraseHashed(key)
	return true
}

// afterErase performs the bookkeeping shared by every erase path: status
// counters and the del event, fanned out to the stacks, mini-stacks, expiry
// index, and trace log.
func (c *Cache[K, V]) afterErase(hashed HashedKey, obj *Object[K, V]) {
	base := baseSize(keySize(obj.Key()), valueSize(obj.Value()), obj.Expiry() != 0)
	c.status.UpdateBaseUsedSize(-int64(base))
	c.status.DecrNumObjects()
	_ = c.bus.publish(workerEvent{kind: eventDel, key: hashed})
}
