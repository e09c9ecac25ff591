package papercache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpiryIndexPopExpiredInOrder(t *testing.T) {
	idx := newExpiryIndex()
	now := time.Now().UnixNano()

	idx.insert(1, now+int64(30*time.Millisecond))
	idx.insert(2, now+int64(10*time.Millisecond))
	idx.insert(3, now+int64(20*time.Millisecond))

	got := idx.popExpired(now + int64(25*time.Millisecond))
	require.Equal(t, []HashedKey{2, 3}, got)

	got = idx.popExpired(now + int64(100*time.Millisecond))
	require.Equal(t, []HashedKey{1}, got)
}

func TestExpiryIndexZeroExpiryNeverInserted(t *testing.T) {
	idx := newExpiryIndex()
	idx.insert(1, 0)
	require.Empty(t, idx.popExpired(time.Now().UnixNano()))
}

func TestExpiryIndexReindexReplacesDeadline(t *testing.T) {
	idx := newExpiryIndex()
	now := time.Now().UnixNano()
	idx.insert(1, now+int64(10*time.Millisecond))
	idx.reindex(1, now+int64(100*time.Millisecond))

	// the old, earlier deadline must not fire the key early.
	require.Empty(t, idx.popExpired(now+int64(50*time.Millisecond)))
	require.Equal(t, []HashedKey{1}, idx.popExpired(now+int64(200*time.Millisecond)))
}

func TestExpiryIndexRemoveDiscardsStaleHeapEntryLazily(t *testing.T) {
	idx := newExpiryIndex()
	now := time.Now().UnixNano()
	idx.insert(1, now+int64(10*time.Millisecond))
	idx.remove(1)

	// the heap entry is still physically present, but popExpired must not
	// report a key that's no longer tracked in current.
	got := idx.popExpired(now + int64(100*time.Millisecond))
	require.Empty(t, got)
}

func TestExpiryIndexHasWithin(t *testing.T) {
	idx := newExpiryIndex()
	now := time.Now().UnixNano()
	require.False(t, idx.hasWithin(time.Second, now))

	idx.insert(1, now+int64(500*time.Millisecond))
	require.True(t, idx.hasWithin(time.Second, now))
	require.False(t, idx.hasWithin(100*time.Millisecond, now))
}

func TestExpiryIndexClear(t *testing.T) {
	idx := newExpiryIndex()
	now := time.Now().UnixNano()
	idx.insert(1, now+int64(time.Millisecond))
	idx.clear()
	require.False(t, idx.hasWithin(time.Hour, now))
	require.Empty(t, idx.popExpired(now+int64(time.Hour)))
}

// fakeEraser is a minimal eraser recording which hashed keys were erased,
// standing in for Cache so ttlWorker can be exercised without a full cache.
type fakeEraser struct {
	erased []HashedKey
}

func (f *fakeEraser) eraseHashed(key HashedKey) { f.erased = append(f.erased, key) }
func (f *fakeEraser) eraseArbitrary() bool      { return false }

func TestTtlWorkerHandleSetTracksExpiry(t *testing.T) {
	fe := &fakeEraser{}
	events := make(chan workerEvent, 1)
	stop := make(chan struct{})
	w := newTTLWorker(events, fe, stop)

	now := time.Now().UnixNano()
	w.handle(workerEvent{kind: eventSet, key: 1, expiry: now + int64(time.Millisecond)})
	require.True(t, w.index.hasWithin(time.Second, now))
}

func TestTtlWorkerHandleDelUntracksExpiry(t *testing.T) {
	fe := &fakeEraser{}
	events := make(chan workerEvent, 1)
	stop := make(chan struct{})
	w := newTTLWorker(events, fe, stop)

	now := time.Now().UnixNano()
	w.handle(workerEvent{kind: eventSet, key: 1, expiry: now + int64(time.Millisecond)})
	w.handle(workerEvent{kind: eventDel, key: 1})

	require.Empty(t, w.index.popExpired(now+int64(time.Hour)))
}

func TestTtlWorkerHandleWipeClearsIndex(t *testing.T) {
	fe := &fakeEraser{}
	events := make(chan workerEvent, 1)
	stop := make(chan struct{})
	w := newTTLWorker(events, fe, stop)

	now := time.Now().UnixNano()
	w.handle(workerEvent{kind: eventSet, key: 1, expiry: now + int64(time.Millisecond)})
	w.handle(workerEvent{kind: eventWipe})

	require.False(t, w.index.hasWithin(time.Hour, now))
}

func TestTtlWorkerRunErasesExpiredKeys(t *testing.T) {
	fe := &fakeEraser{}
	events := make(chan workerEvent, 1)
	stop := make(chan struct{})
	w := newTTLWorker(events, fe, stop)

	events <- workerEvent{kind: eventSet, key: 99, expiry: time.Now().Add(5 * time.Millisecond).UnixNano()}

	done := make(chan struct{})
	go func() {
		w.run()
		close(done)
	}()

	require.Eventually(t, func() bool {
		for _, k := range fe.erased {
			if k == 99 {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	close(stop)
	<-done
}
