package papercache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventBusFansOutToEverySubscriber(t *testing.T) {
	b := newEventBus()
	a := b.subscribe()
	c := b.subscribe()

	require.NoError(t, b.publish(workerEvent{kind: eventGet, key: 1}))

	ea := <-a
	ec := <-c
	require.Equal(t, HashedKey(1), ea.key)
	require.Equal(t, HashedKey(1), ec.key)
}

func TestEventBusReportsInternalErrorOnFullSubscriber(t *testing.T) {
	b := newEventBus()
	ch := b.subscribe()

	var err error
	for i := 0; i < eventBusSize+1; i++ {
		err = b.publish(workerEvent{kind: eventGet, key: HashedKey(i)})
	}
	require.True(t, errors.Is(err, ErrInternal))

	// drain so the test doesn't leak a full channel
	for len(ch) > 0 {
		<-ch
	}
}

func TestEventBusCloseClosesEverySubscriberChannel(t *testing.T) {
	b := newEventBus()
	ch := b.subscribe()
	b.close()

	_, ok := <-ch
	require.False(t, ok)
}
