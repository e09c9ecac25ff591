package papercache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicStatusUsedSizeRevaluesWithActivePolicy(t *testing.T) {
	policies := []Policy{{Kind: Fifo}, {Kind: Lfu}}
	s := newAtomicStatus(1000, policies, 0, false)
	s.UpdateBaseUsedSize(100)
	s.IncrNumObjects()
	s.IncrNumObjects()

	// fifoOverhead=24: base 100 + 2*24 = 148
	require.Equal(t, uint64(148), s.UsedSize(Policy{Kind: Fifo}))
	// lfuOverhead=32: base 100 + 2*32 = 164, without touching base/count
	require.Equal(t, uint64(164), s.UsedSize(Policy{Kind: Lfu}))
}

func TestAtomicStatusUpdateBaseUsedSizeHandlesNegativeDelta(t *testing.T) {
	s := newAtomicStatus(1000, []Policy{{Kind: Fifo}}, 0, false)
	s.UpdateBaseUsedSize(100)
	s.UpdateBaseUsedSize(-40)
	require.Equal(t, uint64(60), s.UsedSize(Policy{Kind: Fifo}))
}

func TestAtomicStatusDecrNumObjectsUnderflowsCorrectly(t *testing.T) {
	s := newAtomicStatus(1000, []Policy{{Kind: Fifo}}, 0, false)
	s.IncrNumObjects()
	s.DecrNumObjects()
	require.Equal(t, uint64(0), s.NumObjects())
}

func TestAtomicStatusExceedsMaxSize(t *testing.T) {
	s := newAtomicStatus(100, []Policy{{Kind: Fifo}}, 0, false)
	require.False(t, s.ExceedsMaxSize(Policy{Kind: Fifo}))
	s.UpdateBaseUsedSize(200)
	require.True(t, s.ExceedsMaxSize(Policy{Kind: Fifo}))
}

func TestAtomicStatusSetPolicyRequiresConfiguredPolicy(t *testing.T) {
	policies := []Policy{{Kind: Fifo}, {Kind: Lru}}
	s := newAtomicStatus(100, policies, 0, true)

	require.NoError(t, s.SetPolicy(Policy{Kind: Lru}))
	require.False(t, s.IsAutoPolicy())
	require.Equal(t, Policy{Kind: Lru}, s.Policy())

	require.Error(t, s.SetPolicy(Policy{Kind: Arc}))
}

func TestAtomicStatusSetPolicyAutoOnlyRaisesFlag(t *testing.T) {
	policies := []Policy{{Kind: Fifo}}
	s := newAtomicStatus(100, policies, 0, false)
	require.NoError(t, s.SetPolicy(Policy{Kind: Auto}))
	require.True(t, s.IsAutoPolicy())
	require.Equal(t, Policy{Kind: Fifo}, s.Policy(), "Auto leaves the underlying index untouched")
}

func TestAtomicStatusSetPolicyKeepingAutoLeavesFlagSet(t *testing.T) {
	policies := []Policy{{Kind: Fifo}, {Kind: Lfu}}
	s := newAtomicStatus(100, policies, 0, true)

	require.NoError(t, s.SetPolicyKeepingAuto(Policy{Kind: Lfu}))
	require.Equal(t, Policy{Kind: Lfu}, s.Policy())
	require.True(t, s.IsAutoPolicy(), "an auto-driven promotion must not clear the auto flag")

	require.Error(t, s.SetPolicyKeepingAuto(Policy{Kind: Arc}))
}

func TestAtomicStatusClearResetsCountersNotConfiguration(t *testing.T) {
	policies := []Policy{{Kind: Fifo}}
	s := newAtomicStatus(100, policies, 0, false)
	s.UpdateBaseUsedSize(50)
	s.IncrNumObjects()
	s.IncrGets()
	s.IncrHits()
	s.IncrSets()
	s.IncrDels()

	s.Clear()

	require.Equal(t, uint64(0), s.UsedSize(Policy{Kind: Fifo}))
	require.Equal(t, uint64(0), s.NumObjects())
	require.Equal(t, uint64(100), s.MaxSize(), "Clear must not touch configuration")
}

func TestStatusSnapshotIsCoherentAndIndependent(t *testing.T) {
	policies := []Policy{{Kind: Fifo}}
	s := newAtomicStatus(100, policies, 0, false)
	s.IncrGets()
	s.IncrHits()

	snap := s.Snapshot()
	require.Equal(t, uint64(1), snap.TotalGets)
	require.Equal(t, uint64(1), snap.TotalHits)
	require.Equal(t, 0.0, snap.MissRatio())

	s.IncrGets() // further mutation must not retroactively change the snapshot
	require.Equal(t, uint64(1), snap.TotalGets)
}

func TestStatusMissRatioWithNoGets(t *testing.T) {
	snap := (&atomicStatus{policies: []Policy{{Kind: Fifo}}}).Snapshot()
	require.Equal(t, 1.0, snap.MissRatio())
}
