package papercache

import (
	"os"
	"sync/atomic"
	"time"
)

// Status is an immutable point-in-time snapshot of a cache's counters and
// configuration, returned by Cache.Status(). Its fields are read from
// independent atomics and so form a coherent snapshot per-field, not a
// cross-field transaction.
type Status struct {
	Pid          int
	MaxSize      uint64
	UsedSize     uint64
	NumObjects   uint64
	Rss          uint64
	Hwm          uint64
	TotalGets    uint64
	TotalHits    uint64
	TotalSets    uint64
	TotalDels    uint64
	Policies     []Policy
	Policy       Policy
	IsAutoPolicy bool
	startTime    int64
}

// MissRatio is 1 - hits/gets, or 1.0 when no gets have occurred yet.
func (s *Status) MissRatio() float64 {
	if s.TotalGets == 0 {
		return 1.0
	}
	return 1.0 - float64(s.TotalHits)/float64(s.TotalGets)
}

// Uptime is the duration since the cache was constructed.
func (s *Status) Uptime() time.Duration {
	return time.Duration(time.Now().UnixNano() - s.startTime)
}

// atomicStatus is the live, lock-free counter set backing Status. Every
// foreground operation updates it via atomic RMWs only; no operation ever
// takes a lock to touch it.
type atomicStatus struct {
	maxSize      atomic.Uint64
	baseUsedSize atomic.Uint64
	numObjects   atomic.Uint64

	totalGets atomic.Uint64
	totalHits atomic.Uint64
	totalSets atomic.Uint64
	totalDels atomic.Uint64

	policies     []Policy // immutable for the cache's lifetime
	policyIndex  atomic.Uint32
	isAutoPolicy atomic.Bool

	startTime int64
}

func newAtomicStatus(maxSize uint64, policies []Policy, policyIndex int, isAuto bool) *atomicStatus {
	s := &atomicStatus{
		policies:  policies,
		startTime: time.Now().UnixNano(),
	}
	s.maxSize.Store(maxSize)
	s.policyIndex.Store(uint32(policyIndex))
	s.isAutoPolicy.Store(isAuto)
	return s
}

func (s *atomicStatus) MaxSize() uint64 { return s.maxSize.Load() }

func (s *atomicStatus) SetMaxSize(size uint64) { s.maxSize.Store(size) }

func (s *atomicStatus) ExceedsMaxSize(policy Policy) bool {
	return s.UsedSize(policy) > s.MaxSize()
}

// UsedSize reports base_used_size + object_count * per_policy_overhead,
// revaluing memory accounting instantly as the active policy changes.
func (s *atomicStatus) UsedSize(policy Policy) uint64 {
	overhead := uint64(policyOverhead(policy))
	return s.baseUsedSize.Load() + s.numObjects.Load()*overhead
}

// UpdateBaseUsedSize applies a signed delta; relies on uint64(delta)'s
// two's-complement bit pattern to make Add perform the subtraction when
// delta is negative.
func (s *atomicStatus) UpdateBaseUsedSize(delta int64) {
	s.baseUsedSize.Add(uint64(delta))
}

func (s *atomicStatus) NumObjects() uint64 { return s.numObjects.Load() }
func (s *atomicStatus) IncrNumObjects()    { s.numObjects.Add(1) }
func (s *atomicStatus) DecrNumObjects() {
	s.numObjects.Add(^uint64(0))
}

func (s *atomicStatus) IncrHits()  { s.totalHits.Add(1) }
func (s *atomicStatus) IncrGets()  { s.totalGets.Add(1) }
func (s *atomicStatus) IncrSets()  { s.totalSets.Add(1) }
func (s *atomicStatus) IncrDels()  { s.totalDels.Add(1) }

func (s *atomicStatus) Policies() []Policy { return s.policies }

func (s *atomicStatus) Policy() Policy {
	return s.policies[s.policyIndex.Load()]
}

func (s *atomicStatus) IsAutoPolicy() bool { return s.isAutoPolicy.Load() }

func (s *atomicStatus) SetAutoPolicy() { s.isAutoPolicy.Store(true) }

// SetPolicy installs p as the active policy. If p is Auto it only raises the
// auto flag; otherwise p must already be one of the configured policies.
func (s *atomicStatus) SetPolicy(p Policy) error {
	if p.Kind == Auto {
		s.isAutoPolicy.Store(true)
		return nil
	}

	idx, err := indexOfPolicy(s.policies, p)
	if err != nil {
		return err
	}

	s.policyIndex.Store(uint32(idx))
	s.isAutoPolicy.Store(false)
	return nil
}

// SetPolicyKeepingAuto installs p as the active policy without touching the
// auto flag, for use when the online selector itself promotes a mini-stack:
// the cache is still in auto mode, it has simply settled on a new winner.
func (s *atomicStatus) SetPolicyKeepingAuto(p Policy) error {
	idx, err := indexOfPolicy(s.policies, p)
	if err != nil {
		return err
	}
	s.policyIndex.Store(uint32(idx))
	return nil
}

func indexOfPolicy(policies []Policy, p Policy) (int, error) {
	for i, configured := range policies {
		if configured.Equal(p) {
			return i, nil
		}
	}
	return 0, ErrInternal
}

func (s *atomicStatus) Clear() {
	s.baseUsedSize.Store(0)
	s.numObjects.Store(0)
	s.totalGets.Store(0)
	s.totalHits.Store(0)
	s.totalSets.Store(0)
	s.totalDels.Store(0)
}

// Snapshot builds a coherent Status, reading RSS/HWM from the OS where
// available. On platforms without that facility, Rss and Hwm are zero
// rather than failing the call.
func (s *atomicStatus) Snapshot() *Status {
	rss, hwm := processMemory()

	return &Status{
		Pid:          os.Getpid(),
		MaxSize:      s.MaxSize(),
		UsedSize:     s.UsedSize(s.Policy()),
		NumObjects:   s.NumObjects(),
		Rss:          rss,
		Hwm:          hwm,
		TotalGets:    s.totalGets.Load(),
		TotalHits:    s.totalHits.Load(),
		TotalSets:    s.totalSets.Load(),
		TotalDels:    s.totalDels.Load(),
		Policies:     s.policies,
		Policy:       s.Policy(),
		IsAutoPolicy: s.IsAutoPolicy(),
		startTime:    s.startTime,
	}
}
