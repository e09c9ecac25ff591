package papercache

import "github.com/PaperCache/paper-cache/stack"

// samplingModulus and samplingThreshold implement the ≈0.1% deterministic
// admission filter mini-stacks use: a hashed key participates only if
// hashedKey % samplingModulus < samplingThreshold.
const (
	samplingModulus   uint64 = 1 << 24
	samplingThreshold uint64 = 16_777
)

func shouldSample(key HashedKey) bool {
	return key%samplingModulus < samplingThreshold
}

func miniMaxSize(cacheMaxSize uint64) uint64 {
	return uint64(float64(cacheMaxSize) * (float64(samplingThreshold) / float64(samplingModulus)))
}

func toStackKind(k PolicyKind) stack.Kind {
	switch k {
	case Lfu:
		return stack.Lfu
	case Fifo:
		return stack.Fifo
	case Clock:
		return stack.Clock
	case Sieve:
		return stack.Sieve
	case Lru:
		return stack.Lru
	case Mru:
		return stack.Mru
	case TwoQ:
		return stack.TwoQ
	case Arc:
		return stack.Arc
	case S3Fifo:
		return stack.S3Fifo
	default:
		panic("papercache: Auto has no backing stack")
	}
}

// miniStack is a sampled shadow stack: it runs the same ordering logic as a
// full policy stack, but only ever sees the ≈0.1% of keys admitted by
// shouldSample, and keeps its own size ledger and hit/count counters rather
// than touching the cache's real Status.
type miniStack struct {
	policy   Policy
	backing  stack.Stack
	maxSize  uint64
	usedSize uint64
	sizes    map[HashedKey]ObjectSize
	count    uint64
	hits     uint64
}

func newMiniStack(p Policy, cacheMaxSize uint64) *miniStack {
	max := miniMaxSize(cacheMaxSize)
	return &miniStack{
		policy:  p,
		backing: stack.New(toStackKind(p.Kind), max, p.KIn, p.KOut, p.Ratio),
		maxSize: max,
		sizes:   make(map[HashedKey]ObjectSize),
	}
}

func (m *miniStack) insert(key HashedKey, size ObjectSize) {
	if !shouldSample(key) {
		return
	}
	if oldSize, exists := m.sizes[key]; exists {
		m.backing.Remove(key)
		m.usedSize -= uint64(oldSize)
	}
	m.backing.Insert(key, size)
	m.sizes[key] = size
	m.usedSize += uint64(size)
	m.enforceLimit()
}

func (m *miniStack) get(key HashedKey) {
	if !shouldSample(key) {
		return
	}
	m.count++
	if _, ok := m.sizes[key]; ok {
		m.hits++
		m.backing.Update(key)
	}
}

func (m *miniStack) del(key HashedKey) {
	if !shouldSample(key) {
		return
	}
	if size, ok := m.sizes[key]; ok {
		m.backing.Remove(key)
		delete(m.sizes, key)
		m.usedSize -= uint64(size)
	}
}

func (m *miniStack) wipe() {
	m.backing.Clear()
	m.sizes = make(map[HashedKey]ObjectSize)
	m.usedSize = 0
	m.count = 0
	m.hits = 0
}

func (m *miniStack) resize(cacheMaxSize uint64) {
	m.maxSize = miniMaxSize(cacheMaxSize)
	m.backing.Resize(m.maxSize)
	m.enforceLimit()
}

// evictOneRaw removes and returns the next candidate without regard to this
// mini-stack's own size ledger; used when this mini-stack is serving as the
// interim source of real cache evictions during a policy switch.
func (m *miniStack) evictOneRaw() (HashedKey, bool) {
	key, ok := m.backing.EvictOne()
	if ok {
		if size, tracked := m.sizes[key]; tracked {
			delete(m.sizes, key)
			m.usedSize -= uint64(size)
		}
	}
	return key, ok
}

func (m *miniStack) enforceLimit() {
	for m.usedSize > m.maxSize {
		if _, ok := m.evictOneRaw(); !ok {
			break
		}
	}
}

// missRatio is 1 - hits/count over the sampled stream, or 1.0 if nothing
// has been sampled yet.
func (m *miniStack) missRatio() float64 {
	if m.count == 0 {
		return 1.0
	}
	return 1.0 - float64(m.hits)/float64(m.count)
}

// miniStackManager owns one mini-stack per configured policy and answers
// the auto-policy selector's "what's the best policy right now" question.
type miniStackManager struct {
	stacks   []*miniStack
	policies []Policy
}

func newMiniStackManager(policies []Policy, cacheMaxSize uint64) *miniStackManager {
	stacks := make([]*miniStack, len(policies))
	for i, p := range policies {
		stacks[i] = newMiniStack(p, cacheMaxSize)
	}
	return &miniStackManager{stacks: stacks, policies: policies}
}

func (m *miniStackManager) indexOf(p Policy) (int, bool) {
	for i, configured := range m.policies {
		if configured.Equal(p) {
			return i, true
		}
	}
	return 0, false
}

func (m *miniStackManager) handleGet(key HashedKey) {
	for _, s := range m.stacks {
		s.get(key)
	}
}

func (m *miniStackManager) handleSet(key HashedKey, size ObjectSize) {
	for _, s := range m.stacks {
		s.insert(key, size)
	}
}

func (m *miniStackManager) handleDel(key HashedKey) {
	for _, s := range m.stacks {
		s.del(key)
	}
}

func (m *miniStackManager) handleWipe() {
	for _, s := range m.stacks {
		s.wipe()
	}
}

func (m *miniStackManager) handleResize(cacheMaxSize uint64) {
	for _, s := range m.stacks {
		s.resize(cacheMaxSize)
	}
}

// handle fans a single foreground event out to every mini-stack. Ttl and
// Policy events carry no ordering information any stack cares about, so
// they're simply ignored here.
func (m *miniStackManager) handle(e workerEvent) {
	switch e.kind {
	case eventGet:
		m.handleGet(e.key)
	case eventSet:
		m.handleSet(e.key, e.size)
	case eventDel:
		m.handleDel(e.key)
	case eventWipe:
		m.handleWipe()
	case eventResize:
		m.handleResize(e.maxSize)
	}
}

// evictOne drains one eviction from the interim mini-stack at index and
// removes the same key from every other mini-stack, keeping the sampled
// population consistent with reality.
func (m *miniStackManager) evictOne(index int) (HashedKey, bool) {
	key, ok := m.stacks[index].evictOneRaw()
	if !ok {
		return 0, false
	}
	for i, s := range m.stacks {
		if i == index {
			continue
		}
		s.del(key)
	}
	return key, true
}

// optimalPolicy implements the auto-selector: lowest miss ratio wins, ties
// broken toward the smaller per-object overhead; the result is only
// returned if it strictly beats the current policy's own mini-stack.
func (m *miniStackManager) optimalPolicy(current Policy) (Policy, bool) {
	currentRatio := 1.0
	if i, ok := m.indexOf(current); ok {
		currentRatio = m.stacks[i].missRatio()
	}

	var best *miniStack
	for _, s := range m.stacks {
		if best == nil {
			best = s
			continue
		}
		ratio, bestRatio := s.missRatio(), best.missRatio()
		if ratio < bestRatio || (ratio == bestRatio && policyOverhead(s.policy) < policyOverhead(best.policy)) {
			best = s
		}
	}

	if best == nil || best.policy.Equal(current) {
		return Policy{}, false
	}
	if best.missRatio() < currentRatio {
		return best.policy, true
	}
	return Policy{}, false
}
