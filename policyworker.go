package papercache

import (
	"time"

	"github.com/PaperCache/paper-cache/stack"
	"github.com/PaperCache/paper-cache/trace"
)

// reconstructAbortCadence is how many replayed records a reconstruction task
// processes between checks of whether it should give up (the cache closed
// mid-replay).
const reconstructAbortCadence = 1 << 20

// autoPolicyCheckInterval is how long the auto selector waits between
// reconsidering whether another mini-stack is outperforming the active
// policy.
const autoPolicyCheckInterval = time.Hour

// switchOutcome is what a reconstruction goroutine hands back once it's
// finished replaying every fragment into a freshly built stack of the
// target kind. It carries no reference to policyWorker state: the
// reconstruction goroutine never touches active, interim, or
// reconstructing directly, so run() remains the only writer of those
// fields and no lock is needed around them.
type switchOutcome struct {
	policy Policy
	stack  stack.Stack
	auto   bool // driven by the online selector rather than an explicit Policy() call
}

// policyWorker is the heart of the cache: it's the sole mutator of the
// active policy stack, runs the eviction pass that keeps used size under
// the configured max, and drives the auto-policy selector and the lossless
// policy-switch protocol.
type policyWorker struct {
	events <-chan workerEvent
	status *atomicStatus
	cache  eraser
	mini   *miniStackManager
	traceQ *trace.Queue
	stop   <-chan struct{}

	active stack.Stack

	lastEventAt time.Time
	lastAutoAt  time.Time

	// reconstructing is set for the duration of a policy switch: foreground
	// events are buffered into interim rather than applied to active, since
	// active is about to be replaced wholesale, and evict draws from the
	// mini-stack at switchTargetIdx instead of active. Only run() ever reads
	// or writes these fields.
	reconstructing  bool
	interim         []workerEvent
	switchDone      chan switchOutcome
	switchTargetIdx int
}

func newPolicyWorker(
	events <-chan workerEvent,
	status *atomicStatus,
	cache eraser,
	mini *miniStackManager,
	traceQ *trace.Queue,
	stop <-chan struct{},
	active stack.Stack,
) *policyWorker {
	return &policyWorker{
		events:     events,
		status:     status,
		cache:      cache,
		mini:       mini,
		traceQ:     traceQ,
		stop:       stop,
		active:     active,
		lastAutoAt: time.Now(),
		switchDone: make(chan switchOutcome, 1),
	}
}

func (w *policyWorker) run() {
	for {
	drain:
		for {
			select {
			case e, ok := <-w.events:
				if !ok {
					return
				}
				w.handle(e)
			case outcome := <-w.switchDone:
				w.installOutcome(outcome)
			default:
				break drain
			}
		}

		w.evict()

		if w.status.IsAutoPolicy() && !w.reconstructing && time.Since(w.lastAutoAt) >= autoPolicyCheckInterval {
			w.lastAutoAt = time.Now()
			w.considerAutoSwitch()
		}

		delay := time.Second
		if time.Since(w.lastEventAt) < 5*time.Second {
			delay = time.Millisecond
		}

		select {
		case <-w.stop:
			return
		case outcome := <-w.switchDone:
			w.installOutcome(outcome)
		case <-time.After(delay):
		}
	}
}

func (w *policyWorker) handle(e workerEvent) {
	w.lastEventAt = time.Now()
	w.mini.handle(e)

	if e.kind == eventPolicy {
		w.beginSwitch(e.policy, false)
		return
	}

	if w.reconstructing {
		w.interim = append(w.interim, e)
		return
	}

	applyToStack(w.active, e)
}

// installOutcome is called only from run(): it drains whatever arrived
// during reconstruction into the newly replayed stack, then swaps it in.
func (w *policyWorker) installOutcome(outcome switchOutcome) {
	for _, e := range w.interim {
		applyToStack(outcome.stack, e)
	}
	w.interim = nil
	w.active = outcome.stack
	if outcome.auto {
		_ = w.status.SetPolicyKeepingAuto(outcome.policy)
	} else {
		_ = w.status.SetPolicy(outcome.policy)
	}
	w.reconstructing = false
}

// applyToStack is the only place a workerEvent turns into a stack mutation;
// both the live apply path and reconstruction replay share it so a switch
// can never diverge from ordinary operation.
func applyToStack(s stack.Stack, e workerEvent) {
	switch e.kind {
	case eventGet:
		if e.hit {
			s.Update(e.key)
		}
	case eventSet:
		if e.hadOld {
			s.Remove(e.key)
		}
		s.Insert(e.key, e.size)
	case eventDel:
		s.Remove(e.key)
	case eventWipe:
		s.Clear()
	case eventResize:
		s.Resize(e.maxSize)
	}
}

// evict keeps used size under the cache's max size, preferring the active
// stack's own eviction order but falling back to an arbitrary object-map
// entry if the stack and the map have drifted out of sync, so the loop is
// always guaranteed to make progress. While a switch is in flight, active is
// about to be discarded, so eviction candidates instead come from the
// interim mini-stack being reconstructed into the target policy: this keeps
// the size bound enforced for the full (possibly multi-fragment) duration of
// a reconstruction rather than suspending it.
func (w *policyWorker) evict() {
	policy := w.status.Policy()
	for w.status.ExceedsMaxSize(policy) {
		var key HashedKey
		var ok bool
		if w.reconstructing {
			key, ok = w.mini.evictOne(w.switchTargetIdx)
		} else {
			key, ok = w.active.EvictOne()
		}
		if ok {
			w.cache.eraseHashed(key)
			continue
		}
		if !w.cache.eraseArbitrary() {
			return
		}
	}
}

func (w *policyWorker) considerAutoSwitch() {
	next, ok := w.mini.optimalPolicy(w.status.Policy())
	if !ok {
		return
	}
	w.beginSwitch(next, true)
}

// beginSwitch starts the lossless online switch protocol: spawn a
// reconstruction of the target policy that replays the trace fragments
// oldest-first, while the calling goroutine (run's) keeps draining the
// event bus and buffering into interim until the reconstruction reports
// back on switchDone.
func (w *policyWorker) beginSwitch(target Policy, auto bool) {
	if w.reconstructing {
		return
	}
	w.reconstructing = true
	if idx, ok := w.mini.indexOf(target); ok {
		w.switchTargetIdx = idx
	}

	maxSize := w.status.MaxSize()
	fragments := w.traceQ.Snapshot()
	stop := w.stop
	done := w.switchDone

	go func() {
		next := stack.New(toStackKind(target.Kind), maxSize, target.KIn, target.KOut, target.Ratio)
		processed := 0

	replay:
		for _, f := range fragments {
			err := f.ReadAll(func(e trace.Event) error {
				applyToStack(next, traceEventToWorkerEvent(e))
				processed++
				if processed%reconstructAbortCadence == 0 {
					select {
					case <-stop:
						return errAbortReplay
					default:
					}
				}
				return nil
			})
			if err != nil {
				break replay
			}
		}

		select {
		case done <- switchOutcome{policy: target, stack: next, auto: auto}:
		case <-stop:
		}
	}()
}

type abortReplayError struct{}

func (abortReplayError) Error() string { return "papercache: reconstruction aborted" }

var errAbortReplay = abortReplayError{}

func traceEventToWorkerEvent(e trace.Event) workerEvent {
	switch e.Kind {
	case trace.EventGet:
		return workerEvent{kind: eventGet, key: e.Key, hit: true}
	case trace.EventSet:
		return workerEvent{kind: eventSet, key: e.Key, size: ObjectSize(e.Size)}
	case trace.EventDel:
		return workerEvent{kind: eventDel, key: e.Key}
	case trace.EventResize:
		return workerEvent{kind: eventResize, maxSize: e.Size}
	default:
		return workerEvent{}
	}
}
