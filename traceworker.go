package papercache

import (
	"time"

	"github.com/PaperCache/paper-cache/trace"
)

// traceRefreshInterval is how often the trace worker rolls the fragment
// queue even without a lull in traffic, so a fragment past its refresh age
// never keeps accepting writes just because nothing prompted a check.
const traceRefreshInterval = time.Minute

// traceWorker appends every traceable foreground event to the fragment
// queue, keyed off the same bus every other worker subscribes to.
type traceWorker struct {
	events <-chan workerEvent
	queue  *trace.Queue
	stop   <-chan struct{}
}

func newTraceWorker(events <-chan workerEvent, queue *trace.Queue, stop <-chan struct{}) *traceWorker {
	return &traceWorker{events: events, queue: queue, stop: stop}
}

func (w *traceWorker) run() {
	_ = w.queue.Refresh()

	ticker := time.NewTicker(traceRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-w.events:
			if !ok {
				_ = w.queue.Flush()
				return
			}
			w.handle(e)

		drain:
			for {
				select {
				case e, ok := <-w.events:
					if !ok {
						_ = w.queue.Flush()
						return
					}
					w.handle(e)
				default:
					break drain
				}
			}

			// Flush once per drained batch rather than per record: the
			// fragment is durable up to the last record of this batch
			// before the worker goes back to waiting.
			_ = w.queue.Flush()
		case <-ticker.C:
			_ = w.queue.Refresh()
		case <-w.stop:
			_ = w.queue.Flush()
			return
		}
	}
}

func (w *traceWorker) handle(e workerEvent) {
	if e.kind == eventWipe {
		_ = w.queue.Wipe()
		return
	}

	se, ok := e.toStackEvent()
	if !ok {
		return
	}

	te, ok := toTraceEvent(se)
	if !ok {
		return
	}

	if err := w.queue.Refresh(); err != nil {
		return
	}
	_ = w.queue.Append(te)
}

// toTraceEvent narrows a stackEventKind to the subset the wire format
// records; Wipe clears the queue directly in handle and never reaches here.
func toTraceEvent(se stackEventKind) (trace.Event, bool) {
	switch se.kind {
	case eventGet:
		return trace.Event{Kind: trace.EventGet, Key: se.key}, true
	case eventSet:
		return trace.Event{Kind: trace.EventSet, Key: se.key, Size: se.size}, true
	case eventDel:
		return trace.Event{Kind: trace.EventDel, Key: se.key}, true
	case eventResize:
		return trace.Event{Kind: trace.EventResize, Size: se.size}, true
	default:
		return trace.Event{}, false
	}
}
