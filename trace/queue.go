package trace

import (
	"sync"
	"time"
)

// Queue is the ordered, age-bounded set of fragments backing replay. Only
// the trace worker mutates it; reconstruction tasks take a Snapshot, whose
// fragment list is unaffected by later purges or new fragments.
type Queue struct {
	mu        sync.Mutex
	fragments []*Fragment
}

func NewQueue() *Queue {
	return &Queue{}
}

// Refresh purges fragments past MaxAge from the front and, if the
// head-of-queue fragment is no longer valid for writes, appends a fresh one.
// The queue always has at least one fragment after Refresh succeeds.
func (q *Queue) Refresh() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()

	i := 0
	for i < len(q.fragments) && !q.fragments[i].IsLive(now) {
		q.fragments[i].Close()
		i++
	}
	q.fragments = q.fragments[i:]

	if len(q.fragments) == 0 || !q.fragments[len(q.fragments)-1].IsValid(now) {
		f, err := NewFragment()
		if err != nil {
			return err
		}
		q.fragments = append(q.fragments, f)
	}

	return nil
}

// Append writes e to the head-of-queue fragment. Callers must Refresh first
// so a fragment is guaranteed to exist.
func (q *Queue) Append(e Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.fragments) == 0 {
		return nil
	}
	return q.fragments[len(q.fragments)-1].Append(e)
}

func (q *Queue) Flush() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.fragments) == 0 {
		return nil
	}
	return q.fragments[len(q.fragments)-1].Flush()
}

// Wipe discards every fragment and starts a fresh one.
func (q *Queue) Wipe() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, f := range q.fragments {
		f.Close()
	}

	f, err := NewFragment()
	if err != nil {
		q.fragments = nil
		return err
	}
	q.fragments = []*Fragment{f}
	return nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fragments)
}

// Snapshot returns the current fragments, oldest first, for a reconstruction
// task to replay. The returned slice does not change with later purges or
// new fragments, but the fragments are shared: records appended to them
// after the call are visible to a replay.
func (q *Queue) Snapshot() []*Fragment {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Fragment, len(q.fragments))
	copy(out, q.fragments)
	return out
}
