package trace

import (
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Event{
		{Kind: EventGet, Key: 0xdeadbeef},
		{Kind: EventSet, Key: 42, Size: 1024},
		{Kind: EventDel, Key: 7},
		{Kind: EventResize, Size: 1 << 30},
	}

	for _, e := range cases {
		buf := Encode(e)
		if len(buf) != RecordWidth {
			t.Fatalf("Encode: got %d bytes, want %d", len(buf), RecordWidth)
		}
		got, err := Decode(buf[:])
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got != e {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
		}
	}
}

func TestDecodeRejectsShortRecord(t *testing.T) {
	if _, err := Decode(make([]byte, RecordWidth-1)); err == nil {
		t.Fatalf("expected an error decoding a short record")
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	buf := make([]byte, RecordWidth)
	buf[0] = 0xff
	if _, err := Decode(buf); err == nil {
		t.Fatalf("expected an error decoding an unknown event tag")
	}
}

func TestFragmentAppendAndReadAll(t *testing.T) {
	f, err := NewFragment()
	if err != nil {
		t.Fatalf("NewFragment: %v", err)
	}
	defer f.Close()

	want := []Event{
		{Kind: EventSet, Key: 1, Size: 10},
		{Kind: EventGet, Key: 1},
		{Kind: EventDel, Key: 1},
	}
	for _, e := range want {
		if err := f.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var got []Event
	if err := f.ReadAll(func(e Event) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	// ReadAll must restore the write position: a further Append continues
	// the log rather than overwriting what was just read.
	if err := f.Append(Event{Kind: EventDel, Key: 2}); err != nil {
		t.Fatalf("Append after ReadAll: %v", err)
	}
	var count int
	if err := f.ReadAll(func(Event) error { count++; return nil }); err != nil {
		t.Fatalf("second ReadAll: %v", err)
	}
	if count != len(want)+1 {
		t.Fatalf("got %d events after a second append, want %d", count, len(want)+1)
	}
}

func TestFragmentValidityWindows(t *testing.T) {
	f, err := NewFragment()
	if err != nil {
		t.Fatalf("NewFragment: %v", err)
	}
	defer f.Close()

	now := time.Now()
	if !f.IsValid(now) || !f.IsLive(now) {
		t.Fatalf("a freshly created fragment must be both valid and live")
	}
	if f.IsValid(now.Add(RefreshAge + time.Second)) {
		t.Fatalf("fragment should no longer accept writes past RefreshAge")
	}
	if !f.IsLive(now.Add(RefreshAge + time.Second)) {
		t.Fatalf("fragment past RefreshAge should still be live for replay")
	}
	if f.IsLive(now.Add(MaxAge + time.Second)) {
		t.Fatalf("fragment past MaxAge should no longer be live")
	}
}

func TestQueueRefreshAlwaysLeavesOneFragment(t *testing.T) {
	q := NewQueue()
	if err := q.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected exactly one fragment after the first Refresh, got %d", q.Len())
	}

	if err := q.Refresh(); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected Refresh to be a no-op while the head fragment is still valid, got %d fragments", q.Len())
	}
}

func TestQueueAppendGoesToHeadFragment(t *testing.T) {
	q := NewQueue()
	if err := q.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := q.Append(Event{Kind: EventSet, Key: 1, Size: 5}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	frags := q.Snapshot()
	if len(frags) != 1 {
		t.Fatalf("expected one fragment in the snapshot, got %d", len(frags))
	}

	var count int
	if err := frags[0].ReadAll(func(Event) error { count++; return nil }); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record in the head fragment, got %d", count)
	}
}

func TestQueueWipeDiscardsFragmentsAndStartsFresh(t *testing.T) {
	q := NewQueue()
	if err := q.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	_ = q.Append(Event{Kind: EventDel, Key: 1})

	if err := q.Wipe(); err != nil {
		t.Fatalf("Wipe: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected exactly one fresh fragment after Wipe, got %d", q.Len())
	}

	frags := q.Snapshot()
	var count int
	if err := frags[0].ReadAll(func(Event) error { count++; return nil }); err != nil {
		t.Fatalf("ReadAll after Wipe: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected the post-Wipe fragment to be empty, got %d records", count)
	}
}

func TestQueueSnapshotIsIndependentOfFurtherAppends(t *testing.T) {
	q := NewQueue()
	_ = q.Refresh()
	_ = q.Append(Event{Kind: EventGet, Key: 1})

	snap := q.Snapshot()
	_ = q.Append(Event{Kind: EventGet, Key: 2})

	var count int
	_ = snap[0].ReadAll(func(Event) error { count++; return nil })
	if count == 2 {
		// Snapshot shares the underlying fragment (appends are still
		// visible to it); what must hold is that the slice of fragments
		// itself doesn't grow from the caller's perspective.
		t.Logf("fragment content reflects later appends, as expected: %d records", count)
	}
	if len(snap) != 1 {
		t.Fatalf("expected the snapshot slice to stay at 1 fragment, got %d", len(snap))
	}
}
