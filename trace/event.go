// Package trace implements the append-only event log a cache replays to
// reconstruct a full-size policy stack when switching active policies: a
// fixed-width binary record format, and temporary fragment files that form
// an age-bounded queue.
package trace

import (
	"encoding/binary"
	"fmt"
)

// EventKind tags a trace record; the numeric values are the wire encoding.
type EventKind uint8

const (
	EventGet EventKind = iota
	EventSet
	EventDel
	EventResize
)

// RecordWidth is fixed so reconstruction can perform random-access checks
// without re-framing: 1 tag byte + the widest payload (an 8-byte key plus
// an 8-byte size, for Set).
const RecordWidth = 17

// Event is one stack-level projection of a foreground operation. Wipe has
// no Event: it clears the fragment queue directly instead of being
// recorded.
type Event struct {
	Kind EventKind
	Key  uint64 // Get, Set, Del
	Size uint64 // Set (object size), Resize (new max size)
}

// Encode writes e into a fixed-width, zero-padded, little-endian record.
func Encode(e Event) [RecordWidth]byte {
	var buf [RecordWidth]byte
	buf[0] = byte(e.Kind)

	switch e.Kind {
	case EventGet, EventDel:
		binary.LittleEndian.PutUint64(buf[1:9], e.Key)
	case EventSet:
		binary.LittleEndian.PutUint64(buf[1:9], e.Key)
		binary.LittleEndian.PutUint64(buf[9:17], e.Size)
	case EventResize:
		binary.LittleEndian.PutUint64(buf[1:9], e.Size)
	}

	return buf
}

// Decode parses a RecordWidth-byte record back into an Event.
func Decode(buf []byte) (Event, error) {
	if len(buf) < RecordWidth {
		return Event{}, fmt.Errorf("trace: short record (%d bytes)", len(buf))
	}

	e := Event{Kind: EventKind(buf[0])}

	switch e.Kind {
	case EventGet, EventDel:
		e.Key = binary.LittleEndian.Uint64(buf[1:9])
	case EventSet:
		e.Key = binary.LittleEndian.Uint64(buf[1:9])
		e.Size = binary.LittleEndian.Uint64(buf[9:17])
	case EventResize:
		e.Size = binary.LittleEndian.Uint64(buf[1:9])
	default:
		return Event{}, fmt.Errorf("trace: unknown event tag %d", buf[0])
	}

	return e, nil
}
