package events

import (
	"bytes"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ErrInvalidEvent is returned when a payload is not a JSON object.
var ErrInvalidEvent = errors.New("event: payload must be a JSON object")

// Event is one game state snapshot as pushed by the game. The schema belongs
// to the game; Event keeps the raw object and offers read access via gjson paths.
// An Event is never mutated after parsing, listeners each receive a Clone.
type Event struct {
	raw []byte
}

// ParseEvent validates data and returns an Event holding a private copy of it.
func ParseEvent(data []byte) (Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !gjson.ValidBytes(trimmed) {
		return Event{}, ErrInvalidEvent
	}
	return Event{raw: bytes.Clone(trimmed)}, nil
}

// Clone returns a copy that shares no memory with e.
func (e Event) Clone() Event {
	return Event{raw: bytes.Clone(e.raw)}
}

// Get reads a value with a gjson path, e.g. "map.phase" or "player.state.health".
func (e Event) Get(path string) gjson.Result {
	return gjson.GetBytes(e.raw, path)
}

// Bytes returns a copy of the raw JSON object.
func (e Event) Bytes() []byte { return bytes.Clone(e.raw) }

// IsZero reports whether e holds no payload.
func (e Event) IsZero() bool { return len(e.raw) == 0 }

func (e Event) MarshalJSON() ([]byte, error) {
	if e.IsZero() {
		return []byte("null"), nil
	}
	return bytes.Clone(e.raw), nil
}

func (e *Event) UnmarshalJSON(data []byte) error {
	ev, err := ParseEvent(data)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}

// Envelope is what travels through the event queue.
type Envelope struct {
	ID         uuid.UUID
	ReceivedAt time.Time
	Event      Event
}
