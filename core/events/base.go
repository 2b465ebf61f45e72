package events

import (
	"encoding/json"
	"time"
)

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
	// Payload returns the raw `data` object of the event.
	Payload() json.RawMessage
}

type Base struct {
	kind      Kind
	timestamp time.Time
	payload   json.RawMessage
}

var emptyPayload = json.RawMessage("{}")

// NewBase creates a base stamped with the current time.
func NewBase(kind Kind, payload json.RawMessage) Base {
	return NewBaseAt(kind, time.Now(), payload)
}

// NewBaseAt creates a base with an explicit timestamp.
func NewBaseAt(kind Kind, timestamp time.Time, payload json.RawMessage) Base {
	if len(payload) == 0 || string(payload) == "null" {
		payload = emptyPayload
	}
	return Base{kind: kind, timestamp: timestamp, payload: payload}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}

func (b Base) Payload() json.RawMessage {
	return b.payload
}

// Fields splits the payload into its top level fields. It returns nil when
// the payload is not a JSON object.
func Fields(event Event) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(event.Payload(), &fields); err != nil {
		return nil
	}
	return fields
}

func newTypedBase(kind Kind, data any) Base {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = nil
	}
	return NewBase(kind, payload)
}
