package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedData is returned together with the event when the data of a
// known kind does not match its shape. The event keeps the raw payload and
// whatever fields could be decoded.
var ErrMalformedData = errors.New("malformed pipeline event data")

type envelope struct {
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Decode parses a pipeline event as pushed by Home Assistant. Kinds that are
// not part of the contract decode to [Unknown]. A nil event means the frame
// could not be parsed at all; a non-nil event with an error wrapping
// [ErrMalformedData] should still be folded.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline event: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("failed to decode pipeline event: missing type")
	}

	base := NewBaseAt(env.Type, parseTimestamp(env.Timestamp), env.Data)

	var err error
	var event Event
	switch env.Type {
	case KindRunStart:
		e := RunStart{Base: base}
		err = decodeData(base, &e.Data)
		event = e
	case KindRunEnd:
		event = RunEnd{Base: base}
	case KindError:
		e := RunError{Base: base}
		err = decodeData(base, &e.Data)
		event = e
	case KindWakeWordStart:
		e := WakeWordStart{Base: base}
		err = decodeData(base, &e.Data)
		event = e
	case KindWakeWordEnd:
		e := WakeWordEnd{Base: base}
		err = decodeData(base, &e.Data)
		event = e
	case KindSTTStart:
		e := STTStart{Base: base}
		err = decodeData(base, &e.Data)
		event = e
	case KindSTTEnd:
		e := STTEnd{Base: base}
		err = decodeData(base, &e.Data)
		event = e
	case KindIntentStart:
		e := IntentStart{Base: base}
		err = decodeData(base, &e.Data)
		event = e
	case KindIntentEnd:
		e := IntentEnd{Base: base}
		err = decodeData(base, &e.Data)
		event = e
	case KindTTSStart:
		e := TTSStart{Base: base}
		err = decodeData(base, &e.Data)
		event = e
	case KindTTSEnd:
		e := TTSEnd{Base: base}
		err = decodeData(base, &e.Data)
		event = e
	default:
		event = Unknown{Base: base}
	}
	if err != nil {
		return event, fmt.Errorf("%w: %s: %w", ErrMalformedData, env.Type, err)
	}

	return event, nil
}

// Encode renders an event back into its wire shape.
func Encode(event Event) ([]byte, error) {
	env := envelope{Type: event.Kind(), Data: event.Payload()}
	if ts := event.Timestamp(); !ts.IsZero() {
		env.Timestamp = ts.Format(time.RFC3339Nano)
	}
	return json.Marshal(env)
}

func decodeData(base Base, target any) error {
	return json.Unmarshal(base.payload, target)
}

// Home Assistant stamps events with isoformat(), which may omit the zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
}

func parseTimestamp(value string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
