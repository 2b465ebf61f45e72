package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
)

var (
	// ErrInvalidAuth is returned when the instance rejects the access token.
	ErrInvalidAuth = errors.New("invalid authentication")
	// ErrConnectionLost fails requests that were in flight, or issued, while
	// the socket was down.
	ErrConnectionLost = errors.New("connection lost")
	// ErrClosed is returned after [Conn.Close].
	ErrClosed = errors.New("connection closed")
)

const (
	msgTypeAuthRequired = "auth_required"
	msgTypeAuth         = "auth"
	msgTypeAuthOK       = "auth_ok"
	msgTypeAuthInvalid  = "auth_invalid"
	msgTypeResult       = "result"
	msgTypeEvent        = "event"
	msgTypePong         = "pong"
)

// Error is a failed command result reported by the instance.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("home assistant error %s: %s", e.Code, e.Message)
}

type inbound struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Success   *bool           `json:"success"`
	Result    json.RawMessage `json:"result"`
	Error     *Error          `json:"error"`
	Event     json.RawMessage `json:"event"`
	HAVersion string          `json:"ha_version"`
	Message   string          `json:"message"`
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// encodeCommand renders msg as a JSON object so that an id can be attached.
// msg must marshal to an object with a "type" field.
func encodeCommand(msg any) (map[string]json.RawMessage, string, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal command: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, "", fmt.Errorf("failed to marshal command: not a json object: %w", err)
	}

	var commandType string
	if rawType, ok := fields["type"]; ok {
		_ = json.Unmarshal(rawType, &commandType)
	}
	if commandType == "" {
		return nil, "", fmt.Errorf("failed to marshal command: missing type")
	}
	delete(fields, "id")

	return fields, commandType, nil
}

func withID(fields map[string]json.RawMessage, id int64) map[string]json.RawMessage {
	out := maps.Clone(fields)
	out["id"] = json.RawMessage(strconv.FormatInt(id, 10))
	return out
}
