package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrConnection means the WebSocket handshake failed.
	ErrConnection = errors.New("transport: connection failed")
	// ErrTransport means there was no usable connection for a call, or it dropped mid-call.
	ErrTransport = errors.New("transport: no usable connection")
	// ErrProtocol marks frames or payloads that violate the expected message shape.
	ErrProtocol = errors.New("transport: protocol violation")
	// ErrTimeout means no response arrived before the call deadline.
	ErrTimeout = errors.New("transport: call timed out")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("transport: closed")
)

// RemoteError is an error object returned by the server for a specific call.
type RemoteError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RemoteError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%s: remote error %d: %s (%s)", e.Method, e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("%s: remote error %d: %s", e.Method, e.Code, e.Message)
}

// Decode unmarshals a call result into T. A result that does not fit T is a
// protocol violation rather than a caller error.
func Decode[T any](raw json.RawMessage, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, fmt.Errorf("%w: empty result", ErrProtocol)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: decode %T: %v", ErrProtocol, out, err)
	}
	return out, nil
}
