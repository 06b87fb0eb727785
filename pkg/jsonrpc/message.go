// jsonrpc/message.go
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Version is the only protocol version this package speaks.
const Version = "2.0"

// ErrMalformed is returned by Parse for frames that are not valid JSON-RPC 2.0 messages.
var ErrMalformed = errors.New("jsonrpc: malformed message")

// Kind classifies an inbound message.
type Kind int

const (
	KindResponse Kind = iota + 1
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Request is an outbound call. Params is always encoded as a JSON array.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// NewRequest builds a request with the protocol version filled in.
func NewRequest(id uint64, method string, params []any) *Request {
	if params == nil {
		params = []any{}
	}
	return &Request{JSONRPC: Version, ID: id, Method: method, Params: params}
}

// Error mirrors the JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("jsonrpc error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Message is a decoded inbound frame. Use Parse to obtain one.
type Message struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`

	kind Kind
}

// Notification is a server push. Subscription is empty for pushes that are not
// tied to a subscription.
type Notification struct {
	Method       string
	Subscription string
	Result       json.RawMessage
}

type subscriptionParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// Parse decodes and validates one inbound frame.
func Parse(data []byte) (*Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	// Result must be told apart from an explicit null, so decode presence separately.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msg := &Message{}
	if err := json.Unmarshal(trimmed, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.JSONRPC != "" && msg.JSONRPC != Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformed, msg.JSONRPC)
	}

	_, hasResult := fields["result"]
	_, hasError := fields["error"]
	hasID := len(msg.ID) > 0 && !isNull(msg.ID)

	switch {
	case msg.Method != "" && !hasID:
		if len(msg.Params) > 0 && !isNull(msg.Params) && bytes.TrimSpace(msg.Params)[0] != '{' {
			return nil, fmt.Errorf("%w: notification %s params must be an object", ErrMalformed, msg.Method)
		}
		msg.kind = KindNotification
	case msg.Method == "" && (hasID || hasError):
		if hasResult == hasError {
			return nil, fmt.Errorf("%w: response must carry exactly one of result and error", ErrMalformed)
		}
		if hasResult && msg.Result == nil {
			msg.Result = json.RawMessage("null")
		}
		msg.kind = KindResponse
	case msg.Method != "" && hasID:
		return nil, fmt.Errorf("%w: unexpected server request %s", ErrMalformed, msg.Method)
	default:
		return nil, fmt.Errorf("%w: neither id nor method present", ErrMalformed)
	}
	return msg, nil
}

// Kind reports whether the message is a response or a notification.
func (m *Message) Kind() Kind { return m.kind }

// CallID returns the numeric id of a response. Ids sent as decimal strings are
// accepted as well; anything else reports false.
func (m *Message) CallID() (uint64, bool) {
	if len(m.ID) == 0 || isNull(m.ID) {
		return 0, false
	}
	var n uint64
	if err := json.Unmarshal(m.ID, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(m.ID, &s); err == nil {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Notification extracts the subscription id and payload of a push.
func (m *Message) Notification() (*Notification, error) {
	if m.kind != KindNotification {
		return nil, fmt.Errorf("%w: %s is not a notification", ErrMalformed, m.kind)
	}
	n := &Notification{Method: m.Method}
	if len(m.Params) == 0 || isNull(m.Params) {
		return n, nil
	}
	var p subscriptionParams
	if err := json.Unmarshal(m.Params, &p); err != nil {
		return nil, fmt.Errorf("%w: notification params: %v", ErrMalformed, err)
	}
	n.Subscription = p.Subscription
	n.Result = p.Result
	return n, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
