package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Request is a JSON-RPC call as seen by the mock server.
type Request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      uint64            `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// Param decodes the i-th positional parameter into v.
func (r Request) Param(i int, v any) error {
	if i >= len(r.Params) {
		return fmt.Errorf("request %s has %d params, wanted index %d", r.Method, len(r.Params), i)
	}
	return json.Unmarshal(r.Params[i], v)
}

// Responder handles one request. It runs on the connection's read loop, so
// requests are seen in the order the client wrote them.
type Responder func(ms *MockServer, req Request)

// MockServer is a scripted JSON-RPC WebSocket server for testing clients.
type MockServer struct {
	T      *testing.T
	Server *httptest.Server
	WsURL  string

	connMu sync.Mutex
	conn   *websocket.Conn

	accepted atomic.Int32
	requests chan Request
	handler  Responder
}

// NewMockServer starts a mock server. handler may be nil, in which case
// requests are only recorded.
func NewMockServer(t *testing.T, handler Responder) *MockServer {
	t.Helper()
	ms := &MockServer{T: t, handler: handler, requests: make(chan Request, 256)}

	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsconn, err := websocket.Accept(w, r, nil)
		if err != nil {
			ms.T.Logf("MockServer: Accept error: %v", err)
			return
		}
		ms.accepted.Add(1)

		ms.connMu.Lock()
		ms.conn = wsconn
		ms.connMu.Unlock()

		ms.serve(wsconn)
	}))
	ms.WsURL = "ws" + strings.TrimPrefix(ms.Server.URL, "http")

	t.Cleanup(ms.Close)
	return ms
}

func (ms *MockServer) serve(conn *websocket.Conn) {
	defer conn.CloseNow()
	for {
		var req Request
		if err := wsjson.Read(context.Background(), conn, &req); err != nil {
			return
		}
		select {
		case ms.requests <- req:
		default:
			ms.T.Logf("MockServer: request log full, dropping %s", req.Method)
		}
		if ms.handler != nil {
			ms.handler(ms, req)
		}
	}
}

// Accepted reports how many WebSocket handshakes the server completed.
func (ms *MockServer) Accepted() int {
	return int(ms.accepted.Load())
}

// NextRequest returns the next recorded request.
func (ms *MockServer) NextRequest(timeout time.Duration) (Request, error) {
	select {
	case req := <-ms.requests:
		return req, nil
	case <-time.After(timeout):
		return Request{}, fmt.Errorf("no request within %v", timeout)
	}
}

// Send writes v as a JSON text frame to the most recent connection.
func (ms *MockServer) Send(v any) error {
	ms.connMu.Lock()
	conn := ms.conn
	ms.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("mock server has no connection")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

// SendRaw writes data verbatim, which lets tests inject malformed frames.
func (ms *MockServer) SendRaw(data string) error {
	ms.connMu.Lock()
	conn := ms.conn
	ms.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("mock server has no connection")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, []byte(data))
}

// Reply sends a success response for id.
func (ms *MockServer) Reply(id uint64, result any) error {
	return ms.Send(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
}

// ReplyError sends an error response for id.
func (ms *MockServer) ReplyError(id uint64, code int, message string) error {
	return ms.Send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]any{"code": code, "message": message},
	})
}

// Notify pushes a subscription notification.
func (ms *MockServer) Notify(method, subscription string, result any) error {
	return ms.Send(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  map[string]any{"subscription": subscription, "result": result},
	})
}

// CloseCurrentConnection drops the active connection without a close handshake.
func (ms *MockServer) CloseCurrentConnection() {
	ms.connMu.Lock()
	defer ms.connMu.Unlock()
	if ms.conn != nil {
		ms.conn.CloseNow()
		ms.conn = nil
	}
}

// Close shuts the mock server down.
func (ms *MockServer) Close() {
	ms.CloseCurrentConnection()
	if ms.Server != nil {
		ms.Server.Close()
	}
}

// ResultsByMethod answers every request whose method is in results and
// replies -32601 to anything else.
func ResultsByMethod(results map[string]any) Responder {
	return func(ms *MockServer, req Request) {
		if res, ok := results[req.Method]; ok {
			ms.Reply(req.ID, res)
			return
		}
		ms.ReplyError(req.ID, -32601, fmt.Sprintf("the method %s does not exist/is not available", req.Method))
	}
}
