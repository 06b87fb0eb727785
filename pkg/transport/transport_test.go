package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lightforgemedia/go-arylicrpc/pkg/jsonrpc"
	"github.com/lightforgemedia/go-arylicrpc/pkg/testutil"
	"github.com/lightforgemedia/go-arylicrpc/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type endpointVersion struct {
	Firmware string
	Git      string
	API      string
}

func newTransport(t *testing.T, url string, opts ...transport.Option) *transport.Transport {
	t.Helper()
	tr := transport.New(url, append([]transport.Option{transport.WithLogger(testutil.DefaultLogger)}, opts...)...)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestCallRoundTrip(t *testing.T) {
	ms := testutil.NewMockServer(t, func(ms *testutil.MockServer, req testutil.Request) {
		ms.Reply(req.ID, map[string]string{"Firmware": "1.0", "Git": "abc123", "API": "2"})
	})
	tr := newTransport(t, ms.WsURL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := transport.Decode[endpointVersion](tr.Call(ctx, "serialmedia_getVersion", "ampA"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", v.Git)
	assert.Equal(t, "1.0", v.Firmware)

	req, err := ms.NextRequest(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, uint64(1), req.ID)
	assert.Equal(t, "serialmedia_getVersion", req.Method)
	var target string
	require.NoError(t, req.Param(0, &target))
	assert.Equal(t, "ampA", target)

	assert.Equal(t, 0, tr.PendingCount())
}

func TestResponsesMatchedById(t *testing.T) {
	var mu sync.Mutex
	var held []testutil.Request
	ms := testutil.NewMockServer(t, func(ms *testutil.MockServer, req testutil.Request) {
		mu.Lock()
		defer mu.Unlock()
		held = append(held, req)
		if len(held) < 2 {
			return
		}
		// Answer in reverse order.
		for i := len(held) - 1; i >= 0; i-- {
			ms.Reply(held[i].ID, held[i].Method)
		}
		held = nil
	})
	tr := newTransport(t, ms.WsURL)
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx))

	type out struct {
		method string
		result string
		err    error
	}
	results := make(chan out, 2)
	call := func(method string) {
		r, err := transport.Decode[string](tr.Call(ctx, method, "ampA"))
		results <- out{method, r, err}
	}
	go call("serialmedia_getVolume")
	// Keep request order deterministic.
	require.NoError(t, testutil.WaitFor(t, "first call pending", time.Second, func() bool { return tr.PendingCount() == 1 }))
	go call("serialmedia_getMute")

	for i := 0; i < 2; i++ {
		o, err := testutil.Receive(t, results, 2*time.Second)
		require.NoError(t, err)
		require.NoError(t, o.err)
		assert.Equal(t, o.method, o.result)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	ms := testutil.NewMockServer(t, nil)
	tr := newTransport(t, ms.WsURL)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tr.Connect(ctx))
		}()
	}
	wg.Wait()
	require.NoError(t, tr.Connect(ctx))

	assert.Equal(t, transport.StateOpen, tr.State())
	assert.Equal(t, 1, ms.Accepted())
}

func TestConnectFailure(t *testing.T) {
	tr := newTransport(t, "ws://127.0.0.1:1/ws", transport.WithDialTimeout(time.Second))

	err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrConnection)
	assert.Equal(t, transport.StateFailed, tr.State())

	_, err = tr.Call(context.Background(), "serialmedia_getVersion", "ampA")
	assert.ErrorIs(t, err, transport.ErrTransport)
}

func TestRemoteError(t *testing.T) {
	ms := testutil.NewMockServer(t, func(ms *testutil.MockServer, req testutil.Request) {
		ms.ReplyError(req.ID, -32000, "endpoint not found")
	})
	tr := newTransport(t, ms.WsURL)

	_, err := tr.Call(context.Background(), "serialmedia_getVolume", "ampZ")
	var remote *transport.RemoteError
	require.True(t, errors.As(err, &remote), "got %v", err)
	assert.Equal(t, -32000, remote.Code)
	assert.Equal(t, "endpoint not found", remote.Message)
	assert.Equal(t, "serialmedia_getVolume", remote.Method)
}

func TestCallTimeoutFreesId(t *testing.T) {
	ms := testutil.NewMockServer(t, nil)
	tr := newTransport(t, ms.WsURL, transport.WithRequestTimeout(100*time.Millisecond))

	_, err := tr.Call(context.Background(), "serialmedia_getVolume", "ampA")
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Equal(t, 0, tr.PendingCount())

	// A late response for the expired id is dropped without disturbing the connection.
	req, err := ms.NextRequest(time.Second)
	require.NoError(t, err)
	require.NoError(t, ms.Reply(req.ID, 0.5))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, transport.StateOpen, tr.State())
}

func TestCallerCancellation(t *testing.T) {
	ms := testutil.NewMockServer(t, nil)
	tr := newTransport(t, ms.WsURL)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ms.NextRequest(time.Second)
		cancel()
	}()
	_, err := tr.Call(ctx, "serialmedia_getVolume", "ampA")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, tr.PendingCount())
}

func TestMalformedAndUnmatchedFramesAreDropped(t *testing.T) {
	ms := testutil.NewMockServer(t, func(ms *testutil.MockServer, req testutil.Request) {
		ms.SendRaw(`{"id":`)
		ms.SendRaw(`[1,2,3]`)
		ms.Reply(req.ID+1000, "stray")
		ms.Reply(req.ID, true)
	})
	tr := newTransport(t, ms.WsURL)

	ok, err := transport.Decode[bool](tr.Call(context.Background(), "serialmedia_getMute", "ampA"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, transport.StateOpen, tr.State())
	assert.Equal(t, 1, ms.Accepted())
}

func TestNotificationsReachHandlerInOrder(t *testing.T) {
	ms := testutil.NewMockServer(t, nil)
	tr := newTransport(t, ms.WsURL)

	got := make(chan *jsonrpc.Notification, 8)
	tr.OnNotification(func(n *jsonrpc.Notification) { got <- n })
	require.NoError(t, tr.Connect(context.Background()))

	for i := 0; i < 3; i++ {
		require.NoError(t, ms.Notify("serialmedia_subscription", "sub-1", i))
	}
	for i := 0; i < 3; i++ {
		n, err := testutil.Receive(t, got, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "sub-1", n.Subscription)
		var v int
		require.NoError(t, json.Unmarshal(n.Result, &v))
		assert.Equal(t, i, v)
	}
}

func TestResultHookRunsBeforeLaterFrames(t *testing.T) {
	ms := testutil.NewMockServer(t, func(ms *testutil.MockServer, req testutil.Request) {
		ms.Reply(req.ID, "sub-9")
		ms.Notify("serialmedia_subscription", "sub-9", "first")
	})
	tr := newTransport(t, ms.WsURL)

	var mu sync.Mutex
	registered := map[string]bool{}
	seen := make(chan bool, 1)
	tr.OnNotification(func(n *jsonrpc.Notification) {
		mu.Lock()
		defer mu.Unlock()
		seen <- registered[n.Subscription]
	})

	_, err := tr.Invoke(context.Background(), "serialmedia_subscribe", []any{"metadataChanges", "ampA"}, func(result json.RawMessage) error {
		var id string
		if err := json.Unmarshal(result, &id); err != nil {
			return err
		}
		mu.Lock()
		registered[id] = true
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	known, err := testutil.Receive(t, seen, time.Second)
	require.NoError(t, err)
	assert.True(t, known)
}

func TestResultHookErrorFailsCall(t *testing.T) {
	ms := testutil.NewMockServer(t, func(ms *testutil.MockServer, req testutil.Request) {
		ms.Reply(req.ID, 42)
	})
	tr := newTransport(t, ms.WsURL)

	_, err := tr.Invoke(context.Background(), "serialmedia_subscribe", nil, func(json.RawMessage) error {
		return transport.ErrProtocol
	})
	assert.ErrorIs(t, err, transport.ErrProtocol)
}

func TestDisconnectFailsPendingAndRedials(t *testing.T) {
	ms := testutil.NewMockServer(t, func(ms *testutil.MockServer, req testutil.Request) {
		if req.Method == "serialmedia_requestReboot" {
			ms.CloseCurrentConnection()
			return
		}
		ms.Reply(req.ID, "ok")
	})
	tr := newTransport(t, ms.WsURL)

	_, err := tr.Call(context.Background(), "serialmedia_requestReboot", "ampA")
	assert.ErrorIs(t, err, transport.ErrTransport)
	require.NoError(t, testutil.WaitFor(t, "transport notices drop", time.Second, func() bool {
		return tr.State() == transport.StateDisconnected
	}))

	// The next call dials again; the failed call is not replayed.
	r, err := transport.Decode[string](tr.Call(context.Background(), "serialmedia_getName", "ampA"))
	require.NoError(t, err)
	assert.Equal(t, "ok", r)
	assert.Equal(t, 2, ms.Accepted())

	req, err := ms.NextRequest(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "serialmedia_requestReboot", req.Method)
	req, err = ms.NextRequest(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "serialmedia_getName", req.Method)
}

func TestCloseFailsPendingAndIsTerminal(t *testing.T) {
	ms := testutil.NewMockServer(t, nil)
	tr := transport.New(ms.WsURL, transport.WithLogger(testutil.DefaultLogger))

	errc := make(chan error, 1)
	go func() {
		_, err := tr.Call(context.Background(), "serialmedia_getVolume", "ampA")
		errc <- err
	}()
	_, err := ms.NextRequest(time.Second)
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	err, rerr := testutil.Receive(t, errc, 2*time.Second)
	require.NoError(t, rerr)
	assert.ErrorIs(t, err, transport.ErrClosed)

	assert.Equal(t, transport.StateClosed, tr.State())
	assert.ErrorIs(t, tr.Connect(context.Background()), transport.ErrClosed)
	_, err = tr.Call(context.Background(), "serialmedia_getVolume", "ampA")
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.ErrorIs(t, tr.Close(), transport.ErrClosed)
}

func TestDecodeRejectsMismatchedResult(t *testing.T) {
	_, err := transport.Decode[float32](json.RawMessage(`"loud"`), nil)
	assert.ErrorIs(t, err, transport.ErrProtocol)

	_, err = transport.Decode[float32](nil, nil)
	assert.ErrorIs(t, err, transport.ErrProtocol)

	sentinel := errors.New("boom")
	_, err = transport.Decode[float32](nil, sentinel)
	assert.ErrorIs(t, err, sentinel)
}
