package subscription_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/lightforgemedia/go-arylicrpc/pkg/jsonrpc"
	"github.com/lightforgemedia/go-arylicrpc/pkg/subscription"
	"github.com/lightforgemedia/go-arylicrpc/pkg/testutil"
	"github.com/lightforgemedia/go-arylicrpc/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type metadata struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

func setup(t *testing.T, handler testutil.Responder) (*testutil.MockServer, *transport.Transport, *subscription.Router) {
	t.Helper()
	ms := testutil.NewMockServer(t, handler)
	tr := transport.New(ms.WsURL, transport.WithLogger(testutil.DefaultLogger))
	router := subscription.New(tr, subscription.WithLogger(testutil.DefaultLogger))
	tr.OnNotification(router.Dispatch)
	t.Cleanup(func() {
		router.Close()
		tr.Close()
	})
	return ms, tr, router
}

func subscribeReplying(id string) testutil.Responder {
	return func(ms *testutil.MockServer, req testutil.Request) {
		switch req.Method {
		case "serialmedia_subscribe":
			ms.Reply(req.ID, id)
		case "serialmedia_unsubscribe":
			ms.Reply(req.ID, true)
		default:
			ms.ReplyError(req.ID, -32601, "no such method")
		}
	}
}

func TestSubscriptionDelivery(t *testing.T) {
	ms, _, router := setup(t, subscribeReplying("sub-42"))

	got := make(chan metadata, 4)
	sub, err := router.Subscribe(context.Background(), "serialmedia_subscribe", []any{"metadataChanges", "ampA"},
		subscription.Decode(testutil.DefaultLogger, func(m metadata) { got <- m }))
	require.NoError(t, err)
	assert.Equal(t, "sub-42", sub.ID)
	assert.Equal(t, 1, router.Len())

	require.NoError(t, ms.Notify("serialmedia_subscription", "sub-42", map[string]string{"title": "X"}))
	m, err := testutil.Receive(t, got, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "X", m.Title)

	// Unknown subscription ids are ignored.
	require.NoError(t, ms.Notify("serialmedia_subscription", "sub-99", map[string]string{"title": "Y"}))
	_, err = testutil.Receive(t, got, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestNotificationRightAfterResponseIsDelivered(t *testing.T) {
	_, _, router := setup(t, func(ms *testutil.MockServer, req testutil.Request) {
		ms.Reply(req.ID, "sub-1")
		ms.Notify("serialmedia_subscription", "sub-1", map[string]string{"title": "early"})
	})

	got := make(chan metadata, 1)
	_, err := router.Subscribe(context.Background(), "serialmedia_subscribe", []any{"metadataChanges", "ampA"},
		subscription.Decode(testutil.DefaultLogger, func(m metadata) { got <- m }))
	require.NoError(t, err)

	m, err := testutil.Receive(t, got, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "early", m.Title)
}

func TestDeliveryOrderPerSubscription(t *testing.T) {
	ms, _, router := setup(t, subscribeReplying("sub-7"))

	var mu sync.Mutex
	var seen []int
	_, err := router.Subscribe(context.Background(), "serialmedia_subscribe", []any{"volumeChanges", "ampA"},
		subscription.Decode(testutil.DefaultLogger, func(v int) {
			mu.Lock()
			seen = append(seen, v)
			mu.Unlock()
		}))
	require.NoError(t, err)

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, ms.Notify("serialmedia_subscription", "sub-7", i))
	}
	require.NoError(t, testutil.WaitFor(t, "all notifications delivered", 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == n
	}))
	for i, v := range seen {
		assert.Equal(t, i, v)
	}
}

func TestSubscribeRejectsNonStringId(t *testing.T) {
	_, _, router := setup(t, func(ms *testutil.MockServer, req testutil.Request) {
		ms.Reply(req.ID, 12)
	})

	_, err := router.Subscribe(context.Background(), "serialmedia_subscribe", []any{"metadataChanges", "ampA"}, func(json.RawMessage) {})
	assert.ErrorIs(t, err, transport.ErrProtocol)
	assert.Equal(t, 0, router.Len())
}

func TestSubscribeRemoteError(t *testing.T) {
	_, _, router := setup(t, func(ms *testutil.MockServer, req testutil.Request) {
		ms.ReplyError(req.ID, -32000, "notifications not supported")
	})

	_, err := router.Subscribe(context.Background(), "serialmedia_subscribe", []any{"metadataChanges", "ampA"}, func(json.RawMessage) {})
	var remote *transport.RemoteError
	assert.ErrorAs(t, err, &remote)
	assert.Equal(t, 0, router.Len())
}

func TestUnsubscribeStopsDeliveryAndNotifiesServer(t *testing.T) {
	ms, _, router := setup(t, subscribeReplying("sub-5"))

	got := make(chan json.RawMessage, 4)
	sub, err := router.Subscribe(context.Background(), "serialmedia_subscribe", []any{"muteChanges", "ampA"},
		func(p json.RawMessage) { got <- p })
	require.NoError(t, err)

	require.NoError(t, router.Unsubscribe(context.Background(), sub))
	assert.Equal(t, 0, router.Len())

	_, err = ms.NextRequest(time.Second) // subscribe
	require.NoError(t, err)
	req, err := ms.NextRequest(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "serialmedia_unsubscribe", req.Method)
	var id string
	require.NoError(t, req.Param(0, &id))
	assert.Equal(t, "sub-5", id)

	require.NoError(t, ms.Notify("serialmedia_subscription", "sub-5", true))
	_, err = testutil.Receive(t, got, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestCallbackPanicDoesNotStopDelivery(t *testing.T) {
	ms, _, router := setup(t, subscribeReplying("sub-3"))

	got := make(chan int, 2)
	_, err := router.Subscribe(context.Background(), "serialmedia_subscribe", []any{"volumeChanges", "ampA"},
		subscription.Decode(testutil.DefaultLogger, func(v int) {
			if v == 0 {
				panic("boom")
			}
			got <- v
		}))
	require.NoError(t, err)

	require.NoError(t, ms.Notify("serialmedia_subscription", "sub-3", 0))
	require.NoError(t, ms.Notify("serialmedia_subscription", "sub-3", 1))
	v, err := testutil.Receive(t, got, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestBlockedCallbackDoesNotStallConnection(t *testing.T) {
	ms, tr, router := setup(t, func(ms *testutil.MockServer, req testutil.Request) {
		switch req.Method {
		case "serialmedia_subscribe":
			ms.Reply(req.ID, "sub-slow")
		case "serialmedia_getVolume":
			ms.Reply(req.ID, 0.5)
		}
	})

	release := make(chan struct{})
	defer close(release)
	const n = 200
	_, err := router.Subscribe(context.Background(), "serialmedia_subscribe", []any{"volumeChanges", "ampA"},
		func(json.RawMessage) { <-release })
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, ms.Notify("serialmedia_subscription", "sub-slow", i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := transport.Decode[float64](tr.Call(ctx, "serialmedia_getVolume", "ampA"))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-9)
}

type fakeCaller struct{}

func (fakeCaller) Invoke(_ context.Context, _ string, _ []any, onResult transport.ResultHook) (json.RawMessage, error) {
	res := json.RawMessage(`"sub-1"`)
	return res, onResult(res)
}

func (fakeCaller) Call(context.Context, string, ...any) (json.RawMessage, error) {
	return json.RawMessage(`true`), nil
}

func TestDispatchIgnoresEmptyAndClosed(t *testing.T) {
	router := subscription.New(fakeCaller{}, subscription.WithLogger(testutil.DefaultLogger))

	got := make(chan json.RawMessage, 1)
	_, err := router.Subscribe(context.Background(), "custom_watch", nil, func(p json.RawMessage) { got <- p })
	require.NoError(t, err)

	router.Dispatch(nil)
	router.Dispatch(&jsonrpc.Notification{Method: "custom_event"})
	_, err = testutil.Receive(t, got, 50*time.Millisecond)
	assert.Error(t, err)

	router.Close()
	router.Dispatch(&jsonrpc.Notification{Method: "custom_subscription", Subscription: "sub-1", Result: json.RawMessage(`1`)})
	assert.Equal(t, 0, router.Len())

	_, err = router.Subscribe(context.Background(), "custom_watch", nil, func(json.RawMessage) {})
	assert.ErrorIs(t, err, subscription.ErrRouterClosed)
}
