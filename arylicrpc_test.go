package arylicrpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lightforgemedia/go-arylicrpc"
	"github.com/lightforgemedia/go-arylicrpc/pkg/devicesim"
	"github.com/lightforgemedia/go-arylicrpc/pkg/serialmedia"
	"github.com/lightforgemedia/go-arylicrpc/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, url string, opts arylicrpc.Options) *arylicrpc.Session {
	t.Helper()
	opts.Logger = testutil.DefaultLogger
	s := arylicrpc.New(url, opts)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRawCallAndSubscription(t *testing.T) {
	ms := testutil.NewMockServer(t, func(ms *testutil.MockServer, req testutil.Request) {
		switch req.Method {
		case "serialmedia_getVersion":
			ms.Reply(req.ID, map[string]string{"Firmware": "1.0", "Git": "abc123", "API": "2"})
		case "serialmedia_subscribe":
			ms.Reply(req.ID, "sub-42")
		}
	})
	s := newSession(t, ms.WsURL, arylicrpc.DefaultOptions())
	ctx := context.Background()

	raw, err := s.Call(ctx, "serialmedia_getVersion", "ampA")
	require.NoError(t, err)
	var v serialmedia.EndpointVersion
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, "abc123", v.Git)

	req, err := ms.NextRequest(time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), req.ID)

	got := make(chan string, 1)
	_, err = s.AddSubscription(ctx, "serialmedia_subscribe", []any{"metadataChanges", "ampA"}, func(p json.RawMessage) {
		var m serialmedia.Metadata
		if json.Unmarshal(p, &m) == nil {
			got <- m.Title
		}
	})
	require.NoError(t, err)
	require.NoError(t, ms.Notify("serialmedia_subscription", "sub-42", map[string]string{"title": "X"}))
	title, err := testutil.Receive(t, got, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "X", title)
}

func TestSessionAgainstSimulator(t *testing.T) {
	srv := testutil.NewDeviceServer(t,
		devicesim.NewDevice("Kitchen", "ampA"),
		devicesim.NewDevice("Office", "ampB"),
	)
	opts := arylicrpc.DefaultOptions()
	opts.SettingsWindow = 5 * time.Millisecond
	s := newSession(t, srv.WsURL, opts)
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	assert.Equal(t, "open", s.State().String())

	list, err := s.RefreshEndpoints(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, list, s.Endpoints())

	s.SetActiveEndpoint("ampB")
	assert.Equal(t, "ampB", s.ActiveEndpoint())

	name, err := s.SerialMedia.GetName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Office", name)

	_, err = s.SerialMedia.SetVolume(ctx, 0.6)
	require.NoError(t, err)
	d, _ := srv.Snapshot("ampB")
	assert.InDelta(t, 0.6, d.Volume, 1e-6)
	d, _ = srv.Snapshot("ampA")
	assert.InDelta(t, 0.3, d.Volume, 1e-6, "other endpoint untouched")

	status, err := s.WebsocketMedia.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stop", status.State)

	s.SetActiveEndpoint("ampZ")
	_, err = s.SerialMedia.GetName(ctx)
	var remote *arylicrpc.RemoteError
	assert.True(t, errors.As(err, &remote))
}

func TestSessionCloseIsTerminal(t *testing.T) {
	srv := testutil.NewDeviceServer(t)
	s := arylicrpc.New(srv.WsURL, arylicrpc.Options{Logger: testutil.DefaultLogger})

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Close())
	_, err := s.Call(context.Background(), "serialmedia_getVersion", "ampA")
	assert.ErrorIs(t, err, arylicrpc.ErrClosed)
}

func TestSessionConnectFailure(t *testing.T) {
	s := newSession(t, "ws://127.0.0.1:1/ws", arylicrpc.DefaultOptions())
	err := s.Connect(context.Background())
	assert.ErrorIs(t, err, arylicrpc.ErrConnection)
}

func TestSessionThrottlesOnlySettingWrites(t *testing.T) {
	srv := testutil.NewDeviceServer(t)
	opts := arylicrpc.DefaultOptions()
	opts.ActiveEndpoint = "ampA"
	s := newSession(t, srv.WsURL, opts)
	ctx := context.Background()

	// Concurrent reads of the same value both get an answer.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := s.SerialMedia.GetVolume(ctx)
			errs <- err
		}()
	}
	for i := 0; i < 2; i++ {
		err, rerr := testutil.Receive(t, errs, 2*time.Second)
		require.NoError(t, rerr)
		assert.NoError(t, err)
	}

	// Toggles are not coalesced: two taps cancel out.
	first, err := s.SerialMedia.ToggleMute(ctx)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	second, err := s.SerialMedia.ToggleMute(ctx)
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)
	d, _ := srv.Snapshot("ampA")
	assert.False(t, d.Mute)

	require.NoError(t, s.SerialMedia.PlayPause(ctx))
	require.NoError(t, s.SerialMedia.PlayPause(ctx))
	d, _ = srv.Snapshot("ampA")
	assert.False(t, d.Playing)

	// Setting writes are still coalesced within the window.
	setErrs := make(chan error, 2)
	go func() {
		_, err := s.SerialMedia.SetVolume(ctx, 0.4)
		setErrs <- err
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		_, err := s.SerialMedia.SetVolume(ctx, 0.6)
		setErrs <- err
	}()
	superseded := 0
	for i := 0; i < 2; i++ {
		err, rerr := testutil.Receive(t, setErrs, 2*time.Second)
		require.NoError(t, rerr)
		if errors.Is(err, arylicrpc.ErrSuperseded) {
			superseded++
			continue
		}
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, superseded)
	d, _ = srv.Snapshot("ampA")
	assert.InDelta(t, 0.6, d.Volume, 1e-6)
}
