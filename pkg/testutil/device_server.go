package testutil

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lightforgemedia/go-arylicrpc/pkg/devicesim"
)

// DeviceServer combines a simulator and its HTTP server for testing.
type DeviceServer struct {
	*devicesim.Simulator
	HTTP  *httptest.Server
	WsURL string
}

// NewDeviceServer starts a simulator serving devices. With no devices given it
// serves a single "Kitchen" amplifier with target "ampA".
func NewDeviceServer(t *testing.T, devices ...*devicesim.Device) *DeviceServer {
	t.Helper()
	if len(devices) == 0 {
		devices = []*devicesim.Device{devicesim.NewDevice("Kitchen", "ampA")}
	}
	opts := []devicesim.Option{devicesim.WithLogger(DefaultLogger)}
	for _, d := range devices {
		opts = append(opts, devicesim.WithDevice(d))
	}
	sim, err := devicesim.New(opts...)
	if err != nil {
		t.Fatalf("devicesim.New: %v", err)
	}
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(func() {
		srv.Close()
		sim.Stop()
	})
	return &DeviceServer{Simulator: sim, HTTP: srv, WsURL: "ws" + strings.TrimPrefix(srv.URL, "http")}
}
