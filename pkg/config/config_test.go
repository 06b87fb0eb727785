package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	u, err := cfg.URL()
	require.NoError(t, err)
	assert.Equal(t, DefaultDevURL, u)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: prod
urls:
  prod: ws://amp-bridge.lan:8080/ws
active_endpoint: ampB
request_timeout: 3s
throttle:
  settings: 250ms
nats:
  subject_prefix: house
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	u, err := cfg.URL()
	require.NoError(t, err)
	assert.Equal(t, "ws://amp-bridge.lan:8080/ws", u)
	assert.Equal(t, "ampB", cfg.ActiveEndpoint)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Throttle.Settings)
	assert.Equal(t, 15*time.Millisecond, cfg.Throttle.Playback, "unset keys keep defaults")
	assert.Equal(t, "house", cfg.NATS.SubjectPrefix)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
}

func TestLoadRejectsProdWithoutURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: prod\n"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, `no url configured for environment "prod"`)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("request_timeout: [\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.ActiveEndpoint = "ampC"

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ampC", loaded.ActiveEndpoint)
	assert.Equal(t, cfg.Throttle, loaded.Throttle)
}
