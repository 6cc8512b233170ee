package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/graph"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, TransportNATS, cfg.Transport)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL())
	assert.Equal(t, "store.mutate", cfg.Subjects.Mutate)
	assert.True(t, cfg.Priority.UseDefaults)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "traitstore.yaml", `
transport: nats
nats:
  urls:
    - nats://one:4222
    - nats://two:4222
  reconnect_wait: 5s
  kv_watch_bucket: watches
subjects:
  mutate: app.mutate
priority:
  types:
    task:
      order: 5
      use_display_name: true
      renamable: true
log:
  level: debug
  format: text
`)

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "nats://one:4222,nats://two:4222", cfg.NATS.URL())
	assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait)
	assert.Equal(t, 5*time.Second, cfg.NATS.Timeout, "unset keys keep defaults")
	assert.Equal(t, "watches", cfg.NATS.KVWatchBucket)
	assert.Equal(t, "app.mutate", cfg.Subjects.Mutate)
	assert.Equal(t, "store.query", cfg.Subjects.Query)
	assert.Equal(t, "debug", cfg.Log.Level)

	table := cfg.Priority.Table()
	task, ok := table.ForType(graph.TypeTask)
	require.True(t, ok)
	assert.Equal(t, 5, task.Order)
	_, ok = table.ForType(graph.TypeNote)
	assert.True(t, ok, "defaults are kept alongside overrides")
}

func TestLoad_JSONWebSocket(t *testing.T) {
	path := writeFile(t, "traitstore.json", `{
		"transport": "websocket",
		"websocket": {
			"url": "wss://store.example.com/ws",
			"write_timeout": "3s",
			"tls": {"enabled": true, "ca_files": ["/etc/traitstore/ca.pem"], "min_version": "1.3"}
		}
	}`)

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, TransportWebSocket, cfg.Transport)
	assert.Equal(t, "wss://store.example.com/ws", cfg.WebSocket.URL)
	assert.Equal(t, 3*time.Second, cfg.WebSocket.WriteTimeout)
	assert.Equal(t, TLSConfig{Enabled: true, CAFiles: []string{"/etc/traitstore/ca.pem"}, MinVersion: "1.3"}, cfg.WebSocket.TLS)
	assert.False(t, cfg.NATS.TLS.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRAITSTORE_NATS_URLS", "nats://a:4222,nats://b:4222")
	t.Setenv("TRAITSTORE_LOG_LEVEL", "warn")
	t.Setenv("TRAITSTORE_SUBJECTS_WATCH", "custom.watch")

	path := writeFile(t, "traitstore.toml", `
[log]
level = "debug"
`)

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, "warn", cfg.Log.Level, "environment beats the file")
	assert.Equal(t, "custom.watch", cfg.Subjects.Watch)
}

func TestLoad_FileErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "absent.yaml")},
		{"unsupported extension", writeFile(t, "config.ini", "a=b")},
		{"directory", func() string {
			p := filepath.Join(dir, "cfg.json")
			require.NoError(t, os.Mkdir(p, 0o700))
			return p
		}()},
		{"malformed", writeFile(t, "bad.json", `{"transport":`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(NewViper(), tt.path)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeFile(t, "traitstore.yaml", "transport: carrier-pigeon\n")

	_, err := Load(NewViper(), path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no urls", func(c *Config) { c.NATS.URLs = nil }, "urls is required"},
		{"empty url", func(c *Config) { c.NATS.URLs = []string{" "} }, "empty entry"},
		{"bad reconnects", func(c *Config) { c.NATS.MaxReconnects = -2 }, "max_reconnects"},
		{"negative duration", func(c *Config) { c.NATS.Timeout = -time.Second }, "negative"},
		{"zero threshold", func(c *Config) { c.NATS.CircuitBreakerThreshold = 0 }, "circuit_breaker_threshold"},
		{"zero attempts", func(c *Config) { c.NATS.ConnectAttempts = 0 }, "connect_attempts"},
		{"token and password", func(c *Config) {
			c.NATS.Token = "t"
			c.NATS.Username = "u"
		}, "mutually exclusive"},
		{"bucket with dots", func(c *Config) { c.NATS.KVWatchBucket = "a.b" }, "kv_watch_bucket"},
		{"nats tls cert without key", func(c *Config) {
			c.NATS.TLS = TLSConfig{Enabled: true, CertFile: "client.pem"}
		}, "tls: cert_file and key_file"},
		{"empty subject", func(c *Config) { c.Subjects.Query = "" }, "query subject"},
		{"wildcard subject", func(c *Config) { c.Subjects.Watch = "store.*" }, "watch subject"},
		{"shared subject", func(c *Config) { c.Subjects.QueryCancel = c.Subjects.WatchCancel }, "share subject"},
		{"websocket without url", func(c *Config) { c.Transport = TransportWebSocket }, "url is required"},
		{"websocket http scheme", func(c *Config) {
			c.Transport = TransportWebSocket
			c.WebSocket.URL = "http://host/ws"
		}, "ws or wss"},
		{"websocket tls version", func(c *Config) {
			c.Transport = TransportWebSocket
			c.WebSocket.URL = "wss://host/ws"
			c.WebSocket.TLS = TLSConfig{Enabled: true, MinVersion: "1.0"}
		}, "min_version"},
		{"conflicting priority", func(c *Config) {
			c.Priority.Types = map[string]graph.Priority{"note": {Label: "Notes", UseDisplayName: true}}
		}, "both label and use_display_name"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "format"},
		{"metrics path", func(c *Config) {
			c.Metrics.Addr = ":9090"
			c.Metrics.Path = "metrics"
		}, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPriorityConfig_Table(t *testing.T) {
	t.Run("replaces defaults", func(t *testing.T) {
		p := PriorityConfig{
			Types: map[string]graph.Priority{graph.TypeTask: {Order: 1}},
		}
		table := p.Table()
		_, ok := table.ForType(graph.TypeNote)
		assert.False(t, ok)
		task, ok := table.ForType(graph.TypeTask)
		require.True(t, ok)
		assert.Equal(t, 1, task.Order)
	})

	t.Run("overrides entity defaults", func(t *testing.T) {
		p := PriorityConfig{
			UseDefaults: true,
			Entities:    map[string]graph.Priority{"inbox": {Order: 99, Label: "Later"}},
		}
		inbox, ok := p.Table().ForEntity("inbox")
		require.True(t, ok)
		assert.Equal(t, "Later", inbox.Label)

		_, ok = p.Table().ForEntity("archive")
		assert.True(t, ok)
	})
}

func TestLogConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", LogConfig{Level: "DEBUG"}.SlogLevel().String())
	assert.Equal(t, "INFO", LogConfig{Level: "chatty"}.SlogLevel().String())
	assert.Equal(t, "ERROR", LogConfig{Level: "error"}.SlogLevel().String())
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(nil)

	got := sc.Get()
	got.Log.Level = "debug"
	assert.Equal(t, "info", sc.Get().Log.Level, "Get returns a copy")

	bad := Default()
	bad.Transport = ""
	require.Error(t, sc.Update(bad))
	require.Error(t, sc.Update(nil))

	require.NoError(t, sc.Update(got))
	assert.Equal(t, "debug", sc.Get().Log.Level)
}
