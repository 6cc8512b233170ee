package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/c360/traitstore/graph"
	"github.com/c360/traitstore/pkg/tlsutil"
	"github.com/c360/traitstore/transport/natstransport"
)

// Transport names
const (
	TransportNATS      = "nats"
	TransportWebSocket = "websocket"
)

// EnvPrefix prefixes every environment override, e.g. TRAITSTORE_NATS_URLS
const EnvPrefix = "TRAITSTORE"

// SubjectConfig names the NATS subjects the store engine answers on
type SubjectConfig = natstransport.Subjects

// TLSConfig secures a client connection; see tlsutil.ClientConfig
type TLSConfig = tlsutil.ClientConfig

// Config is the complete client configuration
type Config struct {
	Transport string          `json:"transport" mapstructure:"transport"`
	NATS      NATSConfig      `json:"nats" mapstructure:"nats"`
	Subjects  SubjectConfig   `json:"subjects" mapstructure:"subjects"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
	Priority  PriorityConfig  `json:"priority" mapstructure:"priority"`
	Log       LogConfig       `json:"log" mapstructure:"log"`
	Metrics   MetricsConfig   `json:"metrics" mapstructure:"metrics"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty" mapstructure:"urls"`
	Name          string        `json:"name,omitempty" mapstructure:"name"`
	MaxReconnects int           `json:"max_reconnects" mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait" mapstructure:"reconnect_wait"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout"`
	Username      string        `json:"username,omitempty" mapstructure:"username"`
	Password      string        `json:"password,omitempty" mapstructure:"password"`
	Token         string        `json:"token,omitempty" mapstructure:"token"`

	// CircuitBreakerThreshold is the consecutive failure count that opens
	// the client's circuit breaker
	CircuitBreakerThreshold int32 `json:"circuit_breaker_threshold" mapstructure:"circuit_breaker_threshold"`

	// ConnectAttempts bounds the initial connect retries
	ConnectAttempts int `json:"connect_attempts" mapstructure:"connect_attempts"`

	// KVWatchBucket switches watched queries to KV mode when set
	KVWatchBucket string `json:"kv_watch_bucket,omitempty" mapstructure:"kv_watch_bucket"`

	TLS TLSConfig `json:"tls" mapstructure:"tls"`
}

// URL joins the configured server URLs the way nats.Connect expects them
func (n NATSConfig) URL() string {
	return strings.Join(n.URLs, ",")
}

// WebSocketConfig defines the WebSocket transport endpoint
type WebSocketConfig struct {
	URL          string            `json:"url,omitempty" mapstructure:"url"`
	WriteTimeout time.Duration     `json:"write_timeout" mapstructure:"write_timeout"`
	Headers      map[string]string `json:"headers,omitempty" mapstructure:"headers"`
	TLS          TLSConfig         `json:"tls" mapstructure:"tls"`
}

// PriorityConfig customises the priority table handed to entity models.
// Entries override the built-in table unless UseDefaults is false, in which
// case they replace it.
type PriorityConfig struct {
	UseDefaults bool                      `json:"use_defaults" mapstructure:"use_defaults"`
	Types       map[string]graph.Priority `json:"types,omitempty" mapstructure:"types"`
	Entities    map[string]graph.Priority `json:"entities,omitempty" mapstructure:"entities"`
}

// Table builds the priority table
func (p PriorityConfig) Table() *graph.PriorityTable {
	t := graph.NewPriorityTable()
	if p.UseDefaults {
		t = graph.DefaultPriorityTable()
	}
	for name, prio := range p.Types {
		t.Types[name] = prio
	}
	for id, prio := range p.Entities {
		t.Entities[id] = prio
	}
	return t
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// SlogLevel converts Level, defaulting to info
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" mapstructure:"addr"`
	Path string `json:"path" mapstructure:"path"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Transport: TransportNATS,
		NATS: NATSConfig{
			URLs:                    []string{"nats://localhost:4222"},
			Name:                    "traitstore",
			MaxReconnects:           -1,
			ReconnectWait:           2 * time.Second,
			Timeout:                 5 * time.Second,
			CircuitBreakerThreshold: 5,
			ConnectAttempts:         5,
		},
		Subjects: natstransport.DefaultSubjects(),
		WebSocket: WebSocketConfig{
			WriteTimeout: 10 * time.Second,
		},
		Priority: PriorityConfig{UseDefaults: true},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig wraps cfg. A nil cfg wraps Default().
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update replaces the configuration after validating it
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
