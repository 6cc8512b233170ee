package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/c360/traitstore/errors"
)

// Validate checks the configuration. Failures are ErrorInvalid.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err), "Config", "Validate", "validate")
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Transport {
	case TransportNATS:
		if err := c.NATS.validate(); err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		if err := validateSubjects(c.Subjects); err != nil {
			return fmt.Errorf("subjects: %w", err)
		}
	case TransportWebSocket:
		if err := c.WebSocket.validate(); err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
	default:
		return fmt.Errorf("transport %q is not one of %q, %q", c.Transport, TransportNATS, TransportWebSocket)
	}

	if err := c.Priority.validate(); err != nil {
		return fmt.Errorf("priority: %w", err)
	}
	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Metrics.Addr != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}
	return nil
}

func (n NATSConfig) validate() error {
	if len(n.URLs) == 0 {
		return fmt.Errorf("urls is required")
	}
	for _, u := range n.URLs {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("urls contains an empty entry")
		}
	}
	if n.MaxReconnects < -1 {
		return fmt.Errorf("max_reconnects %d must be -1 (unlimited) or more", n.MaxReconnects)
	}
	if n.ReconnectWait < 0 || n.Timeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if n.CircuitBreakerThreshold < 1 {
		return fmt.Errorf("circuit_breaker_threshold must be at least 1")
	}
	if n.ConnectAttempts < 1 {
		return fmt.Errorf("connect_attempts must be at least 1")
	}
	if n.Token != "" && (n.Username != "" || n.Password != "") {
		return fmt.Errorf("token and username/password are mutually exclusive")
	}
	if n.KVWatchBucket != "" && !isValidSubjectPart(n.KVWatchBucket, false) {
		return fmt.Errorf("kv_watch_bucket %q is not a valid bucket name", n.KVWatchBucket)
	}
	if err := n.TLS.Validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	return nil
}

func validateSubjects(s SubjectConfig) error {
	seen := make(map[string]string, 5)
	for name, subject := range map[string]string{
		"mutate":       s.Mutate,
		"query":        s.Query,
		"watch":        s.Watch,
		"watch_cancel": s.WatchCancel,
		"query_cancel": s.QueryCancel,
	} {
		if !isValidSubjectPart(subject, true) {
			return fmt.Errorf("%s subject %q is not a valid NATS subject", name, subject)
		}
		if other, dup := seen[subject]; dup {
			return fmt.Errorf("%s and %s share subject %q", name, other, subject)
		}
		seen[subject] = name
	}
	return nil
}

// isValidSubjectPart checks for alphanumerics, dashes and underscores,
// plus dots when allowDots is set
func isValidSubjectPart(s string, allowDots bool) bool {
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") || strings.Contains(s, "..") {
		return false
	}
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
		case r == '.' && allowDots:
		default:
			return false
		}
	}
	return true
}

func (w WebSocketConfig) validate() error {
	if w.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(w.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("url scheme %q must be ws or wss", u.Scheme)
	}
	if w.WriteTimeout < 0 {
		return fmt.Errorf("write_timeout must not be negative")
	}
	if err := w.TLS.Validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	return nil
}

func (p PriorityConfig) validate() error {
	for name, prio := range p.Types {
		if name == "" {
			return fmt.Errorf("types contains an empty type name")
		}
		if prio.UseDisplayName && prio.Label != "" {
			return fmt.Errorf("type %s sets both label and use_display_name", name)
		}
	}
	for id, prio := range p.Entities {
		if id == "" {
			return fmt.Errorf("entities contains an empty id")
		}
		if prio.UseDisplayName && prio.Label != "" {
			return fmt.Errorf("entity %s sets both label and use_display_name", id)
		}
	}
	return nil
}

func (l LogConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level %q is not one of debug, info, warn, error", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("format %q is not one of json, text", l.Format)
	}
	return nil
}
