package health

import (
	"regexp"
	"strings"
	"time"
)

// Health states
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|tls|wss?)://[^\s]+`)
	unixPathRegex   = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health of one connection, or an aggregate of several
type Status struct {
	Component   string            `json:"component"`
	Healthy     bool              `json:"healthy"`
	Status      string            `json:"status"`
	Message     string            `json:"message"`
	Timestamp   time.Time         `json:"timestamp"`
	Details     map[string]string `json:"details,omitempty"`
	SubStatuses []Status          `json:"sub_statuses,omitempty"`
}

// IsHealthy reports whether the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == StateHealthy
}

// IsDegraded reports whether the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == StateDegraded
}

// IsUnhealthy reports whether the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == StateUnhealthy
}

// WithDetail returns a copy carrying one more detail
func (s Status) WithDetail(key, value string) Status {
	details := make(map[string]string, len(s.Details)+1)
	for k, v := range s.Details {
		details[k] = v
	}
	details[key] = value
	s.Details = details
	return s
}

// sanitizeMessage strips addresses, paths and credentials from a message
// served to unauthenticated health probes.
func sanitizeMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// URLs contain paths, so they go first
	msg = urlRegex.ReplaceAllString(msg, "[URL]")
	msg = unixPathRegex.ReplaceAllString(msg, "[PATH]")
	msg = ipAddrRegex.ReplaceAllString(msg, "[IP]")
	msg = portRegex.ReplaceAllString(msg, "[PORT]")

	lower := strings.ToLower(msg)
	for _, word := range []string{"password", "token", "secret", "credential"} {
		if strings.Contains(lower, word) {
			msg = credentialRegex.ReplaceAllString(msg, "[REDACTED]")
			break
		}
	}
	return msg
}
