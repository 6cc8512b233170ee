package health

import (
	"slices"
	"strings"
	"time"
)

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   sanitizeMessage(message),
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a healthy status
func NewHealthy(component, message string) Status {
	return newStatus(component, StateHealthy, message)
}

// NewUnhealthy creates an unhealthy status
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StateUnhealthy, message)
}

// NewDegraded creates a degraded status
func NewDegraded(component, message string) Status {
	return newStatus(component, StateDegraded, message)
}

// Aggregate folds sub-statuses into one. Any unhealthy sub-status makes the
// aggregate unhealthy; otherwise any degraded one makes it degraded.
// Sub-statuses are ordered by component name.
func Aggregate(component string, subs []Status) Status {
	if len(subs) == 0 {
		return NewHealthy(component, "No connections registered")
	}

	var unhealthy, degraded bool
	for _, sub := range subs {
		switch {
		case sub.IsUnhealthy():
			unhealthy = true
		case sub.IsDegraded():
			degraded = true
		}
	}

	var status Status
	switch {
	case unhealthy:
		status = NewUnhealthy(component, "One or more connections are unhealthy")
	case degraded:
		status = NewDegraded(component, "One or more connections are degraded")
	default:
		status = NewHealthy(component, "All connections are healthy")
	}

	status.SubStatuses = slices.Clone(subs)
	slices.SortFunc(status.SubStatuses, func(a, b Status) int {
		return strings.Compare(a.Component, b.Component)
	})
	return status
}
