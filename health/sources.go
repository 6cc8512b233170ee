package health

import (
	"context"
	"fmt"
	"strconv"

	"github.com/c360/traitstore/natsclient"
)

// NATSCheck reports a NATS client's connection state. Reconnecting counts as
// degraded; an open circuit or a dropped connection is unhealthy.
func NATSCheck(c *natsclient.Client) Check {
	return func(context.Context) Status {
		st := c.GetStatus()

		var s Status
		switch st.Status {
		case natsclient.StatusConnected:
			s = NewHealthy("nats", "Connected")
			if st.RTT > 0 {
				s = s.WithDetail("rtt", st.RTT.String())
			}
		case natsclient.StatusConnecting, natsclient.StatusReconnecting:
			s = NewDegraded("nats", fmt.Sprintf("Connection %s", st.Status))
		case natsclient.StatusCircuitOpen:
			s = NewUnhealthy("nats", "Circuit breaker open")
		default:
			s = NewUnhealthy("nats", "Disconnected")
		}

		if st.FailureCount > 0 {
			s = s.WithDetail("failures", strconv.Itoa(int(st.FailureCount)))
		}
		return s
	}
}

// DoneCheck reports healthy until done is closed. It fits connections that
// expose their lifetime as a channel, such as a websocket transport.
func DoneCheck(component string, done <-chan struct{}) Check {
	return func(context.Context) Status {
		select {
		case <-done:
			return NewUnhealthy(component, "Connection closed")
		default:
			return NewHealthy(component, "Connected")
		}
	}
}
