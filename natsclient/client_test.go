package natsclient

import (
	"context"
	"crypto/tls"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/metric"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Nil(t, client.Conn())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestConnectionOptions_TLS(t *testing.T) {
	plain, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	secured, err := NewClient("tls://localhost:4222", WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS13}))
	require.NoError(t, err)

	assert.Len(t, secured.connectionOptions(), len(plain.connectionOptions())+1)
}

func TestNewClient_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  ClientOption
	}{
		{"nil logger", WithLogger(nil)},
		{"zero threshold", WithCircuitBreakerThreshold(0)},
		{"short backoff", WithMaxBackoff(10 * time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient("nats://localhost:4222", tt.opt)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	client, err := NewClient("nats://invalid:4222")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		client.recordFailure()
	}
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(5), client.Failures())
}

func TestCircuitBreaker_CustomThreshold(t *testing.T) {
	client, err := NewClient("nats://invalid:4222", WithCircuitBreakerThreshold(2))
	require.NoError(t, err)

	client.recordFailure()
	assert.NotEqual(t, StatusCircuitOpen, client.Status())
	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	m := metric.NewMetrics()
	client, err := NewClient("nats://localhost:4222", WithMetrics(m))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, float64(metric.CircuitOpen), testutil.ToFloat64(m.NATSCircuitBreaker))

	client.resetCircuit()
	assert.Equal(t, int32(0), client.Failures())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, time.Second, client.Backoff())
	assert.Equal(t, float64(metric.CircuitClosed), testutil.ToFloat64(m.NATSCircuitBreaker))
}

func TestCircuitBreaker_ExponentialBackoff(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithMaxBackoff(4*time.Second))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 2*time.Second, client.Backoff())

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 4*time.Second, client.Backoff())

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 4*time.Second, client.Backoff(), "backoff is capped")
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	client.setStatus(StatusCircuitOpen)
	client.testCircuit()
	assert.Equal(t, StatusDisconnected, client.Status())

	// Does not disturb a healthy connection.
	client.setStatus(StatusConnected)
	client.testCircuit()
	assert.Equal(t, StatusConnected, client.Status())
}

func TestConnect_CircuitOpenFailsFast(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	client.setStatus(StatusCircuitOpen)

	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestConnect_UnreachableServer(t *testing.T) {
	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(200*time.Millisecond),
		WithMaxReconnects(0),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, int32(1), client.Failures())
}

func TestConnect_AfterClose(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))

	assert.ErrorIs(t, client.Connect(context.Background()), ErrClosed)
}

func TestOperations_NotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.NewInbox()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.Subscribe("store.query", nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.ErrorIs(t, client.Publish(ctx, "store.query", nil), ErrNotConnected)

	_, err = client.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.GetKeyValueBucket(ctx, "entities")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)

	client.setStatus(StatusCircuitOpen)
	_, err = client.NewInbox()
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestWaitForConnection(t *testing.T) {
	t.Run("times out when not connected", func(t *testing.T) {
		client, err := NewClient("nats://localhost:4222")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err = client.WaitForConnection(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("returns when becomes connected", func(t *testing.T) {
		client, err := NewClient("nats://localhost:4222")
		require.NoError(t, err)

		go func() {
			time.Sleep(30 * time.Millisecond)
			client.setStatus(StatusConnected)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, client.WaitForConnection(ctx))
	})
}

func TestConcurrentFailures(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.recordFailure()
			_ = client.Status()
			_ = client.GetStatus()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), client.Failures())
	assert.Equal(t, StatusCircuitOpen, client.Status())
}
