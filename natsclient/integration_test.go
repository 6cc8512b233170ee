//go:build integration

package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/traitstore/metric"
)

func TestIntegration_Connect(t *testing.T) {
	tc := NewTestClient(t)

	assert.True(t, tc.Client.IsHealthy())
	assert.NotNil(t, tc.Client.Conn())

	rtt, err := tc.Client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))

	status := tc.Client.GetStatus()
	assert.Equal(t, StatusConnected, status.Status)
	assert.Equal(t, int32(0), status.FailureCount)
}

func TestIntegration_MetricsAndHealthCallback(t *testing.T) {
	tc := NewTestClient(t)

	m := metric.NewMetrics()
	healthy := make(chan bool, 4)
	client := tc.NewConnectedClient(t,
		WithMetrics(m),
		WithHealthChangeCallback(func(h bool) { healthy <- h }),
	)

	assert.True(t, client.IsHealthy())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSConnected))
	select {
	case h := <-healthy:
		assert.True(t, h)
	case <-time.After(time.Second):
		t.Fatal("health callback not invoked")
	}

	require.NoError(t, client.Close(context.Background()))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NATSConnected))
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestIntegration_InboxRequestReply(t *testing.T) {
	tc := NewTestClient(t)
	ctx := context.Background()

	responder := tc.NewConnectedClient(t)
	_, err := responder.Subscribe("store.echo", func(msg *nats.Msg) {
		reply := nats.NewMsg(msg.Reply)
		reply.Header.Set("Store-Status", "done")
		reply.Data = msg.Data
		_ = msg.RespondMsg(reply)
	})
	require.NoError(t, err)
	require.NoError(t, responder.Conn().Flush())

	inbox, err := tc.Client.NewInbox()
	require.NoError(t, err)

	replies := make(chan *nats.Msg, 1)
	sub, err := tc.Client.Subscribe(inbox, func(msg *nats.Msg) { replies <- msg })
	require.NoError(t, err)

	msg := nats.NewMsg("store.echo")
	msg.Reply = inbox
	msg.Data = []byte(`{"ping":true}`)
	require.NoError(t, tc.Client.PublishMsg(ctx, msg))

	select {
	case reply := <-replies:
		assert.Equal(t, "done", reply.Header.Get("Store-Status"))
		assert.JSONEq(t, `{"ping":true}`, string(reply.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no reply received")
	}

	require.NoError(t, tc.Client.Unsubscribe(sub))
	require.NoError(t, tc.Client.Unsubscribe(sub), "unsubscribing twice is harmless")
}

func TestIntegration_KeyValueBuckets(t *testing.T) {
	tc := NewTestClient(t, WithKVBuckets("entities"))
	ctx := context.Background()

	bucket, err := tc.Client.GetKeyValueBucket(ctx, "entities")
	require.NoError(t, err)

	_, err = bucket.Put(ctx, "entity_1", []byte(`{"id":"entity_1"}`))
	require.NoError(t, err)

	// Creating an existing bucket returns it.
	again, err := tc.Client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: "entities"})
	require.NoError(t, err)

	entry, err := again.Get(ctx, "entity_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"entity_1"}`, string(entry.Value()))

	_, err = tc.Client.GetKeyValueBucket(ctx, "missing")
	assert.Error(t, err)
}
