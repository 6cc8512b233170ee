// Package natsclient manages the NATS connection used by the NATS transport.
//
// The Client wraps a nats.Conn with a circuit breaker: after a threshold of
// consecutive failures (default 5) the circuit opens and Connect fails fast
// with ErrCircuitOpen. After the backoff elapses the circuit half-opens and
// the next Connect may try again. Each opening doubles the backoff, capped by
// WithMaxBackoff.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry.CoreMetrics()),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	inbox, _ := client.NewInbox()
//	sub, _ := client.Subscribe(inbox, func(msg *nats.Msg) { ... })
//
// Subscriptions made through the client are tracked and removed on Close,
// which then drains the connection within the drain timeout or ctx,
// whichever ends first.
//
// # Testing
//
// NewTestClient starts a NATS container through testcontainers and returns a
// connected client. Tests using it carry the integration build tag:
//
//	tc := natsclient.NewTestClient(t, natsclient.WithKVBuckets("entities"))
//	bucket, _ := tc.Client.GetKeyValueBucket(ctx, "entities")
package natsclient
