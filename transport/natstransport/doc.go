// Package natstransport implements transport.Transport over NATS.
//
// Requests are published on per-operation subjects (store.mutate,
// store.query, store.watch by default) with a private reply inbox. The
// engine answers on the inbox with the status in the Store-Status header
// ("running", "done" or "error") and the encoded result as the body:
//
//	nc, _ := natsclient.NewClient(url)
//	_ = nc.Connect(ctx)
//	c := client.New(natstransport.New(nc, natstransport.WithLogger(logger)))
//
// Watched queries keep their inbox open and receive one reply per snapshot.
// Each request carries a Store-Request-Id header; watches also carry
// Store-Watch-Id. Cancelling publishes the id on the matching cancel subject.
//
// With WithKVWatch the engine writes snapshots into a JetStream KV bucket
// under the watch id instead of replying on the inbox. A put is delivered as
// Running; deleting the key completes the watch.
package natstransport
