// Package testutil provides in-memory engines and helpers for testing code
// that talks to a trait store.
//
// # Core Components
//
// MemoryStore - An in-memory entity store:
//   - Applies mutation requests atomically
//   - Evaluates every query predicate, ordering, paging and projection
//   - Fixtures and SeededStore provide a small mixed data set
//
// Engines - Serve a MemoryStore through each transport:
//   - MemoryEngine implements transport.Transport directly, delivering
//     callbacks from one goroutine
//   - NATSEngine answers the natstransport subjects over a real NATS
//     connection, including KV watch mode
//   - WSEngine is an http.Handler speaking the wstransport frame protocol
//
// ScriptedTransport - Records sends and cancels and lets a test play
// callbacks by hand, for exercising ordering and race edge cases.
//
// # Usage
//
//	engine := testutil.NewMemoryEngine(testutil.SeededStore())
//	defer engine.Close()
//
//	c := client.New(engine)
//	models, err := c.Fetch(ctx, c.NewQuery().WithTrait(graph.TypeTask).Build())
//
// Over WebSocket:
//
//	engine := testutil.NewWSEngine(nil)
//	srv := httptest.NewServer(engine)
//	defer srv.Close()
//
//	t, err := wstransport.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
package testutil
