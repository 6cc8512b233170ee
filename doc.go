// Package traitstore is a client library for trait stores: engines that hold
// entities, each carrying a set of typed traits (notes, tasks, contacts,
// links, collections), and answer mutations, one-shot queries and watched
// queries over a message transport.
//
// # Architecture
//
// The client is layered so each concern can be tested on its own:
//
//	┌─────────────────────────────────────┐
//	│          client.Client              │  Builders, Apply, Fetch, Get,
//	│  (entity.Model, entity.Instance)    │  WatchModels, rename
//	└─────────────────────────────────────┘
//	           ↓ correlates through
//	┌─────────────────────────────────────┐
//	│       subscription.Manager          │  Pending mutations and queries,
//	│   (Query, Watch, handle release)    │  watch state machine
//	└─────────────────────────────────────┘
//	           ↓ encodes with
//	┌─────────────────────────────────────┐
//	│            codec.JSON               │  Requests, results, trait
//	│                                     │  payload envelopes
//	└─────────────────────────────────────┘
//	           ↓ sends over
//	┌─────────────────────────────────────┐
//	│        transport.Transport          │  natstransport (request/reply,
//	│                                     │  KV watch), wstransport
//	└─────────────────────────────────────┘
//
// # Packages
//
//   - graph: entity, trait and payload types plus the priority table
//   - graph/request: mutation and query builders, results
//   - graph/entity: Model and Instance views over a fetched entity
//   - codec: wire encoding of requests, results and payloads
//   - transport: the callback contract every transport implements
//   - subscription: correlation of transport callbacks to callers
//   - client: the public facade
//   - natsclient: NATS connection with circuit breaker and metrics
//   - config: viper-backed configuration with validation
//   - metric, health: Prometheus metrics and connection health over HTTP
//   - pkg/retry, pkg/tlsutil: connect retries and client TLS
//   - testutil: in-memory store and engines for every transport
//
// # Command Line
//
// traitctl exercises the full stack:
//
//	traitctl --config traitstore.yaml create note '{"title":"Groceries"}'
//	traitctl query --trait task --order-by title
//	traitctl watch --trait task
package traitstore
