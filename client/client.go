// Package client is the entry point to a traitstore engine. It combines the
// request builders, a codec, and a subscription manager over one transport,
// and materializes results into entity models.
//
//	c := client.New(t, client.WithLogger(logger))
//	defer c.Close()
//
//	models, err := c.Fetch(ctx, c.NewQuery().WithTrait(graph.TypeNote).Build())
package client

import (
	"context"
	"log/slog"

	"github.com/c360/traitstore/codec"
	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/graph"
	"github.com/c360/traitstore/graph/entity"
	"github.com/c360/traitstore/graph/request"
	"github.com/c360/traitstore/subscription"
	"github.com/c360/traitstore/transport"
)

// Option configures a Client
type Option func(*Client)

// WithCodec replaces the JSON codec
func WithCodec(c codec.Codec) Option {
	return func(cl *Client) {
		if c != nil {
			cl.codec = c
		}
	}
}

// WithPriorityTable sets the table passed to every entity model. The table
// is cloned, so later changes by the caller do not leak in.
func WithPriorityTable(t *graph.PriorityTable) Option {
	return func(cl *Client) {
		if t != nil {
			cl.table = t.Clone()
		}
	}
}

// WithIDGenerator sets the generator used by NewMutation and Rename
func WithIDGenerator(g request.IDGenerator) Option {
	return func(cl *Client) {
		if g != nil {
			cl.ids = g
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// WithMetrics records subscription metrics
func WithMetrics(m *subscription.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// Client sends requests to an engine and builds entity models from results
type Client struct {
	codec   codec.Codec
	table   *graph.PriorityTable
	ids     request.IDGenerator
	logger  *slog.Logger
	metrics *subscription.Metrics

	manager *subscription.Manager
}

var _ entity.Mutator = (*Client)(nil)

// New creates a client over t
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		codec:  codec.JSON{},
		table:  graph.DefaultPriorityTable(),
		ids:    request.UUIDGenerator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.manager = subscription.NewManager(t, c.codec,
		subscription.WithLogger(c.logger),
		subscription.WithMetrics(c.metrics))
	return c
}

// Manager returns the underlying subscription manager
func (c *Client) Manager() *subscription.Manager {
	return c.manager
}

// PriorityTable returns a copy of the table used for models
func (c *Client) PriorityTable() *graph.PriorityTable {
	return c.table.Clone()
}

// NewMutation returns a mutation builder using the client's id generator
func (c *Client) NewMutation(opts ...request.MutationOption) *request.MutationBuilder {
	return request.NewMutationBuilder(append([]request.MutationOption{request.WithIDGenerator(c.ids)}, opts...)...)
}

// NewQuery returns a query builder
func (c *Client) NewQuery() *request.QueryBuilder {
	return request.NewQueryBuilder()
}

// Mutate sends req without waiting
func (c *Client) Mutate(ctx context.Context, req request.MutationRequest) (*subscription.Pending[*request.MutationResult], error) {
	return c.manager.Mutate(ctx, req)
}

// Query sends q without waiting
func (c *Client) Query(ctx context.Context, q request.EntityQuery) (*subscription.QueryHandle, error) {
	return c.manager.Query(ctx, q)
}

// Watch streams results for q to fn
func (c *Client) Watch(ctx context.Context, q request.EntityQuery, fn func(subscription.WatchEvent)) (*subscription.WatchHandle, error) {
	return c.manager.Watch(ctx, q, fn)
}

// WatchModels streams results for q as entity models. Events carrying an
// error are passed through with nil models.
func (c *Client) WatchModels(ctx context.Context, q request.EntityQuery, fn func([]*entity.Model, subscription.WatchEvent)) (*subscription.WatchHandle, error) {
	return c.manager.Watch(ctx, q, func(ev subscription.WatchEvent) {
		var models []*entity.Model
		if ev.Result != nil {
			models = c.Models(ev.Result.Entities)
		}
		fn(models, ev)
	})
}

// Apply sends req and waits for the outcome. It implements entity.Mutator.
func (c *Client) Apply(ctx context.Context, req request.MutationRequest) (*request.MutationResult, error) {
	p, err := c.manager.Mutate(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := p.Wait(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Client", "Apply", "wait for mutation")
	}
	return res, nil
}

// Fetch runs q once and returns a model per matched entity
func (c *Client) Fetch(ctx context.Context, q request.EntityQuery) ([]*entity.Model, error) {
	h, err := c.manager.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	res, err := h.Wait(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Client", "Fetch", "wait for query")
	}
	h.Release()
	return c.Models(res.Entities), nil
}

// Get fetches one entity by id
func (c *Client) Get(ctx context.Context, id string) (*entity.Model, error) {
	models, err := c.Fetch(ctx, c.NewQuery().WithIDs(id).Build())
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		if m.ID() == id {
			return m, nil
		}
	}
	return nil, errors.Wrap(errors.ErrEntityMissing, "Client", "Get", "find "+id)
}

// Model builds an entity model wired to this client for renames
func (c *Client) Model(e graph.Entity) *entity.Model {
	return entity.New(e, c.table,
		entity.WithMutator(c),
		entity.WithMutationOptions(request.WithIDGenerator(c.ids)))
}

// Models builds a model per entity, preserving order
func (c *Client) Models(entities []graph.Entity) []*entity.Model {
	out := make([]*entity.Model, 0, len(entities))
	for _, e := range entities {
		out = append(out, c.Model(e))
	}
	return out
}

// Close cancels outstanding watches and queries
func (c *Client) Close() error {
	return c.manager.Close()
}
