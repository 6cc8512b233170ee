//go:build integration

package natstransport_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/suite"

	"github.com/c360/traitstore/client"
	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/graph"
	"github.com/c360/traitstore/graph/entity"
	"github.com/c360/traitstore/natsclient"
	"github.com/c360/traitstore/subscription"
	"github.com/c360/traitstore/testutil"
	"github.com/c360/traitstore/transport/natstransport"
)

const watchBucket = "traitstore_watches"

type NATSTransportSuite struct {
	suite.Suite
	nats   *natsclient.TestClient
	engine *testutil.NATSEngine
	ctx    context.Context
	cancel context.CancelFunc
}

func TestNATSTransportSuite(t *testing.T) {
	suite.Run(t, new(NATSTransportSuite))
}

func (s *NATSTransportSuite) SetupSuite() {
	s.nats = natsclient.NewTestClient(s.T(), natsclient.WithKVBuckets(watchBucket))
}

func (s *NATSTransportSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Second)

	kv, err := s.nats.Client.GetKeyValueBucket(s.ctx, watchBucket)
	s.Require().NoError(err)

	engineConn := s.nats.NewConnectedClient(s.T())
	s.engine = testutil.NewNATSEngine(engineConn, nil, testutil.WithKVBucket(kv))
	s.Require().NoError(s.engine.Start())
}

func (s *NATSTransportSuite) TearDownTest() {
	s.engine.Stop()
	s.cancel()
}

func (s *NATSTransportSuite) newClient(opts ...natstransport.Option) *client.Client {
	t := natstransport.New(s.nats.Client, opts...)
	c := client.New(t)
	s.T().Cleanup(func() {
		_ = c.Close()
		_ = t.Close()
	})
	return c
}

func (s *NATSTransportSuite) TestCreateFetchRename() {
	c := s.newClient()

	b := c.NewMutation().CreateEntity()
	id := b.EntityID()
	_, err := c.Apply(s.ctx, b.PutTrait(graph.Note{Title: "draft"}).Build())
	s.Require().NoError(err)

	model, err := c.Get(s.ctx, id)
	s.Require().NoError(err)
	inst, err := model.PriorityTrait()
	s.Require().NoError(err)
	_, err = inst.Rename(s.ctx, "final")
	s.Require().NoError(err)

	models, err := c.Fetch(s.ctx, c.NewQuery().WithTrait(graph.TypeNote).Build())
	s.Require().NoError(err)
	s.Require().Len(models, 1)
	s.Equal("final", models[0].DisplayName())
}

func (s *NATSTransportSuite) TestEngineErrorSurfacesAsTransportError() {
	c := s.newClient()

	_, err := c.Apply(s.ctx, c.NewMutation().UpdateEntity("ghost").DeleteTrait("t").Build())
	s.True(errors.IsTransport(err))
}

func (s *NATSTransportSuite) TestNoResponders() {
	c := s.newClient(natstransport.WithSubjects(natstransport.Subjects{
		Mutate:      "nobody.mutate",
		Query:       "nobody.query",
		Watch:       "nobody.watch",
		WatchCancel: "nobody.watch.cancel",
		QueryCancel: "nobody.query.cancel",
	}))

	_, err := c.Fetch(s.ctx, c.NewQuery().All().Build())
	s.Require().Error(err)
	s.True(errors.IsTransport(err))
	s.Contains(err.Error(), "no responders")
}

func (s *NATSTransportSuite) TestInboxWatch() {
	s.runWatch(s.newClient())
}

func (s *NATSTransportSuite) TestKVWatch() {
	s.runWatch(s.newClient(natstransport.WithKVWatch(watchBucket)))
}

func (s *NATSTransportSuite) runWatch(c *client.Client) {
	var mu sync.Mutex
	var sizes []int
	updates := make(chan struct{}, 16)
	done := make(chan subscription.State, 1)

	h, err := c.WatchModels(s.ctx, c.NewQuery().WithTrait(graph.TypeTask).Build(),
		func(models []*entity.Model, ev subscription.WatchEvent) {
			if ev.State.Terminal() {
				done <- ev.State
				return
			}
			mu.Lock()
			sizes = append(sizes, len(models))
			mu.Unlock()
			updates <- struct{}{}
		})
	s.Require().NoError(err)

	s.wait(updates)
	_, err = c.Apply(s.ctx, c.NewMutation().CreateEntity().PutTrait(graph.Task{Title: "ship"}).Build())
	s.Require().NoError(err)
	s.wait(updates)

	s.Require().True(s.engine.FinishWatch(h.ID()))
	select {
	case state := <-done:
		s.Equal(subscription.StateDone, state)
	case <-s.ctx.Done():
		s.FailNow("watch did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	s.Equal([]int{0, 1}, sizes)
}

func (s *NATSTransportSuite) TestCancelNotifiesEngine() {
	c := s.newClient()

	h, err := c.Watch(s.ctx, c.NewQuery().All().Build(), nil)
	s.Require().NoError(err)
	s.Eventually(func() bool { return s.engine.ActiveWatches() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.True(h.Cancel())
	s.Eventually(func() bool { return s.engine.ActiveWatches() == 0 }, 2*time.Second, 10*time.Millisecond)
	s.Contains(s.engine.Cancellations(), h.ID())
}

func (s *NATSTransportSuite) TestKVBucketMissing() {
	c := s.newClient(natstransport.WithKVWatch("missing_bucket"))

	_, err := c.Watch(s.ctx, c.NewQuery().All().Build(), nil)
	s.Require().Error(err)
	s.ErrorIs(err, jetstream.ErrBucketNotFound)
}

func (s *NATSTransportSuite) wait(ch <-chan struct{}) {
	select {
	case <-ch:
	case <-s.ctx.Done():
		s.FailNow("timed out waiting for watch update")
	}
}
