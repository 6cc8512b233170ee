package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/traitstore/client"
	"github.com/c360/traitstore/codec"
	"github.com/c360/traitstore/graph"
	"github.com/c360/traitstore/graph/request"
	"github.com/c360/traitstore/testutil"
	"github.com/c360/traitstore/transport"
)

type watchRun struct {
	app  *app
	tr   *testutil.ScriptedTransport
	out  *bytes.Buffer
	call testutil.Call
	done chan error
}

// startWatch runs app.watch against a scripted transport and waits until
// the watched query was sent
func startWatch(t *testing.T, limit int) *watchRun {
	t.Helper()
	out := &bytes.Buffer{}
	tr := testutil.NewScriptedTransport()
	a := newApp(out)
	a.client = client.New(tr)
	t.Cleanup(func() { _ = a.client.Close() })

	done := make(chan error, 1)
	go func() {
		done <- a.watch(t.Context(), request.NewQueryBuilder().All().Build(), limit)
	}()

	var call testutil.Call
	require.Eventually(t, func() bool {
		var ok bool
		call, ok = tr.LastCall(testutil.KindWatch)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return &watchRun{app: a, tr: tr, out: out, call: call, done: done}
}

func (r *watchRun) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return")
		return nil
	}
}

func (r *watchRun) lines(t *testing.T) []watchView {
	t.Helper()
	var views []watchView
	for _, line := range strings.Split(strings.TrimSpace(r.out.String()), "\n") {
		var v watchView
		require.NoError(t, json.Unmarshal([]byte(line), &v))
		views = append(views, v)
	}
	return views
}

func watchResult(t *testing.T, ids ...string) []byte {
	t.Helper()
	res := &request.QueryResult{OperationID: 1}
	for _, id := range ids {
		res.Entities = append(res.Entities, graph.Entity{
			ID:     id,
			Traits: []graph.Trait{graph.NewTrait(id+"-n", graph.Note{Title: id})},
		})
	}
	data, err := codec.JSON{}.EncodeQueryResult(res)
	require.NoError(t, err)
	return data
}

func TestWatch_UndecodableUpdateDoesNotEndStream(t *testing.T) {
	r := startWatch(t, 0)

	r.tr.Fire(r.call.Handle, transport.StatusRunning, []byte("not json"))
	r.tr.Fire(r.call.Handle, transport.StatusRunning, watchResult(t, "a"))
	r.tr.Fire(r.call.Handle, transport.StatusDone, nil)

	require.NoError(t, r.wait(t))
	views := r.lines(t)
	require.Len(t, views, 3)
	assert.Equal(t, "running", views[0].State)
	assert.NotEmpty(t, views[0].Error)
	assert.Equal(t, "running", views[1].State)
	require.Len(t, views[1].Entities, 1)
	assert.Equal(t, "a", views[1].Entities[0].ID)
	assert.Equal(t, "done", views[2].State)
	assert.Equal(t, 0, r.tr.CancelCount(r.call.Handle))
}

func TestWatch_LimitCountsDecodedUpdates(t *testing.T) {
	r := startWatch(t, 1)

	r.tr.Fire(r.call.Handle, transport.StatusRunning, []byte("not json"))
	r.tr.Fire(r.call.Handle, transport.StatusRunning, watchResult(t, "a"))

	require.NoError(t, r.wait(t))
	assert.Len(t, r.lines(t), 2)
	assert.Equal(t, 1, r.tr.CancelCount(r.call.Handle))
	assert.Equal(t, 0, r.app.client.Manager().Stats().Active)
}

func TestWatch_ErrorStateFails(t *testing.T) {
	r := startWatch(t, 0)

	r.tr.Fire(r.call.Handle, transport.StatusError, []byte("engine restarted"))

	err := r.wait(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine restarted")
	assert.Equal(t, 0, r.tr.CancelCount(r.call.Handle))
	assert.Equal(t, 0, r.app.client.Manager().Stats().Active)
}

func TestWatch_ContextCancelReleasesWatch(t *testing.T) {
	out := &bytes.Buffer{}
	tr := testutil.NewScriptedTransport()
	a := newApp(out)
	a.client = client.New(tr)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- a.watch(ctx, request.NewQueryBuilder().All().Build(), 0) }()

	require.Eventually(t, func() bool {
		_, ok := tr.LastCall(testutil.KindWatch)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return")
	}
	call, _ := tr.LastCall(testutil.KindWatch)
	assert.Equal(t, 1, tr.CancelCount(call.Handle))
	assert.Equal(t, 0, a.client.Manager().Stats().Active)
	require.NoError(t, a.client.Close())
}
