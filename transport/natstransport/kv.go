package natstransport

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/transport"
)

func (t *Transport) bucket(ctx context.Context) (jetstream.KeyValue, error) {
	t.mu.Lock()
	kv := t.kv
	t.mu.Unlock()
	if kv != nil {
		return kv, nil
	}

	kv, err := t.conn.GetKeyValueBucket(ctx, t.kvBucket)
	if err != nil {
		return nil, errors.WrapTransient(err, "Transport", "WatchedQuery", "open KV bucket "+t.kvBucket)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.kv == nil {
		t.kv = kv
	}
	return t.kv, nil
}

// watchKV registers a watch whose snapshots arrive through the KV bucket.
// The key watcher starts before the registration is published so the first
// snapshot cannot be missed. The registration reply only matters when it
// reports an error.
func (t *Transport) watchKV(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	kv, err := t.bucket(ctx)
	if err != nil {
		return nil, err
	}

	op, err := t.register(ctx, kindWatch, cb)
	if err != nil {
		return nil, err
	}

	// The watcher outlives the send; Stop ends it.
	watcher, err := kv.Watch(context.Background(), op.id)
	if err != nil {
		t.unregister(op)
		return nil, errors.WrapTransient(err, "Transport", "WatchedQuery", "watch KV key")
	}
	op.watcher = watcher

	msg, err := t.subscribeReply(op, t.subjects.Watch, req, func(status transport.Status, payload []byte) {
		if status == transport.StatusError {
			t.deliver(op, status, payload)
		}
	})
	if err != nil {
		t.finish(op)
		return nil, err
	}
	msg.Header.Set(HeaderWatchID, op.id)
	msg.Header.Set(HeaderWatchMode, WatchModeKV)

	go t.pumpKV(op, watcher)

	if err := t.conn.PublishMsg(ctx, msg); err != nil {
		t.finish(op)
		t.metrics.RecordTransportError(metricsTransport, "publish")
		return nil, errors.WrapTransient(err, "Transport", "WatchedQuery", "publish request")
	}

	t.metrics.RecordRequest(metricsTransport, string(kindWatch))
	t.logger.Debug("KV watch registered", "id", op.id, "bucket", t.kvBucket)
	return transportHandle(op), nil
}

// pumpKV turns key updates into callbacks: a put is a Running snapshot and
// a delete or purge completes the watch. The loop ends when the watcher is
// stopped.
func (t *Transport) pumpKV(op *operation, watcher jetstream.KeyWatcher) {
	for entry := range watcher.Updates() {
		if entry == nil {
			// End of the initial values.
			continue
		}
		switch entry.Operation() {
		case jetstream.KeyValuePut:
			t.deliver(op, transport.StatusRunning, entry.Value())
		case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
			t.deliver(op, transport.StatusDone, nil)
			return
		}
	}
}
