// Package retry provides exponential backoff retry for transient failures.
//
// Do and DoWithResult run an operation until it succeeds or the config
// gives up. By default errors are retried unless they are marked with
// NonRetryable, classified invalid or fatal by the errors package, or are
// context errors.
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay
//   - Quick(): 10 attempts, 50ms-1s delay
//   - Persistent(): 30 attempts, 200ms-10s delay
//
// # Usage
//
//	cfg := retry.Quick()
//	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
//	    logger.Warn("Connect failed, retrying", "attempt", attempt, "delay", delay, "error", err)
//	}
//	err := retry.Do(ctx, cfg, natsClient.Connect)
//
// Retry with result:
//
//	kv, err := retry.DoWithResult(ctx, retry.DefaultConfig(),
//	    func(ctx context.Context) (jetstream.KeyValue, error) {
//	        return natsClient.GetKeyValueBucket(ctx, bucket)
//	    })
//
// All functions are safe for concurrent use and stop as soon as ctx ends,
// whether during an attempt or during the backoff delay.
package retry
