package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/c360/traitstore/client"
	"github.com/c360/traitstore/config"
	"github.com/c360/traitstore/health"
	"github.com/c360/traitstore/metric"
	"github.com/c360/traitstore/natsclient"
	"github.com/c360/traitstore/pkg/retry"
	"github.com/c360/traitstore/pkg/tlsutil"
	"github.com/c360/traitstore/subscription"
	"github.com/c360/traitstore/transport"
	"github.com/c360/traitstore/transport/natstransport"
	"github.com/c360/traitstore/transport/wstransport"
)

const shutdownTimeout = 10 * time.Second

// app holds everything a command needs once the root command has run its
// setup. Resources are released in reverse order of acquisition.
type app struct {
	out    io.Writer
	logOut io.Writer

	v          *viper.Viper
	configPath string

	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *metric.Server
	health   *health.Monitor
	client   *client.Client

	closers []func(context.Context) error
}

func newApp(out io.Writer) *app {
	return &app{
		out:    out,
		logOut: os.Stderr,
		v:      config.NewViper(),
	}
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// setup loads configuration, starts the metrics endpoint and connects the
// configured transport
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.logger = setupLogger(a.logOut, cfg.Log)

	a.registry = metric.NewMetricsRegistry()
	subMetrics, err := subscription.NewMetrics(a.registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	a.health = health.NewMonitor(appName)
	if cfg.Metrics.Addr != "" {
		a.metrics = metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, a.registry)
		a.metrics.HandleHealth(a.health.Handler())
		if err := a.metrics.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		a.onClose(a.metrics.Stop)
		a.logger.Info("Metrics server listening", "address", a.metrics.Address())
	}

	t, err := a.connect(ctx)
	if err != nil {
		return err
	}

	a.client = client.New(t,
		client.WithLogger(a.logger),
		client.WithMetrics(subMetrics),
		client.WithPriorityTable(cfg.Priority.Table()))
	a.onClose(func(context.Context) error { return a.client.Close() })
	return nil
}

func (a *app) connect(ctx context.Context) (transport.Transport, error) {
	switch a.cfg.Transport {
	case config.TransportWebSocket:
		return a.connectWebSocket(ctx)
	default:
		return a.connectNATS(ctx)
	}
}

func (a *app) retryConfig(attempts int, target string) retry.Config {
	rc := retry.Quick()
	rc.MaxAttempts = attempts
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		a.logger.Warn("Connect failed, retrying",
			"target", target,
			"attempt", attempt,
			"delay", delay,
			"error", err)
	}
	return rc
}

func (a *app) connectNATS(ctx context.Context) (transport.Transport, error) {
	nc := a.cfg.NATS
	core := a.registry.CoreMetrics()

	opts := []natsclient.ClientOption{
		natsclient.WithLogger(a.logger),
		natsclient.WithMetrics(core),
		natsclient.WithName(nc.Name),
		natsclient.WithMaxReconnects(nc.MaxReconnects),
		natsclient.WithReconnectWait(nc.ReconnectWait),
		natsclient.WithTimeout(nc.Timeout),
		natsclient.WithCircuitBreakerThreshold(nc.CircuitBreakerThreshold),
	}
	tlsConfig, err := tlsutil.LoadClientConfig(nc.TLS)
	if err != nil {
		return nil, fmt.Errorf("load NATS TLS config: %w", err)
	}
	if tlsConfig != nil {
		opts = append(opts, natsclient.WithTLSConfig(tlsConfig))
	}
	switch {
	case nc.Token != "":
		opts = append(opts, natsclient.WithToken(nc.Token))
	case nc.Username != "":
		opts = append(opts, natsclient.WithCredentials(nc.Username, nc.Password))
	}

	conn, err := natsclient.NewClient(nc.URL(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	a.logger.Info("Connecting to NATS", "url", nc.URL())
	if err := retry.Do(ctx, a.retryConfig(nc.ConnectAttempts, nc.URL()), conn.Connect); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	a.onClose(conn.Close)
	a.health.Register("nats", health.NATSCheck(conn))

	topts := []natstransport.Option{
		natstransport.WithSubjects(a.cfg.Subjects),
		natstransport.WithLogger(a.logger),
		natstransport.WithMetrics(core),
	}
	if nc.KVWatchBucket != "" {
		topts = append(topts, natstransport.WithKVWatch(nc.KVWatchBucket))
	}
	t := natstransport.New(conn, topts...)
	a.onClose(func(context.Context) error { return t.Close() })
	return t, nil
}

func (a *app) connectWebSocket(ctx context.Context) (transport.Transport, error) {
	ws := a.cfg.WebSocket
	header := make(http.Header, len(ws.Headers))
	for k, v := range ws.Headers {
		header.Set(k, v)
	}

	tlsConfig, err := tlsutil.LoadClientConfig(ws.TLS)
	if err != nil {
		return nil, fmt.Errorf("load websocket TLS config: %w", err)
	}

	a.logger.Info("Connecting to WebSocket", "url", ws.URL)
	t, err := retry.DoWithResult(ctx, a.retryConfig(a.cfg.NATS.ConnectAttempts, ws.URL),
		func(ctx context.Context) (*wstransport.Transport, error) {
			return wstransport.Dial(ctx, ws.URL, header,
				wstransport.WithLogger(a.logger),
				wstransport.WithMetrics(a.registry.CoreMetrics()),
				wstransport.WithWriteTimeout(ws.WriteTimeout),
				wstransport.WithTLSConfig(tlsConfig))
		})
	if err != nil {
		return nil, fmt.Errorf("connect to websocket: %w", err)
	}
	a.health.Register("websocket", health.DoneCheck("websocket", t.Done()))
	a.onClose(func(context.Context) error { return t.Close() })
	return t, nil
}

// teardown releases resources in reverse order and joins their errors
func (a *app) teardown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return stderrors.Join(errs...)
}
