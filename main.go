package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/wcharczuk/observatory/internal/collector"
	"github.com/wcharczuk/observatory/internal/config"
	"github.com/wcharczuk/observatory/internal/httpz"
	"github.com/wcharczuk/observatory/internal/metrics"
	"github.com/wcharczuk/observatory/internal/observatory"
	"github.com/wcharczuk/observatory/internal/store"
)

var (
	flagConfig              = pflag.String("config", "", "An optional yaml config file; flags override its values")
	flagBindAddr            = pflag.String("bind-addr", "", "The server bind address")
	flagShutdownGracePeriod = pflag.Duration("shutdown-grace-period", 0, "The server shutdown grace period")
	flagStatusInterval      = pflag.Duration("status-interval", 0, "The interval delivery statistics are logged at")
	flagLogFormat           = pflag.String("log-format", "", "The log format (json|text)")
	flagLogLevel            = pflag.String("log-level", "",
		fmt.Sprintf(
			"The log level (%s>%s>%s>%s) (not case sensitive, from least to most restrictive)",
			slog.LevelDebug.String(),
			slog.LevelInfo.String(),
			slog.LevelWarn.String(),
			slog.LevelError.String(),
		))
	flagStore           = pflag.String("store", "", "The store kind (memory|sqlite)")
	flagStorePath       = pflag.String("store-path", "", "The sqlite database path")
	flagCollector       = pflag.String("collector", "", "The collector kind (http|sqs|discard)")
	flagCollectorURL    = pflag.String("collector-url", "", "The http collector url")
	flagCollectorAPIKey = pflag.String("collector-api-key", "", "The http collector bearer token")
	flagSQSQueueURL     = pflag.String("sqs-queue-url", "", "The sqs collector queue url")
	flagSQSEndpoint     = pflag.String("sqs-endpoint", "", "The sqs collector endpoint override")
	flagSQSRegion       = pflag.String("sqs-region", "", "The sqs collector region")
)

func main() {
	pflag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	//
	// logger setup
	//
	logLeveler := new(slog.LevelVar)
	logLevel, _ := config.ParseLogLevel(cfg.Logging.Level)
	logLeveler.Set(logLevel)
	handlerOptions := &slog.HandlerOptions{
		AddSource: false,
		Level:     logLeveler,
	}
	switch cfg.Logging.Format {
	case config.LogFormatText:
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, handlerOptions)))
	default:
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, handlerOptions)))
	}
	slog.Info("using log level", slog.String("log_level", logLeveler.Level().String()))

	//
	// pipeline setup
	//
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := openStore(cfg.Store)
	if err != nil {
		slog.Error("opening store failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer kv.Close()

	destination, err := newCollector(ctx, cfg.Collector)
	if err != nil {
		slog.Error("creating collector failed", slog.Any("err", err))
		os.Exit(1)
	}

	m := metrics.New()
	batcher := observatory.NewBatcher(destination).
		WithMetrics(m).
		WithBatchSize(cfg.Batcher.BatchSize).
		WithQuietPeriod(cfg.Batcher.QuietPeriod).
		WithMaxQueueLength(cfg.Batcher.MaxQueueLength).
		WithBackoff(cfg.Batcher.BackoffInitial, cfg.Batcher.BackoffMax)
	batcher.Start(ctx)
	defer batcher.Close()

	aggregator := observatory.NewAggregator(kv, batcher).
		WithMetrics(m).
		WithSessions(observatory.NewSessions().WithMetrics(m)).
		WithMaxLogEntries(cfg.Aggregator.MaxLogEntries)
	server := observatory.NewServer(aggregator)

	httpSrv := &http.Server{
		Addr:    cfg.Server.BindAddr,
		Handler: otelhttp.NewHandler(httpz.Logged(httpz.Gzipped(server)), "observatory"),
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		t := time.NewTicker(cfg.Server.StatusInterval)
		prevTimestamp := time.Now()
		defer t.Stop()
		var prevStats observatory.BatcherStats
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-t.C:
				prevStats = printStatistics(aggregator, time.Since(prevTimestamp), prevStats)
				prevTimestamp = time.Now()
			}
		}
	})
	group.Go(func() error {
		slog.Info("server listening", slog.String("addr", cfg.Server.BindAddr))
		return httpSrv.ListenAndServe()
	})
	group.Go(func() error {
		updateLogLevel := make(chan os.Signal, 1)
		updateLogLevelSignals := []os.Signal{
			syscall.SIGUSR1,
			syscall.SIGUSR2,
		}
		signal.Notify(updateLogLevel, updateLogLevelSignals...)
		defer signal.Reset(updateLogLevelSignals...)
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case sig := <-updateLogLevel:
				switch sig {
				case syscall.SIGUSR1:
					logLeveler.Set(quieterLevel(logLeveler.Level()))
				case syscall.SIGUSR2:
					logLeveler.Set(louderLevel(logLeveler.Level()))
				}
				slog.Warn("log level changed", slog.String("log_level", logLeveler.Level().String()))
			}
		}
	})
	group.Go(func() error {
		signalCtx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer done()
		select {
		case <-groupCtx.Done():
		case <-signalCtx.Done():
			slog.Info("shutting down")
		}
		shutdownContext, shutdownComplete := context.WithTimeout(context.Background(), cfg.Server.ShutdownGracePeriod)
		defer shutdownComplete()
		return httpSrv.Shutdown(shutdownContext)
	})
	if err := group.Wait(); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server exiting with error", slog.Any("err", err))
			batcher.Close()
			_ = kv.Close()
			os.Exit(1)
		}
	}
	if pending := batcher.Status().QueueLength; pending > 0 {
		slog.Warn("discarding undelivered events", slog.Int("pending", pending))
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *flagConfig != "" {
		var err error
		if cfg, err = config.Load(*flagConfig); err != nil {
			return nil, err
		}
	}
	overrides := []struct {
		flag  string
		apply func()
	}{
		{"bind-addr", func() { cfg.Server.BindAddr = *flagBindAddr }},
		{"shutdown-grace-period", func() { cfg.Server.ShutdownGracePeriod = *flagShutdownGracePeriod }},
		{"status-interval", func() { cfg.Server.StatusInterval = *flagStatusInterval }},
		{"log-format", func() { cfg.Logging.Format = *flagLogFormat }},
		{"log-level", func() { cfg.Logging.Level = *flagLogLevel }},
		{"store", func() { cfg.Store.Kind = *flagStore }},
		{"store-path", func() { cfg.Store.Path = *flagStorePath }},
		{"collector", func() { cfg.Collector.Kind = *flagCollector }},
		{"collector-url", func() { cfg.Collector.URL = *flagCollectorURL }},
		{"collector-api-key", func() { cfg.Collector.APIKey = *flagCollectorAPIKey }},
		{"sqs-queue-url", func() { cfg.Collector.SQS.QueueURL = *flagSQSQueueURL }},
		{"sqs-endpoint", func() { cfg.Collector.SQS.Endpoint = *flagSQSEndpoint }},
		{"sqs-region", func() { cfg.Collector.SQS.Region = *flagSQSRegion }},
	}
	for _, o := range overrides {
		if pflag.CommandLine.Changed(o.flag) {
			o.apply()
		}
	}
	if cfg.Server.StatusInterval <= 0 {
		cfg.Server.StatusInterval = config.Default().Server.StatusInterval
	}
	return cfg, cfg.Validate()
}

type closableStore interface {
	observatory.Store
	Close() error
}

func openStore(cfg config.StoreConfig) (closableStore, error) {
	switch cfg.Kind {
	case config.StoreMemory:
		slog.Warn("using in-memory store; tracking flags and stats are lost on exit")
		return store.NewMemory(), nil
	default:
		slog.Info("using sqlite store", slog.String("path", cfg.Path))
		return store.OpenSQLite(cfg.Path)
	}
}

func newCollector(ctx context.Context, cfg config.CollectorConfig) (observatory.Collector, error) {
	switch cfg.Kind {
	case config.CollectorSQS:
		slog.Info("delivering to sqs", slog.String("queue_url", cfg.SQS.QueueURL))
		return collector.NewSQSFromOptions(ctx, collector.SQSOptions{
			QueueURL:        cfg.SQS.QueueURL,
			Region:          cfg.SQS.Region,
			Endpoint:        cfg.SQS.Endpoint,
			AccessKeyID:     cfg.SQS.AccessKeyID,
			SecretAccessKey: cfg.SQS.SecretAccessKey,
		})
	case config.CollectorDiscard:
		slog.Warn("discarding tracked events; no collector configured")
		return collector.Discard{}, nil
	default:
		slog.Info("delivering to http collector", slog.String("url", cfg.URL))
		return collector.NewHTTP(cfg.URL).WithAPIKey(cfg.APIKey), nil
	}
}

func louderLevel(level slog.Level) slog.Level {
	switch level {
	case slog.LevelInfo:
		return slog.LevelDebug
	case slog.LevelWarn:
		return slog.LevelInfo
	case slog.LevelError:
		return slog.LevelWarn
	}
	return level
}

func quieterLevel(level slog.Level) slog.Level {
	switch level {
	case slog.LevelDebug:
		return slog.LevelInfo
	case slog.LevelInfo:
		return slog.LevelWarn
	case slog.LevelWarn:
		return slog.LevelError
	}
	return level
}

func printStatistics(aggregator *observatory.Aggregator, elapsed time.Duration, prev observatory.BatcherStats) observatory.BatcherStats {
	elapsedSeconds := float64(elapsed) / float64(time.Second)
	status := aggregator.Batcher().Status()
	changeEnqueued := float64(status.TotalEnqueued - prev.TotalEnqueued)
	changeDelivered := float64(status.TotalDelivered - prev.TotalDelivered)
	changeEvicted := float64(status.TotalEvicted - prev.TotalEvicted)
	slog.Debug(
		"statistics",
		slog.Int("queue_length", status.QueueLength),
		slog.Int("attempt", status.Attempt),
		slog.Int("sessions", aggregator.Sessions().Len()),
		slog.String("enqueued_rate", fmt.Sprintf("%0.2f/sec", changeEnqueued/elapsedSeconds)),
		slog.String("delivered_rate", fmt.Sprintf("%0.2f/sec", changeDelivered/elapsedSeconds)),
		slog.String("evicted_rate", fmt.Sprintf("%0.2f/sec", changeEvicted/elapsedSeconds)),
	)
	return status.BatcherStats
}
