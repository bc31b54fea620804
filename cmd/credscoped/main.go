// Command credscoped is the credscope platform service.
// It serves the scoring API, rescores stale targets on a schedule and
// publishes score events.
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

	"go.opentelemetry.io/otel"

	"github.com/credscope/credscope/internal/api"
	"github.com/credscope/credscope/internal/archive"
	"github.com/credscope/credscope/internal/bootstrap"
	"github.com/credscope/credscope/internal/events"
	"github.com/credscope/credscope/internal/logging"
	"github.com/credscope/credscope/internal/pipeline"
	"github.com/credscope/credscope/internal/platform"
	"github.com/credscope/credscope/internal/ratelimit"
	"github.com/credscope/credscope/internal/rescore"
	"github.com/credscope/credscope/internal/store"
	"github.com/credscope/credscope/internal/telemetry"
	"github.com/credscope/credscope/pkg/config"
	"github.com/credscope/credscope/pkg/scoring"
)

func loadConfig() (*config.Config, error) {
	path := os.Getenv("CREDSCOPE_CONFIG")
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = config.FindConfigFile(wd)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "credscoped:", err)
		os.Exit(1)
	}
	logger := logging.Init("credscoped", cfg.Log.Level, cfg.Log.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("credscoped exited", "error", err)
		os.Exit(1)
	}
}

// daemon holds everything the service owns between startup and shutdown.
type daemon struct {
	handler   http.Handler
	store     *store.Store
	limiter   *ratelimit.Limiter
	scheduler *rescore.Scheduler
	closers   []func()
}

func (d *daemon) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// setup opens every backend and assembles the HTTP handler. Optional
// backends (Redis, NATS, archive) are skipped when not configured.
func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	d := &daemon{}

	rdb, err := platform.OpenRedis(ctx, cfg.Social.RedisAddr, cfg.Social.RedisPassword, cfg.Social.RedisDB)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		d.closers = append(d.closers, func() { _ = rdb.Close() })
	}

	d.store, err = bootstrap.OpenStore(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.closers = append(d.closers, func() { _ = d.store.DB().Close() })

	results, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		d.Close()
		return nil, err
	}

	pub, err := events.Connect(cfg.Events.NATSURL, cfg.Events.Subject)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.closers = append(d.closers, func() { _ = pub.Close() })

	sink, err := telemetry.NewSink(otel.GetMeterProvider())
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	lookups := bootstrap.Lookups(ctx, cfg, d.store, rdb, logger)
	svc, err := pipeline.NewService(cfg.Tree(), lookups, d.store,
		pipeline.WithEngineOptions(
			scoring.WithTimeout(cfg.Timeout()),
			scoring.WithMetrics(sink),
			scoring.WithLogger(logger),
		),
		pipeline.WithArchive(results),
		pipeline.WithPublisher(pub),
		pipeline.WithRecorder(sink),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("invalid calculation tree: %w", err)
	}

	job := rescore.New(d.store, svc,
		rescore.WithBatch(cfg.Server.RescoreBatch),
		rescore.WithParallelism(cfg.Server.RescoreParallel),
		rescore.WithLogger(logger),
	)
	if cfg.Server.RescoreSchedule != "" {
		d.scheduler, err = rescore.NewScheduler(cfg.Server.RescoreSchedule, job)
		if err != nil {
			d.Close()
			return nil, err
		}
	}

	opts := []api.Option{
		api.WithRescorer(job),
		api.WithHealthCheck(d.store.DB().PingContext),
		api.WithLogger(logger),
	}
	if results != nil {
		opts = append(opts, api.WithResults(results))
	}
	mux := http.NewServeMux()
	api.NewHandler(svc, d.store, opts...).RegisterRoutes(mux)

	var h http.Handler = mux
	if cfg.Server.APIKey != "" {
		h = api.APIKeyAuth(cfg.Server.APIKey)(h)
	}
	if cfg.Server.RateLimit > 0 {
		d.limiter = ratelimit.New(cfg.Server.RateLimit, time.Minute,
			ratelimit.WithRedis(rdb), ratelimit.WithLogger(logger))
		h = api.RateLimit(d.limiter)(h)
	}
	d.handler = api.AccessLog(logger)(api.CORS(h))
	return d, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownMetrics := telemetry.InitMetrics(ctx, "credscoped", cfg.Telemetry.OTLPEndpoint)
	defer telemetry.Flush(context.Background(), shutdownMetrics)
	shutdownTracer := telemetry.InitTracer(ctx, "credscoped", cfg.Telemetry.OTLPEndpoint)
	defer telemetry.Flush(context.Background(), shutdownTracer)

	d, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if d.limiter != nil {
		go d.limiter.Run(ctx)
	}
	if d.scheduler != nil {
		d.scheduler.Start()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           d.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting credscoped", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if d.scheduler != nil {
		_ = d.scheduler.Stop(shutdownCtx)
	}
	return nil
}
