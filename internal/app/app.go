package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/statuspage/internal/aggregator"
	"github.com/MrSnakeDoc/statuspage/internal/config"
	"github.com/MrSnakeDoc/statuspage/internal/domain"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver"
	"github.com/MrSnakeDoc/statuspage/internal/httpserver/deps"
	"github.com/MrSnakeDoc/statuspage/internal/incident"
	"github.com/MrSnakeDoc/statuspage/internal/logger"
	"github.com/MrSnakeDoc/statuspage/internal/metrics"
	"github.com/MrSnakeDoc/statuspage/internal/probe"
	"github.com/MrSnakeDoc/statuspage/internal/redis"
	"github.com/MrSnakeDoc/statuspage/internal/reload"
	"github.com/MrSnakeDoc/statuspage/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/statuspage/internal/store/redis"
	"github.com/MrSnakeDoc/statuspage/internal/version"
)

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	server   *httpserver.Server
	reloader *scheduler.CatalogReloader

	// central mode
	redisClient *goredis.Client
	store       *redisstore.Store
	aggregator  *aggregator.Aggregator
	syncer      *scheduler.StartupSyncer
	purger      *scheduler.RetentionPurger

	// probe mode
	prober     *probe.Scheduler
	probeCtx   context.Context
	probeReady bool // guarded by the reload controller's lock
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog,
		logger.String("mode", cfg.Mode()),
		logger.String("region", cfg.Region))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	a := &App{
		cfg:    cfg,
		logger: loggerClient,
	}

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		Mode:          cfg.Mode(),
		Region:        cfg.Region,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		APISecret:     cfg.APISecret,
		AdminSecret:   cfg.AdminSecret,
		Metrics:       m,
		Gatherer:      registry,
		ReloadTrigger: reloadTrigger,
	}

	var controller *reload.Controller
	if cfg.ProbeMode {
		controller = a.buildProbe(m)
		d.ProbeActive = a.prober.Active
	} else {
		controller = a.buildCentral(m)
		manager := incident.NewManager(a.store, a.aggregator, loggerClient)

		a.syncer = scheduler.NewStartupSyncer(a.aggregator, a.store, manager, loggerClient, cfg.HistoryDays)
		a.purger = scheduler.NewRetentionPurger(a.store, loggerClient, cfg.PurgeInterval, cfg.RetentionDays)

		d.Store = a.store
		d.Aggregator = a.aggregator
		d.Reload = controller
		d.Incidents = manager
	}

	a.reloader = scheduler.NewCatalogReloader(
		controller,
		loggerClient,
		cfg.CatalogReloadInterval,
		reloadTrigger,
	)
	a.server = httpserver.New(cfg, loggerClient, d)

	return a
}

// buildCentral connects Redis and builds the aggregator. The catalog is
// installed by the first reload.
func (a *App) buildCentral(m *metrics.Metrics) *reload.Controller {
	cfg := a.cfg

	// Initialize Redis early - fail fast if unavailable
	a.logger.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, a.logger)
	if err != nil {
		a.logger.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	a.logger.Info("Redis initialized successfully")
	a.redisClient = redisClient
	a.store = redisstore.NewStore(redisClient)

	a.aggregator = aggregator.New(nil, a.store, a.logger,
		aggregator.WithMetrics(m),
		aggregator.WithHistoryDays(cfg.HistoryDays),
	)

	return reload.NewController(cfg.CatalogFile, func(c *domain.Catalog) {
		a.aggregator.ReloadConfig(c)
	}, a.logger, m)
}

// buildProbe wires the probe pipeline: executor, debouncing scheduler and
// the reporter that forwards results to the central API.
func (a *App) buildProbe(m *metrics.Metrics) *reload.Controller {
	cfg := a.cfg

	executor := probe.NewExecutor(cfg.ProbeTimeout, m)
	reporter := probe.NewReporter(cfg.CentralURL, cfg.Region, cfg.APISecret, cfg.ReportTimeout, a.logger, m)
	a.prober = probe.NewScheduler(executor, reporter, a.logger, m, probe.SchedulerConfig{
		Interval:  cfg.ProbeInterval,
		Jitter:    cfg.ProbeJitter,
		Threshold: cfg.DebounceThreshold,
	})
	a.logger.Info("probe configured",
		logger.String("region", cfg.Region),
		logger.String("central", cfg.CentralURL))

	return reload.NewController(cfg.CatalogFile, a.applyProbeCatalog, a.logger, m)
}

func (a *App) applyProbeCatalog(c *domain.Catalog) {
	if !a.probeReady {
		a.probeReady = true
		a.prober.Start(a.probeCtx, c)
		return
	}
	a.prober.Reconfigure(c)
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting statuspage v%s (%s) on %s", version.Version, a.cfg.Mode(), a.cfg.ListenPort)
	a.logger.Infof("statuspage %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.probeCtx = ctx

	// Load the catalog and start watching it for changes
	if err := a.reloader.Start(ctx); err != nil {
		a.closeRedis()
		return fmt.Errorf("failed to start catalog reloader: %w", err)
	}
	a.logger.Info("catalog reloader started",
		logger.Duration("interval", a.cfg.CatalogReloadInterval))

	if a.syncer != nil {
		a.syncer.Sync(ctx)
	}

	if a.purger != nil {
		if err := a.purger.Start(ctx); err != nil {
			a.reloader.Stop()
			a.closeRedis()
			return fmt.Errorf("failed to start retention purger: %w", err)
		}
		a.logger.Info("retention purger started",
			logger.Duration("interval", a.cfg.PurgeInterval),
			logger.Int("retention_days", a.cfg.RetentionDays))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.logger.Info("⏳ Shutting down gracefully...")
		}
		return a.shutdown()
	})

	return g.Wait()
}

// shutdown stops background work, drains the HTTP server, then waits for
// pending history writes before closing Redis.
func (a *App) shutdown() error {
	a.reloader.Stop()
	if a.purger != nil {
		a.purger.Stop()
	}
	if a.prober != nil {
		a.prober.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	err := a.server.Stop(shutdownCtx)
	if err != nil {
		err = fmt.Errorf("failed to stop server: %w", err)
	}

	if a.aggregator != nil {
		a.aggregator.Wait()
	}
	a.closeRedis()

	if err == nil {
		a.logger.Info("✅ statuspage stopped cleanly")
	}
	return err
}

func (a *App) closeRedis() {
	if a.redisClient == nil {
		return
	}
	if err := a.redisClient.Close(); err != nil {
		a.logger.Warnf("failed to close redis: %v", err)
	} else {
		a.logger.Info("✅ Redis closed cleanly")
	}
}
