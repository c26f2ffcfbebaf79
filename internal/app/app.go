package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"FilingScanner/internal/config"
	"FilingScanner/internal/dedup"
	"FilingScanner/internal/gate"
	"FilingScanner/internal/infrastructure/edgar"
	"FilingScanner/internal/infrastructure/marketdata"
	"FilingScanner/internal/infrastructure/natsbus"
	"FilingScanner/internal/infrastructure/parser"
	"FilingScanner/internal/infrastructure/resilience"
	"FilingScanner/internal/infrastructure/scheduler"
	"FilingScanner/internal/infrastructure/storage"
	"FilingScanner/internal/infrastructure/telegram"
	"FilingScanner/internal/infrastructure/tracking"
	"FilingScanner/internal/logging"
	"FilingScanner/internal/observability/metrics"
	"FilingScanner/internal/ratelimit"
	"FilingScanner/internal/rules"
	"FilingScanner/internal/scanner"
	"FilingScanner/internal/scoring"
	"FilingScanner/internal/signals"
	"FilingScanner/internal/usecase"
	"FilingScanner/pkg/logger"
)

// historyWarmup bounds how many stored alerts seed the gate on start.
const historyWarmup = 200

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	metrics   *metrics.Scanner
	server    *http.Server
	closers   []func()
}

// New builds every component. Optional sinks that cannot connect are
// logged and left out; a broken rules table is fatal.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	}
	app := &Application{cfg: cfg, logger: baseLogger, metrics: metrics.NewScanner()}

	table, err := loadRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(cfg.SEC.MinInterval)
	client := edgar.NewClient(nil, limiter, cfg.SEC.UserAgent)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewAtomScanner(client))
	source := parser.NewStrategySource(registry, cfg.SEC.Feeds, cfg.Poller, baseLogger.With("component", "source"))

	fetchExecutor := resilience.NewExecutor(retryPolicy(cfg.Fetch.Retry), baseLogger.With("component", "resilience.fetch"))
	fetcher := edgar.NewDocumentFetcher(client, fetchExecutor, edgar.FetchConfig{
		MaxDocuments:     cfg.Fetch.MaxDocuments,
		MaxDocumentBytes: cfg.Fetch.MaxDocumentBytes,
		MaxTextBytes:     cfg.Fetch.MaxTextBytes,
	}, baseLogger.With("component", "fetcher"))

	entityExecutor := resilience.NewExecutor(retryPolicy(cfg.Entity.Retry), baseLogger.With("component", "resilience.entity"))
	entities := edgar.NewCycleCache(edgar.NewEntityResolver(client, entityExecutor, cfg.SEC.DataURL, baseLogger.With("component", "entity")))

	extractor, err := signals.NewExtractor(table)
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}
	scorer, err := scoring.New(table)
	if err != nil {
		return nil, fmt.Errorf("build scorer: %w", err)
	}
	eligibility, err := gate.New(gateConfig(cfg.Gate), table)
	if err != nil {
		return nil, fmt.Errorf("build gate: %w", err)
	}

	market := buildMarketData(cfg, client, app.metrics, baseLogger)

	sinks := []usecase.Sink{{Name: "log", Dispatcher: usecase.NewLogDispatcher(baseLogger.With("component", "alerts"))}}
	sinks = append(sinks, app.optionalSinks(ctx, eligibility)...)
	dispatcher := usecase.NewFanout(baseLogger.With("component", "dispatch"), app.metrics, sinks...)

	app.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Dedup:      dedup.New(dedup.DefaultCapacity, dedup.DefaultRetain),
		Fetcher:    fetcher,
		Entities:   entities,
		Extractor:  extractor,
		MarketData: market,
		Scorer:     scorer,
		Gate:       eligibility,
		Dispatcher: dispatcher,
		CycleCache: entities,
		Observer:   app.metrics,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	schedCfg, err := schedulerConfig(cfg.Scheduler)
	if err != nil {
		return nil, err
	}
	driver := scheduler.NewAdaptiveScheduler(schedCfg, scheduler.WithIntervalHook(app.metrics.SetPollInterval))
	app.scheduler = usecase.NewScheduler(driver, app.pipeline)

	if cfg.Metrics.Addr != "" {
		app.server = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(app.metrics),
			ReadHeaderTimeout: 5 * time.Second,
			ErrorLog:          logger.New(baseLogger, "metrics"),
		}
	}

	baseLogger.Info("application ready",
		"feeds", len(cfg.SEC.Feeds),
		"scanners", registry.Names(),
		"sinks", dispatcher.Sinks(),
		"metrics", cfg.Metrics.Addr != "",
	)
	return app, nil
}

// Run starts the poll loop and blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if a.server != nil {
		go func() {
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scanner started")

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler did not stop cleanly", "error", err)
	}
	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	return nil
}

// RunOnce executes a single poll cycle, for smoke runs and cron-driven use.
func (a *Application) RunOnce(ctx context.Context) usecase.CycleReport {
	defer func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
	}()
	return a.pipeline.RunCycle(ctx, time.Now())
}

func (a *Application) optionalSinks(ctx context.Context, eligibility *gate.Gate) []usecase.Sink {
	var sinks []usecase.Sink
	cfg := a.cfg

	tg := cfg.Notifications.Telegram
	if notifier := telegram.NewNotifier(tg.BotToken, tg.ChatID, tg.BaseURL); notifier.Configured() {
		sinks = append(sinks, usecase.Sink{Name: "telegram", Dispatcher: usecase.NewNotifierDispatcher(notifier)})
	}

	if cfg.Database.DSN != "" {
		if repo, err := a.openRepository(ctx, eligibility); err != nil {
			a.logger.Warn("postgres sink disabled", "error", err)
		} else {
			sinks = append(sinks, usecase.Sink{Name: "postgres", Dispatcher: usecase.NewRepositoryDispatcher(repo)})
		}
	}

	if cfg.Tracking.Path != "" {
		sinks = append(sinks, usecase.Sink{Name: "tracking", Dispatcher: usecase.NewRepositoryDispatcher(tracking.NewCSVTracker(cfg.Tracking.Path))})
	}

	if cfg.NATS.URL != "" {
		publisher, err := natsbus.Connect(cfg.NATS.URL, cfg.NATS.Subject, natsbus.Options{
			Executor: resilience.NewExecutor(resilience.DefaultConfig(), a.logger.With("component", "resilience.nats")),
			Logger:   a.logger.With("component", "nats"),
		})
		if err != nil {
			a.logger.Warn("nats sink disabled", "error", err)
		} else {
			a.closers = append(a.closers, publisher.Close)
			sinks = append(sinks, usecase.Sink{Name: "nats", Dispatcher: usecase.NewRepositoryDispatcher(publisher)})
		}
	}

	return sinks
}

// openRepository connects, ensures the schema and replays recent alerts
// into the gate so a restart does not re-alert the same event.
func (a *Application) openRepository(ctx context.Context, eligibility *gate.Gate) (*storage.PostgresRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := storage.Open(connectCtx, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	repo := storage.NewPostgresRepository(db)
	if err := repo.EnsureSchema(connectCtx); err != nil {
		return nil, err
	}

	history, err := repo.RecentDecisions(connectCtx, historyWarmup)
	if err != nil {
		a.logger.Warn("alert history unavailable", "error", err)
		return repo, nil
	}
	for _, decision := range history {
		eligibility.Commit(decision)
	}
	a.logger.Info("alert history restored", "alerts", len(history))
	return repo, nil
}

func buildMarketData(cfg config.Config, client *edgar.Client, observer marketdata.Observer, baseLogger *slog.Logger) *marketdata.Resolver {
	md := cfg.MarketData
	httpClient := &http.Client{Timeout: md.ProviderTimeout}

	providers := []marketdata.Provider{
		marketdata.NewSECXBRL(client, cfg.SEC.DataURL),
		marketdata.NewFilingText(),
	}
	if md.Finnhub.APIKey != "" {
		providers = append(providers, marketdata.NewFinnhub(httpClient, md.Finnhub.BaseURL, md.Finnhub.APIKey))
	}
	if md.FMP.APIKey != "" {
		providers = append(providers, marketdata.NewFMP(httpClient, md.FMP.BaseURL, md.FMP.APIKey))
	}
	if md.Polygon.APIKey != "" {
		providers = append(providers, marketdata.NewPolygon(httpClient, md.Polygon.BaseURL, md.Polygon.APIKey))
	}

	logger := baseLogger.With("component", "marketdata")
	executor := resilience.NewExecutor(resilience.Config{
		MaxAttempts:             1,
		AttemptTimeout:          md.ProviderTimeout,
		BreakerEnabled:          md.Breaker.Enabled,
		BreakerMinRequests:      md.Breaker.MinRequests,
		BreakerFailureRatio:     md.Breaker.FailureRatio,
		BreakerOpenTimeout:      md.Breaker.OpenTimeout,
		BreakerHalfOpenMaxCalls: 1,
	}, logger)

	return marketdata.NewResolver(marketdata.Config{
		ProviderTimeout: md.ProviderTimeout,
		Chains:          marketdata.ChainsFromConfig(md.Chains),
	}, providers, logger, marketdata.WithExecutor(executor), marketdata.WithObserver(observer))
}

func loadRules(cfg config.RulesConfig) (*rules.Table, error) {
	if cfg.Path == "" {
		table, err := rules.Default()
		if err != nil {
			return nil, fmt.Errorf("load default rules: %w", err)
		}
		return table, nil
	}
	table, err := rules.Load(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("load rules %s: %w", cfg.Path, err)
	}
	return table, nil
}

func retryPolicy(rc config.RetryConfig) resilience.Config {
	policy := resilience.DefaultConfig()
	if rc.MaxAttempts > 0 {
		policy.MaxAttempts = rc.MaxAttempts
	}
	if rc.AttemptTimeout > 0 {
		policy.AttemptTimeout = rc.AttemptTimeout
	}
	if rc.Delay > 0 {
		policy.Delay = rc.Delay
		policy.MaxDelay = rc.Delay
	}
	if rc.Cooldown > 0 {
		policy.Cooldown = rc.Cooldown
	}
	return policy
}

// gateConfig overlays configured thresholds on the defaults; zero values
// keep the default.
func gateConfig(gc config.GateConfig) gate.Config {
	out := gate.DefaultConfig()
	if len(gc.AllowedJurisdictions) > 0 {
		out.AllowedJurisdictions = gc.AllowedJurisdictions
	}
	if len(gc.HighRiskJurisdictions) > 0 {
		out.HighRiskJurisdictions = gc.HighRiskJurisdictions
	}
	for form, ceiling := range gc.FloatCeilings {
		if ceiling > 0 {
			out.FloatCeilings[form] = ceiling
		}
	}
	overrides := []struct {
		src float64
		dst *float64
	}{
		{gc.DefaultFloatCeiling, &out.DefaultFloatCeiling},
		{gc.VolumeFloor, &out.VolumeFloor},
		{gc.LoweredVolumeFloor, &out.LoweredVolumeFloor},
		{gc.VolumeBypassRatio, &out.VolumeBypassRatio},
		{gc.ExtremeRatioHigh, &out.ExtremeRatioHigh},
		{gc.ExtremeRatioLow, &out.ExtremeRatioLow},
		{gc.HighScore, &out.HighScore},
		{gc.StrongVolumeScore, &out.StrongVolumeScore},
	}
	for _, o := range overrides {
		if o.src > 0 {
			*o.dst = o.src
		}
	}
	if gc.MinDistinctSignals > 0 {
		out.MinDistinctSignals = gc.MinDistinctSignals
	}
	return out
}

func schedulerConfig(sc config.SchedulerConfig) (scheduler.Config, error) {
	out := scheduler.DefaultConfig()
	out.Location = sc.Location()

	if sc.Peak.Start != "" || sc.Peak.End != "" {
		w, err := scheduler.ParseWindow(sc.Peak.Start, sc.Peak.End)
		if err != nil {
			return out, fmt.Errorf("scheduler peak window: %w", err)
		}
		out.Peak = w
	}
	if sc.Trading.Start != "" || sc.Trading.End != "" {
		w, err := scheduler.ParseWindow(sc.Trading.Start, sc.Trading.End)
		if err != nil {
			return out, fmt.Errorf("scheduler trading window: %w", err)
		}
		out.Trading = w
	}
	if sc.PeakInterval > 0 {
		out.PeakInterval = sc.PeakInterval
	}
	if sc.TradingInterval > 0 {
		out.TradingInterval = sc.TradingInterval
	}
	if sc.OffHoursInterval > 0 {
		out.OffHoursInterval = sc.OffHoursInterval
	}
	if sc.WeekendInterval > 0 {
		out.WeekendInterval = sc.WeekendInterval
	}
	return out, nil
}

func metricsMux(m *metrics.Scanner) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
