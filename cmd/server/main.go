// Package main provides the presale server:
// - HTTP API over the sale engine (launch setup, buys, claims, success distribution)
// - websocket receipt feed
// - Prometheus metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"meme-presale/internal/address"
	"meme-presale/internal/config"
	"meme-presale/internal/feed"
	"meme-presale/internal/ledger"
	"meme-presale/internal/observability"
	"meme-presale/internal/sale"
	"meme-presale/internal/storage"
	chstore "meme-presale/internal/storage/clickhouse"
	"meme-presale/internal/storage/memory"
	"meme-presale/internal/storage/migrations"
	pgstore "meme-presale/internal/storage/postgres"
)

// allStores holds all storage implementations.
type allStores struct {
	launchStore       storage.LaunchStore
	counterStore      storage.CounterStore
	globalConfigStore storage.GlobalConfigStore
	receiptStore      storage.ReceiptStore
	ledger            ledger.Ledger

	// Optional analytics sink; also registered as a receipt publisher.
	analytics interface {
		storage.ReceiptAnalyticsStore
		sale.Publisher
	}
}

func main() {
	// Load .env file if exists
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", os.Getenv("PRESALE_CONFIG"), "Path to YAML config file")
	listenAddr := flag.String("listen-addr", "", "HTTP API address (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	devFaucet := flag.Bool("dev-faucet", false, "Expose POST /dev/fund")
	verbose := flag.Bool("verbose", false, "Debug logging")

	flag.Parse()

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logger := logrus.WithField("component", "server")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		logger.Fatalf("Invalid environment: %v", err)
	}
	overrideString(&cfg.Server.ListenAddr, *listenAddr)
	overrideString(&cfg.Server.MetricsAddr, *metricsAddr)
	overrideString(&cfg.Storage.PostgresDSN, *postgresDSN)
	overrideString(&cfg.Storage.ClickhouseDSN, *clickhouseDSN)
	if *useMemory {
		cfg.Storage.UseMemory = true
	}
	if *devFaucet {
		cfg.Server.DevFaucet = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v (use --use-memory for in-memory storage)", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	stores, cleanup, err := createStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	hub := feed.NewHub(feed.Options{
		Logger:     logrus.WithField("component", "feed"),
		MaxClients: cfg.Server.FeedClients,
	})
	defer hub.Close()

	engine, err := newEngine(ctx, cfg, stores, hub)
	if err != nil {
		logger.Fatalf("Failed to create sale engine: %v", err)
	}

	a := &api{
		engine:    engine,
		ledger:    stores.ledger,
		hub:       hub,
		logger:    logrus.WithField("component", "api"),
		devFaucet: cfg.Server.DevFaucet,
	}
	if stores.analytics != nil {
		a.analytics = stores.analytics
	}

	mux := a.routes()
	if cfg.Server.MetricsAddr == "" {
		mux.Handle("GET /metrics", observability.Handler())
	} else {
		go startMetricsServer(ctx, cfg.Server.MetricsAddr, logger)
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warnf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = serve(ctx, cfg.Server.ListenAddr, mux, logger)
	done <- err

	if err != nil {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Info("Shutdown complete")
}

func overrideString(dst *string, flagValue string) {
	if flagValue != "" {
		*dst = flagValue
	}
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg config.StorageConfig, logger logrus.FieldLogger) (*allStores, func(), error) {
	if cfg.UseMemory {
		logger.Info("Using in-memory storage")
		stores := &allStores{
			launchStore:       memory.NewLaunchStore(),
			counterStore:      memory.NewCounterStore(),
			globalConfigStore: memory.NewGlobalConfigStore(),
			receiptStore:      memory.NewReceiptStore(),
			ledger:            ledger.NewMemoryLedger(),
			analytics:         memory.NewReceiptAnalyticsStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Migrate {
		if _, err := migrations.RunPostgresMigrations(ctx, pool, logger.WithField("store", "postgres")); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	stores := &allStores{
		launchStore:       pgstore.NewLaunchStore(pool),
		counterStore:      pgstore.NewCounterStore(pool),
		globalConfigStore: pgstore.NewGlobalConfigStore(pool),
		receiptStore:      pgstore.NewReceiptStore(pool),
		ledger:            pgstore.NewLedger(pool),
	}
	cleanup := func() { pool.Close() }

	// ClickHouse (analytics, optional)
	if cfg.ClickhouseDSN == "" {
		logger.Warn("No ClickHouse DSN configured, receipt analytics disabled")
		return stores, cleanup, nil
	}

	var chConn *chstore.Conn
	if cfg.Migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, logger.WithField("store", "clickhouse"))
	} else {
		chConn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	stores.analytics = chstore.NewReceiptEventStore(chConn)

	cleanup = func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// newEngine builds the sale engine and bootstraps the global config on a fresh deployment.
func newEngine(ctx context.Context, cfg config.Config, stores *allStores, hub *feed.Hub) (*sale.Engine, error) {
	deriver, err := address.NewDeriver(cfg.Sale.ProgramID, cfg.Sale.AddressCacheSize)
	if err != nil {
		return nil, fmt.Errorf("address deriver: %w", err)
	}

	publishers := []sale.Publisher{hub}
	if stores.analytics != nil {
		publishers = append(publishers, stores.analytics)
	}

	poolCreationFee := cfg.Sale.PoolCreationFee
	creatorGain := cfg.Sale.CreatorGain
	engine, err := sale.New(sale.Options{
		LaunchStore:       stores.launchStore,
		CounterStore:      stores.counterStore,
		GlobalConfigStore: stores.globalConfigStore,
		ReceiptStore:      stores.receiptStore,
		Ledger:            stores.ledger,
		Addresses:         deriver,
		Logger:            logrus.WithField("component", "sale"),
		Publishers:        publishers,
		PoolCreationFee:   &poolCreationFee,
		CreatorGain:       &creatorGain,
		MintSuffix:        cfg.Sale.MintSuffix,
	})
	if err != nil {
		return nil, err
	}

	if _, err := engine.EnsureGlobalConfig(ctx, cfg.GlobalConfig()); err != nil {
		return nil, fmt.Errorf("bootstrap global config: %w", err)
	}
	return engine, nil
}

// serve runs the API server until ctx is canceled.
func serve(ctx context.Context, addr string, handler http.Handler, logger logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting HTTP server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func startMetricsServer(ctx context.Context, addr string, logger logrus.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	if err := serve(ctx, addr, mux, logger.WithField("listener", "metrics")); err != nil {
		logger.Errorf("Metrics server error: %v", err)
	}
}
