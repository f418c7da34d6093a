// Package main provides the vault service daemon that runs all components together:
// - HTTP API: instantiate, deposit, withdraw, supply and balance queries
// - Operation feed: WebSocket broadcast of every committed operation
// - Export (scheduled): audit-trail copy into the ClickHouse analytics sink
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"pooled-vault/internal/dispatch"
	"pooled-vault/internal/export"
	"pooled-vault/internal/observability"
	"pooled-vault/internal/oracle"
	"pooled-vault/internal/storage"
	chstore "pooled-vault/internal/storage/clickhouse"
	"pooled-vault/internal/storage/memory"
	"pooled-vault/internal/storage/migrations"
	pgstore "pooled-vault/internal/storage/postgres"
	"pooled-vault/internal/vault"
)

// Server holds all components of the vault service.
type Server struct {
	cfg    serverConfig
	stores *allStores
	hub    *dispatch.EventHub
	logger *log.Logger

	// State
	mu            sync.Mutex
	started       time.Time
	lastExportRun time.Time
	exportRunning bool
	exportRuns    int
}

// allStores holds all storage implementations.
type allStores struct {
	ledgerStore    storage.LedgerStore
	configStore    storage.ConfigStore
	operationStore storage.OperationStore
	analyticsStore storage.OperationAnalyticsStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", "", "Path to TOML config file (explicit flags override file values)")
	listenAddr := flag.String("listen-addr", ":8080", "HTTP listen address")
	oracleEndpoint := flag.String("oracle-endpoint", os.Getenv("ORACLE_ENDPOINT"), "Valuation oracle HTTP endpoint")
	oracleTimeout := flag.Duration("oracle-timeout", 10*time.Second, "Per-call oracle timeout")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	exportInterval := flag.Duration("export-interval", 1*time.Minute, "Analytics export interval")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[vaultd] ", log.LstdFlags|log.Lshortfile)

	cfg := serverConfig{
		ListenAddr:     *listenAddr,
		OracleEndpoint: *oracleEndpoint,
		OracleTimeout:  *oracleTimeout,
		PostgresDSN:    *postgresDSN,
		ClickhouseDSN:  *clickhouseDSN,
		ExportInterval: *exportInterval,
		UseMemory:      *useMemory,
	}
	if *configPath != "" {
		if err := applyFileConfig(*configPath, &cfg, setFlags()); err != nil {
			logger.Fatalf("Failed to load config file: %v", err)
		}
	}

	// Validate required settings
	if cfg.OracleEndpoint == "" {
		logger.Fatal("--oracle-endpoint is required")
	}
	if !cfg.UseMemory && (cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Wire the engine and the API layer
	oracleClient := oracle.NewHTTPClient(cfg.OracleEndpoint, oracle.WithTimeout(cfg.OracleTimeout))
	engine := vault.New(stores.ledgerStore, stores.configStore, oracleClient)
	hub := dispatch.NewEventHub(nil, log.New(os.Stdout, "[events] ", log.LstdFlags))
	dispatcher := dispatch.NewDispatcher(engine, stores.operationStore, hub, logger)

	// Create server
	server := &Server{
		cfg:     cfg,
		stores:  stores,
		hub:     hub,
		logger:  logger,
		started: time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(dispatcher)

	// Run the vault service
	err = server.Run(ctx)
	done <- err
	cancel()

	if closeErr := hub.Close(); closeErr != nil {
		logger.Printf("Event hub close error: %v", closeErr)
	}

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores and applies schema migrations.
func createStores(ctx context.Context, cfg serverConfig, logger *log.Logger) (*allStores, func(), error) {
	if cfg.UseMemory {
		stores := &allStores{
			ledgerStore:    memory.NewLedgerStore(),
			configStore:    memory.NewConfigStore(),
			operationStore: memory.NewOperationStore(),
			analyticsStore: memory.NewOperationAnalyticsStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL: ledger, config, audit trail
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse: analytics sink
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		ledgerStore:    pgstore.NewLedgerStore(pool),
		configStore:    pgstore.NewConfigStore(pool),
		operationStore: pgstore.NewOperationStore(pool),
		analyticsStore: chstore.NewOperationStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	logger.Println("Connected to PostgreSQL and ClickHouse")
	return stores, cleanup, nil
}

// Run starts the background workers and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting vault service...")

	// Create error channel for goroutines
	errCh := make(chan error, 1)

	// Start export scheduler in background
	go func() {
		err := s.runExportScheduler(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("export scheduler: %w", err)
		}
	}()

	// Feed the uptime counter
	go s.runUptimeCounter(ctx)

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runExportScheduler copies the audit trail into the analytics sink on schedule.
func (s *Server) runExportScheduler(ctx context.Context) error {
	s.logger.Printf("Starting export scheduler (interval: %v)...", s.cfg.ExportInterval)

	exporter := export.NewExporter(export.Options{
		Source: s.stores.operationStore,
		Sink:   s.stores.analyticsStore,
		Logger: log.New(os.Stdout, "[export] ", log.LstdFlags),
	})

	// Run immediately on start
	s.runExport(ctx, exporter)

	ticker := time.NewTicker(s.cfg.ExportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runExport(ctx, exporter)
		}
	}
}

// runExport executes one export run.
func (s *Server) runExport(ctx context.Context, exporter *export.Exporter) {
	s.mu.Lock()
	if s.exportRunning {
		s.mu.Unlock()
		s.logger.Println("Export already running, skipping...")
		return
	}
	s.exportRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.exportRunning = false
		s.lastExportRun = time.Now()
		s.exportRuns++
		s.mu.Unlock()
	}()

	result, err := exporter.Run(ctx)
	if err != nil {
		s.logger.Printf("Export error: %v", err)
		return
	}
	if result.OperationsExported > 0 {
		s.logger.Printf("Exported %d operations in %v", result.OperationsExported, result.Duration)
	}
}

// runUptimeCounter increments the uptime metric once per second.
func (s *Server) runUptimeCounter(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.DefaultMetrics.UptimeSeconds.Inc()
		}
	}
}

// startHTTPServer starts the HTTP server for the vault API, the
// operation feed, and health/metrics/status.
func (s *Server) startHTTPServer(d *dispatch.Dispatcher) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	// Operation feed
	mux.HandleFunc("/ws", s.hub.HandleWS)

	// Vault API
	d.RegisterRoutes(mux)

	s.logger.Printf("Starting HTTP server on %s", s.cfg.ListenAddr)
	if err := http.ListenAndServe(s.cfg.ListenAddr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	Started       time.Time `json:"started"`
	LastExportRun time.Time `json:"last_export_run,omitempty"`
	ExportRuns    int       `json:"export_runs"`
	ExportRunning bool      `json:"export_running"`
	WSClients     int       `json:"ws_clients"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).String(),
		Started:       s.started,
		LastExportRun: s.lastExportRun,
		ExportRuns:    s.exportRuns,
		ExportRunning: s.exportRunning,
		WSClients:     s.hub.ClientCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
