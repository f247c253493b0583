package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"options-paper-ledger/internal/api"
	"options-paper-ledger/internal/config"
	"options-paper-ledger/internal/ledger"
	"options-paper-ledger/internal/logger"
	"options-paper-ledger/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, st, err := newServer(ctx, &cfg, log)
	if err != nil {
		log.Fatal("Failed to build web server", zap.Error(err))
	}
	defer st.Close()

	go func() {
		log.Info("Starting web server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("Web server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
	log.Info("Web server stopped")
}

// newServer opens the configured record store and wires the ledger API on top of it.
// The caller owns the returned store and must close it.
func newServer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*http.Server, store.RecordStore, error) {
	loc, err := cfg.Ledger.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid ledger configuration: %w", err)
	}

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open record store: %w", err)
	}

	l := ledger.New(st, log,
		ledger.WithLocation(loc),
		ledger.WithOwnerScoping(cfg.Ledger.OwnerScoping),
		ledger.WithSnapshotCache(cfg.Ledger.CacheTTL),
	)
	if err := l.Init(ctx); err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("initialize ledger: %w", err)
	}

	apiHandler := api.NewAPIHandler(log, l, cfg.Ledger.DefaultOwner)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: apiHandler.Routes(),
	}
	return server, st, nil
}
