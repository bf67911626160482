package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fracshare/marketd/params"
	"github.com/fracshare/marketd/pkg/api"
	"github.com/fracshare/marketd/pkg/engine"
	"github.com/fracshare/marketd/pkg/engine/ledger"
	"github.com/fracshare/marketd/pkg/market"
	"github.com/fracshare/marketd/pkg/metrics"
	"github.com/fracshare/marketd/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	if dir := filepath.Dir(cfg.LogFile); dir != "." {
		os.MkdirAll(dir, 0755)
	}

	logger, err := util.NewLogger(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	// ---- Ledger (Pebble-backed wallets, positions, orders, trades) ----
	led, err := ledger.New(cfg.Storage.DBPath, sugar)
	if err != nil {
		sugar.Fatalw("ledger_open_failed", "path", cfg.Storage.DBPath, "err", err)
	}
	defer led.Close()

	// ---- Listings ----
	registry := market.NewRegistry()
	n, err := market.LoadSeed(cfg.Storage.ListingsFile, registry)
	if err != nil {
		sugar.Fatalw("listings_load_failed", "file", cfg.Storage.ListingsFile, "err", err)
	}
	sugar.Infow("listings_loaded", "file", cfg.Storage.ListingsFile, "count", n)

	// ---- Matching engine ----
	eng := engine.New(registry, led, util.RealClock{}, sugar)
	if err := eng.Restore(); err != nil {
		sugar.Fatalw("restore_failed", "err", err)
	}

	// ---- Metrics ----
	metrics.Serve(cfg.Server.MetricsAddr)
	sugar.Infow("metrics_listening", "addr", cfg.Server.MetricsAddr)

	// ---- API server ----
	apiServer := api.NewServer(eng, cfg.Server.CORSOrigins, sugar)

	// Push live updates to WebSocket subscribers.
	eng.OnTrade(apiServer.BroadcastTrade)
	eng.OnBookChange(apiServer.BroadcastBook)

	go func() {
		if err := apiServer.Start(cfg.Server.HTTPAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("marketd_started", "http", cfg.Server.HTTPAddr, "listings", registry.Count())

	<-ctx.Done()
	sugar.Info("shutting down")
}
