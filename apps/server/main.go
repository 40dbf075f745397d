package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"jianghu-lite/apps/server/internal/gateway"
	"jianghu-lite/apps/server/internal/lobby"
	"jianghu-lite/content"
	"jianghu-lite/engine"
	"jianghu-lite/internal/config"
	"jianghu-lite/internal/observability"
	"jianghu-lite/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("[Server] Invalid configuration: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	tp, err := observability.InitTracing(context.Background(), cfg.Tracing("jianghu-server"))
	if err != nil {
		log.Fatalf("[Server] Failed to init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(ctx)
	}()

	st, storeMode, err := store.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("[Server] Failed to open %s store: %v", storeMode, err)
	}
	defer st.Close()

	catalog, err := content.Load()
	if err != nil {
		log.Fatalf("[Server] Failed to load content: %v", err)
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.Seed = cfg.Seed
	engineCfg.Autosave = cfg.Autosave
	engineCfg.StoreTimeout = cfg.StoreTimeout
	engineCfg.Logger = logger
	engineCfg.Tracer = tp.Tracer("jianghu-lite/engine")

	lby := lobby.New(catalog, st, engineCfg)
	gw := gateway.New(lby)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"store":       storeMode,
			"sessions":    lby.Count(),
			"connections": gw.ConnectionCount(),
			"tracing":     tp.IsEnabled(),
		})
	})

	log.Printf("[Server] Store mode: %s", storeMode)
	log.Printf("[Server] Tracing enabled: %v", tp.IsEnabled())
	log.Printf("[Server] Starting WebSocket server on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
}
