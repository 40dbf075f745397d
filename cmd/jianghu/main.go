// Command jianghu plays a session in the terminal.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"jianghu-lite/content"
	"jianghu-lite/engine"
	"jianghu-lite/internal/config"
	"jianghu-lite/internal/observability"
	"jianghu-lite/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}

	// the alt screen owns stdout, so logs go to a file or nowhere
	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			config.Exitf("open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	tp, err := observability.InitTracing(context.Background(), cfg.Tracing("jianghu-cli"))
	if err != nil {
		config.Exitf("tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(ctx)
	}()

	// the terminal keeps its saves on disk unless told otherwise
	if os.Getenv("JIANGHU_STORE") == "" {
		cfg.Store = config.StoreSQLite
	}
	st, mode, err := store.NewFromConfig(cfg)
	if err != nil {
		config.Exitf("open %s store: %v", mode, err)
	}
	defer st.Close()

	catalog, err := content.Load()
	if err != nil {
		config.Exitf("content: %v", err)
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.Seed = cfg.Seed
	engineCfg.Autosave = cfg.Autosave
	engineCfg.StoreTimeout = cfg.StoreTimeout
	engineCfg.Logger = logger
	engineCfg.Tracer = tp.Tracer("jianghu-lite/engine")

	e, err := engine.New(catalog, st, engineCfg)
	if err != nil {
		config.Exitf("engine: %v", err)
	}
	logger.Info("terminal session ready", "store", mode, "session", e.SessionID())

	p := tea.NewProgram(newModel(e, catalog.Questionnaire()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		config.Exitf("Error: %v", err)
	}
}
