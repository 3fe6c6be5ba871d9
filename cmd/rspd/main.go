package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/rspd/internal/config"
	"github.com/me/rspd/internal/logging"
	"github.com/me/rspd/internal/scheduler"
	"github.com/me/rspd/internal/server"
	"github.com/me/rspd/internal/station"
	"github.com/me/rspd/internal/store"
)

func main() {
	cfg := config.DefaultServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Journal database path (default ~/.rspd/rspd.db)")
	flag.StringVar(&cfg.StationFile, "station", cfg.StationFile, "Station YAML file (default: one simulated board)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	journalBuffer := flag.Int("journal-buffer", 1024, "Journal entries buffered before new ones are dropped")

	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	stationCfg := config.DefaultStation()
	if cfg.StationFile != "" {
		var err error
		stationCfg, err = config.LoadStation(cfg.StationFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load station: %v\n", err)
			os.Exit(1)
		}
	}

	// Resolve database path.
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".rspd")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		dbPath = filepath.Join(dir, "rspd.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", dbPath)

	recorder := store.NewRecorder(st, *journalBuffer, logger)
	defer recorder.Close()

	stn, err := station.New(stationCfg, logger, scheduler.WithRoundHook(recorder.RecordRound))
	if err != nil {
		fmt.Fprintf(os.Stderr, "build station: %v\n", err)
		os.Exit(1)
	}
	defer stn.Close()

	srv := server.New(cfg, st, stn.Loop, logger, server.WithSink(recorder))

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start scheduler in background.
	srv.StartScheduler(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop scheduler before HTTP server.
	if err := stn.Loop.Stop(); err != nil {
		logger.Error("scheduler stop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	if err := recorder.Flush(shutdownCtx); err != nil {
		logger.Warn("journal flush incomplete", "error", err)
	}
	if n := recorder.Dropped(); n > 0 {
		logger.Warn("journal entries dropped", "count", n)
	}
	logger.Info("server stopped")
}
