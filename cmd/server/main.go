package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/onelane/internal/config"
	"github.com/me/onelane/internal/hub"
	"github.com/me/onelane/internal/logging"
	"github.com/me/onelane/internal/scheduler"
	"github.com/me/onelane/internal/server"
	"github.com/me/onelane/internal/store"
)

func main() {
	defaults := config.DefaultServerConfig()

	configFile := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", defaults.Addr, "Listen address")
	logLevel := flag.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", defaults.LogFormat, "Log format (text, json)")
	dbPath := flag.String("db", defaults.DBPath, "Journal database path (default ~/.onelane/journal.db)")
	journal := flag.Bool("journal", defaults.JournalEnabled, "Record broadcast events in the journal")
	bridgeLength := flag.Float64("bridge-length", defaults.BridgeLengthMeters, "Bridge length in meters, used for crossing estimates")
	defaultPriority := flag.Int("default-priority", defaults.DefaultPriority, "Priority for vehicles registered without one (lower is served first)")
	peerBuffer := flag.Int("peer-buffer", defaults.PeerBuffer, "Frames queued per observer before it is dropped")
	maxFrame := flag.Int("max-frame-bytes", defaults.MaxFrameBytes, "Largest accepted websocket frame")
	maxDecodeErrors := flag.Int("max-decode-errors", defaults.MaxDecodeErrors, "Consecutive bad frames before disconnect (0 never disconnects)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	// Precedence: defaults < config file < environment < flags.
	cfg := defaults
	if *configFile != "" {
		if err := config.LoadFile(&cfg, *configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "db":
			cfg.DBPath = *dbPath
		case "journal":
			cfg.JournalEnabled = *journal
		case "bridge-length":
			cfg.BridgeLengthMeters = *bridgeLength
		case "default-priority":
			cfg.DefaultPriority = *defaultPriority
		case "peer-buffer":
			cfg.PeerBuffer = *peerBuffer
		case "max-frame-bytes":
			cfg.MaxFrameBytes = *maxFrame
		case "max-decode-errors":
			cfg.MaxDecodeErrors = *maxDecodeErrors
		}
	})
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.FromStrings("onelane-server", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.New(logger)
	sched := scheduler.New(scheduler.Config{
		DefaultPriority:    cfg.DefaultPriority,
		BridgeLengthMeters: cfg.BridgeLengthMeters,
	}, h, logger)

	var serverOpts []server.Option
	journalCtx, stopJournal := context.WithCancel(context.Background())
	defer stopJournal()
	journalDone := make(chan struct{})
	if cfg.JournalEnabled {
		path, err := cfg.ResolveDBPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Open store and run migrations.
		st, err := store.NewSQLiteStore(path, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open database: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
			os.Exit(1)
		}
		logger.Info("journal ready", "path", path)

		j := store.NewJournal(st, cfg.PeerBuffer*4, logger)
		h.Join(j)
		go func() {
			j.Run(journalCtx)
			close(journalDone)
		}()
		serverOpts = append(serverOpts, server.WithStore(st))
	} else {
		close(journalDone)
		logger.Info("journal disabled")
	}

	srv := server.New(cfg, sched, h, logger, serverOpts...)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}
	// Shutdown does not wait for hijacked websockets or open SSE streams.
	httpServer.RegisterOnShutdown(srv.CloseSessions)

	// The hub outlives the signal context; it is stopped once no session
	// can issue commands.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	srv.StartHub(hubCtx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr,
			"bridge_length_m", cfg.BridgeLengthMeters,
			"default_priority", cfg.DefaultPriority,
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	srv.CloseSessions()

	// Stop dispatch before the journal so it sees every event the hub delivered.
	if err := h.Stop(); err != nil {
		logger.Error("hub stop error", "error", err)
	}
	stopJournal()
	<-journalDone
	logger.Info("server stopped")
}
