package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/clearclaim/billaudit/constants"
	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/dedupe"
	"github.com/clearclaim/billaudit/internal/export"
	"github.com/clearclaim/billaudit/internal/fraud"
	"github.com/clearclaim/billaudit/internal/normalize"
	"github.com/clearclaim/billaudit/internal/pipeline"
	"github.com/clearclaim/billaudit/internal/server"
	"github.com/clearclaim/billaudit/internal/store"
	"github.com/clearclaim/billaudit/internal/validate"
)

func main() {
	fs := ff.NewFlagSet("billauditd")
	var (
		envFile     = fs.StringLong("env-file", "", "optional .env file to load before reading config")
		addr        = fs.StringLong("addr", "", "HTTP listen address (overrides HTTP_ADDR)")
		backend     = fs.StringLong("store", "", "duplicate store backend: memory|bolt|redis|postgres (overrides STORE_BACKEND)")
		showVersion = fs.BoolLong("version", "print version and exit")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("BILLAUDIT")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *showVersion {
		fmt.Println(constants.AppVersion)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			logger.Error("main.envfile.failed", "path", *envFile, "err", err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := common.LoadConfig()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *backend != "" {
		cfg.Store.Backend = *backend
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("main.config.invalid", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	billStore, err := store.NewFromConfig(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("main.store.failed", "backend", cfg.Store.Backend, "err", err)
		os.Exit(1)
	}
	defer billStore.Close()
	logger.Info("main.store.ready", "backend", cfg.Store.Backend)

	engine, err := fraud.NewEngine(cfg.Fraud, logger)
	if err != nil {
		logger.Error("main.fraud.invalid", "err", err)
		os.Exit(1)
	}

	proc := pipeline.NewProcessor(
		logger,
		normalize.New(cfg.Normalize, logger),
		validate.New(cfg.Arithmetic),
		dedupe.NewDetector(billStore, cfg.Dedupe, cfg.Store.Timeout, logger),
		engine,
	)

	srv, err := server.New(proc, export.NewService(logger), cfg, logger)
	if err != nil {
		logger.Error("main.server.failed", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("main.http.listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("main.http.failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("main.shutdown.begin")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("main.shutdown.failed", "err", err)
	}
	logger.Info("main.shutdown.done")
}
