package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/mailsift/internal/ingest"
	"github.com/joshsymonds/mailsift/internal/rate"
	"github.com/joshsymonds/mailsift/internal/runtime"
	"github.com/joshsymonds/mailsift/internal/store"
)

type fetchConfig struct {
	cfgDir   string
	dbPath   string
	max      int
	pageSize int
	rps      int
	verbose  bool
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailsift-fetch failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() fetchConfig {
	cfgDir := flag.String("config", os.ExpandEnv("$HOME/.config/mailsift"), "auth config directory")
	dbPath := flag.String("db", "mail.db", "snapshot database path")
	maxMsgs := flag.Int("max", 0, "max messages to fetch (0 = whole inbox)")
	pageSize := flag.Int("page-size", 100, "Gmail list page size (<=500)")
	rps := flag.Int("rps", 10, "max requests per second")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	return fetchConfig{
		cfgDir:   *cfgDir,
		dbPath:   *dbPath,
		max:      *maxMsgs,
		pageSize: *pageSize,
		rps:      *rps,
		verbose:  *verbose,
	}
}

func run(cfg fetchConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.NewLogger(cfg.verbose)

	client, err := runtime.NewGmailClient(ctx, cfg.cfgDir, runtime.ScopeReadonly)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}

	db, err := store.Open(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("open snapshot db: %w", err)
	}
	defer func() { _ = db.Close() }()

	var limiter rate.Limiter
	if cfg.rps > 0 {
		limiter = rate.NewPacer(cfg.rps)
	}

	svc := ingest.NewService(client, db, limiter, logger)
	stored, err := svc.Run(ctx, ingest.Options{Max: cfg.max, PageSize: cfg.pageSize})
	if err != nil {
		return fmt.Errorf("run fetch: %w", err)
	}
	logger.Info("fetch finished", "stored", stored)
	return nil
}
