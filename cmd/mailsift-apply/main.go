package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/mailsift/internal/engine"
	"github.com/joshsymonds/mailsift/internal/rate"
	"github.com/joshsymonds/mailsift/internal/rules"
	"github.com/joshsymonds/mailsift/internal/runtime"
	"github.com/joshsymonds/mailsift/internal/store"
)

type applyConfig struct {
	cfgDir    string
	dbPath    string
	rulesPath string
	limit     int
	rps       int
	dryRun    bool
	jsonOut   string
	strict    bool
	verbose   bool
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailsift-apply failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() applyConfig {
	cfgDir := flag.String("config", os.ExpandEnv("$HOME/.config/mailsift"), "auth config directory")
	dbPath := flag.String("db", "mail.db", "snapshot database path")
	rulesPath := flag.String("rules", "rules.json", "rule document path")
	limit := flag.Int("limit", 0, "only evaluate the N most recent messages (0 = all)")
	rps := flag.Int("rps", 10, "max requests per second")
	dryRun := flag.Bool("dry-run", false, "log matches; skip modifications")
	jsonOut := flag.String("report", "", "write JSON run report to path")
	strict := flag.Bool("strict", false, "exit nonzero if any action failed")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	return applyConfig{
		cfgDir:    *cfgDir,
		dbPath:    *dbPath,
		rulesPath: *rulesPath,
		limit:     *limit,
		rps:       *rps,
		dryRun:    *dryRun,
		jsonOut:   *jsonOut,
		strict:    *strict,
		verbose:   *verbose,
	}
}

func run(cfg applyConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.NewLogger(cfg.verbose)

	// A broken rules file downgrades the run to a no-op rather than aborting.
	ruleSet, err := rules.Load(cfg.rulesPath)
	if err != nil {
		logger.Warn("rules unavailable, proceeding with empty rule set",
			"path", cfg.rulesPath, "error", err)
		ruleSet = nil
	}

	client, err := runtime.NewGmailClient(ctx, cfg.cfgDir, runtime.ScopeModify)
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

	svc := engine.NewService(client, db, limiter, logger)
	rep, err := svc.Run(ctx, engine.Options{
		Rules:  ruleSet,
		Limit:  cfg.limit,
		DryRun: cfg.dryRun,
	})
	if err != nil {
		return fmt.Errorf("run rules: %w", err)
	}

	if cfg.jsonOut != "" {
		if writeErr := engine.WriteJSON(rep, cfg.jsonOut); writeErr != nil {
			return fmt.Errorf("write report: %w", writeErr)
		}
	}
	if cfg.strict && rep.Failed > 0 {
		return fmt.Errorf("%d action(s) failed", rep.Failed)
	}
	return nil
}
