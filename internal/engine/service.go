// Package engine runs rules against the stored snapshot and applies the
// actions of matching rules to the mailbox.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshsymonds/mailsift/internal/gmail"
	"github.com/joshsymonds/mailsift/internal/rate"
	"github.com/joshsymonds/mailsift/internal/rules"
	"github.com/joshsymonds/mailsift/internal/store"
)

// Options controls a single rule run.
type Options struct {
	Rules []rules.Rule
	// Limit restricts the run to the most recent N messages; <= 0 runs
	// against everything.
	Limit int
	// DryRun evaluates and logs matches without touching the mailbox.
	DryRun bool
}

// Service executes rule runs. Actions are applied one message, one rule,
// one action at a time; the limiter paces the mailbox calls.
type Service struct {
	Client  gmail.Client
	Store   store.Store
	Limiter rate.Limiter
	Logger  *slog.Logger
}

// NewService constructs a Service with sane defaults.
func NewService(
	client gmail.Client,
	st store.Store,
	limiter rate.Limiter,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{Client: client, Store: st, Limiter: limiter, Logger: logger}
}

// Run evaluates every rule against every candidate message, newest first,
// and applies the actions of each matching rule in document order. Matches
// accumulate: a message hit by several rules receives all their actions.
// Only a failed snapshot query or a canceled context aborts the run; every
// per-condition and per-action failure is logged and counted instead.
func (s *Service) Run(ctx context.Context, opts Options) (Report, error) {
	logger := s.Logger
	logger.InfoContext(ctx, "running rules",
		slog.Int("rules", len(opts.Rules)),
		slog.Int("limit", opts.Limit),
		slog.Bool("dry_run", opts.DryRun),
	)

	msgs, err := s.Store.Recent(ctx, opts.Limit)
	if err != nil {
		return Report{}, fmt.Errorf("load messages: %w", err)
	}

	var rep Report
	for i, m := range msgs {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rep, fmt.Errorf("run canceled: %w", ctxErr)
		}
		rep.Processed++

		for _, rule := range opts.Rules {
			matched, evalErr := rule.Conditions.Match(m)
			if evalErr != nil {
				logger.WarnContext(ctx, "conditions incomplete",
					slog.String("rule", rule.Name),
					slog.String("message_id", m.ID),
					slog.Any("error", evalErr),
				)
			}
			if !matched {
				continue
			}
			rep.Matched++
			logger.InfoContext(ctx, "rule matched",
				slog.String("rule", rule.Name),
				slog.String("message_id", m.ID),
				slog.String("subject", m.Subject),
			)

			for _, act := range rule.Actions {
				if opts.DryRun {
					rep.Skipped++
					continue
				}
				out := s.apply(ctx, gmail.MessageID(m.ID), act)
				rep.record(rule.Name, out)
				if out.Err != nil {
					logger.ErrorContext(ctx, "action failed",
						slog.String("rule", rule.Name),
						slog.String("message_id", m.ID),
						slog.String("action", out.Action.String()),
						slog.Any("error", out.Err),
					)
				}
			}
		}

		if (i+1)%10 == 0 {
			logger.InfoContext(ctx, "progress",
				slog.Int("processed", i+1),
				slog.Int("total", len(msgs)),
			)
		}
	}

	logger.InfoContext(ctx, "run complete",
		slog.Int("processed", rep.Processed),
		slog.Int("matched", rep.Matched),
		slog.Int("applied", rep.Applied),
		slog.Int("failed", rep.Failed),
		slog.Int("skipped", rep.Skipped),
	)
	return rep, nil
}
