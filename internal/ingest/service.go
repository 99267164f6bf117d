// Package ingest pulls mailbox messages into the local snapshot.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshsymonds/mailsift/internal/gmail"
	"github.com/joshsymonds/mailsift/internal/rate"
	"github.com/joshsymonds/mailsift/internal/store"
)

// Options controls one fetch run.
type Options struct {
	// Max bounds how many messages are pulled; <= 0 fetches the whole
	// inbox.
	Max      int
	PageSize int
}

// Service lists inbox messages, fetches each in full, and upserts the
// parsed records into the snapshot.
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

// Run fetches inbox messages and returns how many were stored. A message
// that cannot be fetched, parsed, or stored is logged and skipped; only a
// listing failure or a canceled context aborts the run.
func (s *Service) Run(ctx context.Context, opts Options) (int, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}

	logger := s.Logger
	logger.InfoContext(ctx, "fetching inbox",
		slog.Int("max", opts.Max),
		slog.Int("page_size", pageSize),
	)

	ids, err := s.listInbox(ctx, opts.Max, pageSize)
	if err != nil {
		return 0, err
	}
	logger.InfoContext(ctx, "listed inbox", slog.Int("count", len(ids)))

	stored := 0
	for i, id := range ids {
		if err := s.wait(ctx, "rate limit fetch"); err != nil {
			return stored, err
		}
		raw, err := s.Client.GetRaw(ctx, id)
		if err != nil {
			logger.WarnContext(ctx, "fetch failed, skipping",
				slog.String("message_id", string(id)),
				slog.Any("error", err),
			)
			continue
		}
		m, err := buildMessage(raw)
		if err != nil {
			logger.WarnContext(ctx, "parse failed, skipping",
				slog.String("message_id", string(id)),
				slog.Any("error", err),
			)
			continue
		}
		if err := s.Store.Upsert(ctx, m); err != nil {
			logger.WarnContext(ctx, "store failed, skipping",
				slog.String("message_id", string(id)),
				slog.Any("error", err),
			)
			continue
		}
		stored++

		if (i+1)%10 == 0 {
			logger.InfoContext(ctx, "progress",
				slog.Int("fetched", i+1),
				slog.Int("total", len(ids)),
			)
		}
	}

	logger.InfoContext(ctx, "fetch complete",
		slog.Int("stored", stored),
		slog.Int("listed", len(ids)),
	)
	return stored, nil
}

func (s *Service) listInbox(ctx context.Context, max, pageSize int) ([]gmail.MessageID, error) {
	query := gmail.Query{Labels: []gmail.LabelID{gmail.LabelInbox}}
	var (
		ids   []gmail.MessageID
		token string
	)
	for {
		size := pageSize
		if max > 0 && max-len(ids) < size {
			size = max - len(ids)
		}
		if err := s.wait(ctx, "rate limit list"); err != nil {
			return nil, err
		}
		page, err := s.Client.List(ctx, query, token, size)
		if err != nil {
			return nil, fmt.Errorf("list inbox: %w", err)
		}
		ids = append(ids, page.IDs...)
		if max > 0 && len(ids) >= max {
			return ids[:max], nil
		}
		if page.NextPageToken == "" {
			return ids, nil
		}
		token = page.NextPageToken
	}
}

func (s *Service) wait(ctx context.Context, operation string) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}
