package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshsymonds/mailsift/internal/gmail"
	"github.com/joshsymonds/mailsift/internal/rules"
)

// Outcome is the result of applying one action to one message.
type Outcome struct {
	MessageID gmail.MessageID
	Action    rules.ActionType
	Err       error
}

// apply executes a single action. Failures land in the returned Outcome and
// never abort the run.
func (s *Service) apply(ctx context.Context, id gmail.MessageID, act rules.Action) Outcome {
	return Outcome{MessageID: id, Action: act.Type, Err: s.perform(ctx, id, act)}
}

func (s *Service) perform(ctx context.Context, id gmail.MessageID, act rules.Action) error {
	switch act.Type {
	case rules.ActionMarkRead:
		if err := s.modify(ctx, id, gmail.ModifyOps{RemoveLabels: []gmail.LabelID{gmail.LabelUnread}}); err != nil {
			return err
		}
		return s.mirrorRead(ctx, id, true)
	case rules.ActionMarkUnread:
		if err := s.modify(ctx, id, gmail.ModifyOps{AddLabels: []gmail.LabelID{gmail.LabelUnread}}); err != nil {
			return err
		}
		return s.mirrorRead(ctx, id, false)
	case rules.ActionStar:
		return s.modify(ctx, id, gmail.ModifyOps{AddLabels: []gmail.LabelID{gmail.LabelStarred}})
	case rules.ActionUnstar:
		return s.modify(ctx, id, gmail.ModifyOps{RemoveLabels: []gmail.LabelID{gmail.LabelStarred}})
	case rules.ActionMove:
		return s.move(ctx, id, act.Params.Label)
	case rules.ActionTrash:
		if err := s.wait(ctx, "rate limit trash"); err != nil {
			return err
		}
		if err := s.Client.Trash(ctx, id); err != nil {
			return fmt.Errorf("trash %s: %w", id, err)
		}
		return nil
	case rules.ActionArchive:
		return s.modify(ctx, id, gmail.ModifyOps{RemoveLabels: []gmail.LabelID{gmail.LabelInbox}})
	default:
		return fmt.Errorf("unsupported action %q", act.Type)
	}
}

func (s *Service) modify(ctx context.Context, id gmail.MessageID, ops gmail.ModifyOps) error {
	if err := s.wait(ctx, "rate limit modify"); err != nil {
		return err
	}
	if err := s.Client.Modify(ctx, id, ops); err != nil {
		return fmt.Errorf("modify %s: %w", id, err)
	}
	return nil
}

// mirrorRead updates the snapshot's read flag after the mailbox accepted the
// change. The mailbox side is not rolled back when the local update fails.
func (s *Service) mirrorRead(ctx context.Context, id gmail.MessageID, read bool) error {
	if err := s.Store.SetRead(ctx, string(id), read); err != nil {
		return fmt.Errorf("mirror read flag for %s: %w", id, err)
	}
	return nil
}

// move attaches the named label, creating it first when no existing label
// matches case-insensitively. Lookup then create is not transactional, so a
// concurrent writer can still race it into a duplicate label.
func (s *Service) move(ctx context.Context, id gmail.MessageID, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("move_message needs a label name")
	}
	lid, err := s.ensureLabel(ctx, name)
	if err != nil {
		return err
	}
	return s.modify(ctx, id, gmail.ModifyOps{AddLabels: []gmail.LabelID{lid}})
}

func (s *Service) ensureLabel(ctx context.Context, name string) (gmail.LabelID, error) {
	if err := s.wait(ctx, "rate limit list labels"); err != nil {
		return "", err
	}
	labels, err := s.Client.ListLabels(ctx)
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, l := range labels {
		if strings.EqualFold(l.Name, name) {
			return l.ID, nil
		}
	}

	if err := s.wait(ctx, "rate limit create label"); err != nil {
		return "", err
	}
	created, err := s.Client.CreateLabel(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	s.Logger.InfoContext(ctx, "created label",
		slog.String("name", name),
		slog.String("id", string(created.ID)),
	)
	return created.ID, nil
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
