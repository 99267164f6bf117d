package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/mailsift/internal/gmail"
	"github.com/joshsymonds/mailsift/internal/rules"
	"github.com/joshsymonds/mailsift/internal/store"
)

type modifyCall struct {
	id  gmail.MessageID
	ops gmail.ModifyOps
}

// fakeClient records mailbox mutations and serves scripted labels.
type fakeClient struct {
	labels    []gmail.Label
	modifies  []modifyCall
	trashes   []gmail.MessageID
	created   []string
	nextLabel int

	modifyErr    error
	trashErr     error
	listLabelErr error
	createErr    error
}

func (f *fakeClient) List(
	ctx context.Context,
	q gmail.Query,
	pageToken string,
	pageSize int,
) (gmail.ListPage, error) {
	_ = ctx
	_ = q
	_ = pageToken
	_ = pageSize
	return gmail.ListPage{}, nil
}

func (f *fakeClient) GetRaw(ctx context.Context, id gmail.MessageID) (gmail.RawMessage, error) {
	_ = ctx
	return gmail.RawMessage{ID: id}, nil
}

func (f *fakeClient) Modify(ctx context.Context, id gmail.MessageID, ops gmail.ModifyOps) error {
	_ = ctx
	if f.modifyErr != nil {
		return f.modifyErr
	}
	f.modifies = append(f.modifies, modifyCall{id: id, ops: ops})
	return nil
}

func (f *fakeClient) Trash(ctx context.Context, id gmail.MessageID) error {
	_ = ctx
	if f.trashErr != nil {
		return f.trashErr
	}
	f.trashes = append(f.trashes, id)
	return nil
}

func (f *fakeClient) ListLabels(ctx context.Context) ([]gmail.Label, error) {
	_ = ctx
	if f.listLabelErr != nil {
		return nil, f.listLabelErr
	}
	return f.labels, nil
}

func (f *fakeClient) CreateLabel(ctx context.Context, name string) (gmail.Label, error) {
	_ = ctx
	if f.createErr != nil {
		return gmail.Label{}, f.createErr
	}
	f.nextLabel++
	l := gmail.Label{ID: gmail.LabelID(fmt.Sprintf("Label_%d", f.nextLabel)), Name: name}
	f.labels = append(f.labels, l)
	f.created = append(f.created, name)
	return l, nil
}

type readCall struct {
	id   string
	read bool
}

// fakeStore serves messages newest-first, as the real store does.
type fakeStore struct {
	msgs      []store.Message
	readCalls []readCall

	recentErr  error
	setReadErr error
}

func (f *fakeStore) Upsert(ctx context.Context, m store.Message) error {
	_ = ctx
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeStore) Recent(ctx context.Context, limit int) ([]store.Message, error) {
	_ = ctx
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	if limit > 0 && limit < len(f.msgs) {
		return f.msgs[:limit], nil
	}
	return f.msgs, nil
}

func (f *fakeStore) SetRead(ctx context.Context, id string, read bool) error {
	_ = ctx
	if f.setReadErr != nil {
		return f.setReadErr
	}
	f.readCalls = append(f.readCalls, readCall{id: id, read: read})
	for i := range f.msgs {
		if f.msgs[i].ID == id {
			f.msgs[i].Read = read
		}
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func matchEverything() rules.ConditionGroup {
	// an empty All group is vacuously true
	return rules.ConditionGroup{Combinator: rules.CombinatorAll}
}

func twoMessages() []store.Message {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []store.Message{
		{ID: "newest", Subject: "second invoice", Received: base.Add(time.Hour)},
		{ID: "older", Subject: "first invoice", Received: base},
	}
}

func TestRunAppliesMatchedRuleNewestFirst(t *testing.T) {
	client := &fakeClient{}
	st := &fakeStore{msgs: twoMessages()}
	svc := NewService(client, st, nil, slogDiscard())

	rep, err := svc.Run(context.Background(), Options{
		Rules: []rules.Rule{{
			Name:       "star everything",
			Conditions: matchEverything(),
			Actions:    []rules.Action{{Type: rules.ActionStar}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Processed)
	assert.Equal(t, 2, rep.Matched)
	assert.Equal(t, 2, rep.Applied)
	assert.Zero(t, rep.Failed)

	require.Len(t, client.modifies, 2)
	assert.Equal(t, gmail.MessageID("newest"), client.modifies[0].id)
	assert.Equal(t, gmail.MessageID("older"), client.modifies[1].id)
	assert.Equal(t, []gmail.LabelID{gmail.LabelStarred}, client.modifies[0].ops.AddLabels)
}

func TestRunAccumulatesActionsAcrossRules(t *testing.T) {
	client := &fakeClient{}
	st := &fakeStore{msgs: twoMessages()[:1]}
	svc := NewService(client, st, nil, slogDiscard())

	rep, err := svc.Run(context.Background(), Options{
		Rules: []rules.Rule{
			{Name: "star", Conditions: matchEverything(), Actions: []rules.Action{{Type: rules.ActionStar}}},
			{Name: "archive", Conditions: matchEverything(), Actions: []rules.Action{{Type: rules.ActionArchive}}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Matched)
	assert.Equal(t, 2, rep.Applied)
	require.Len(t, client.modifies, 2)
	// both rules fire, in document order
	assert.Equal(t, []gmail.LabelID{gmail.LabelStarred}, client.modifies[0].ops.AddLabels)
	assert.Equal(t, []gmail.LabelID{gmail.LabelInbox}, client.modifies[1].ops.RemoveLabels)
}

func TestRunContinuesPastActionFailure(t *testing.T) {
	client := &fakeClient{modifyErr: errors.New("backend unavailable")}
	st := &fakeStore{msgs: twoMessages()}
	svc := NewService(client, st, nil, slogDiscard())

	rep, err := svc.Run(context.Background(), Options{
		Rules: []rules.Rule{{
			Name:       "star then trash",
			Conditions: matchEverything(),
			Actions: []rules.Action{
				{Type: rules.ActionStar},
				{Type: rules.ActionTrash},
			},
		}},
	})
	require.NoError(t, err)

	// star fails on both messages, trash still runs on both
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 2, rep.Applied)
	assert.Len(t, client.trashes, 2)
	require.Len(t, rep.Failures, 2)
	assert.Equal(t, "star then trash", rep.Failures[0].Rule)
	assert.Equal(t, "add_star", rep.Failures[0].Action)
	assert.Contains(t, rep.Failures[0].Error, "backend unavailable")
}

func TestRunConditionErrorsDoNotAbort(t *testing.T) {
	client := &fakeClient{}
	st := &fakeStore{msgs: twoMessages()[:1]}
	svc := NewService(client, st, nil, slogDiscard())

	broken := rules.Rule{
		Name: "broken",
		Conditions: rules.ConditionGroup{
			Combinator: rules.CombinatorAll,
			Conditions: []rules.Condition{
				{Field: rules.FieldUnknown, Predicate: rules.PredicateContains, Value: "x"},
			},
		},
		Actions: []rules.Action{{Type: rules.ActionTrash}},
	}
	working := rules.Rule{
		Name:       "working",
		Conditions: matchEverything(),
		Actions:    []rules.Action{{Type: rules.ActionStar}},
	}

	rep, err := svc.Run(context.Background(), Options{Rules: []rules.Rule{broken, working}})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Matched)
	assert.Equal(t, 1, rep.Applied)
	assert.Empty(t, client.trashes)
	require.Len(t, client.modifies, 1)
}

func TestRunHonorsLimit(t *testing.T) {
	client := &fakeClient{}
	st := &fakeStore{msgs: twoMessages()}
	svc := NewService(client, st, nil, slogDiscard())

	rep, err := svc.Run(context.Background(), Options{
		Limit: 1,
		Rules: []rules.Rule{{
			Name:       "star",
			Conditions: matchEverything(),
			Actions:    []rules.Action{{Type: rules.ActionStar}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Processed)
	require.Len(t, client.modifies, 1)
	assert.Equal(t, gmail.MessageID("newest"), client.modifies[0].id)
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	client := &fakeClient{}
	st := &fakeStore{msgs: twoMessages()}
	svc := NewService(client, st, nil, slogDiscard())

	rep, err := svc.Run(context.Background(), Options{
		DryRun: true,
		Rules: []rules.Rule{{
			Name:       "trash everything",
			Conditions: matchEverything(),
			Actions:    []rules.Action{{Type: rules.ActionTrash}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Matched)
	assert.Equal(t, 2, rep.Skipped)
	assert.Zero(t, rep.Applied)
	assert.Empty(t, client.modifies)
	assert.Empty(t, client.trashes)
	assert.Empty(t, st.readCalls)
}

func TestRunSnapshotQueryFailureIsFatal(t *testing.T) {
	st := &fakeStore{recentErr: errors.New("disk gone")}
	svc := NewService(&fakeClient{}, st, nil, slogDiscard())

	_, err := svc.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load messages")
}

func TestRunCanceledContext(t *testing.T) {
	client := &fakeClient{}
	st := &fakeStore{msgs: twoMessages()}
	svc := NewService(client, st, nil, slogDiscard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, Options{Rules: []rules.Rule{{
		Name:       "star",
		Conditions: matchEverything(),
		Actions:    []rules.Action{{Type: rules.ActionStar}},
	}}})
	require.Error(t, err)
	assert.Empty(t, client.modifies)
}

func TestWriteJSONReport(t *testing.T) {
	t.Chdir(t.TempDir())

	rep := Report{
		Processed: 3,
		Matched:   1,
		Applied:   1,
		Failures:  nil,
	}
	require.NoError(t, WriteJSON(rep, "report.json"))

	raw, err := os.ReadFile(filepath.Join(".", "report.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"processed": 3`)

	assert.Error(t, WriteJSON(rep, ""))
	assert.Error(t, WriteJSON(rep, "/tmp/escape.json"))
	assert.Error(t, WriteJSON(rep, "../escape.json"))
}
