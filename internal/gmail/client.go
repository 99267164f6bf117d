package gmail

import "context"

// Client is the narrow mailbox surface mailsift needs. Everything above the
// runtime adapter depends on this interface, never on the Google SDK types,
// so tests can substitute fakes.
type Client interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
	GetRaw(ctx context.Context, id MessageID) (RawMessage, error)
	Modify(ctx context.Context, id MessageID, ops ModifyOps) error
	Trash(ctx context.Context, id MessageID) error
	ListLabels(ctx context.Context) ([]Label, error)
	CreateLabel(ctx context.Context, name string) (Label, error)
}
