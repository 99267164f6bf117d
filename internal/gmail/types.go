// internal/gmail/types.go
package gmail

import "time"

type MessageID string
type LabelID string

// Gmail models read state, starring, and inbox membership as labels on the
// message, so the well-known system label ids show up in ordinary label ops.
const (
	LabelUnread  LabelID = "UNREAD"
	LabelStarred LabelID = "STARRED"
	LabelInbox   LabelID = "INBOX"
)

// Label is one mailbox label, system or user-created.
type Label struct {
	ID   LabelID
	Name string
}

// RawMessage is a single message as fetched: the full RFC 822 payload plus
// the provider-side metadata ingestion cares about.
type RawMessage struct {
	ID           MessageID
	LabelIDs     []LabelID
	InternalDate time.Time // provider receive time, UTC
	RFC822       []byte
}

// ModifyOps is a label delta applied to one message.
type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
}

// Query selects messages server-side. Raw is a Gmail query string, already
// formed (e.g. `from:foo is:unread`); Labels restricts to messages carrying
// every listed label. Both may be set.
type Query struct {
	Raw    string
	Labels []LabelID
}

// ListPage is one page of message ids from a List call.
type ListPage struct {
	IDs           []MessageID
	NextPageToken string
}
