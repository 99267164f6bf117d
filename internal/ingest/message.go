package ingest

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"

	"github.com/joshsymonds/mailsift/internal/gmail"
	"github.com/joshsymonds/mailsift/internal/store"
)

// buildMessage converts one fetched message into its snapshot record.
// Received prefers the Date header, then the provider's internal date, then
// the current time; it is always stored in UTC.
func buildMessage(raw gmail.RawMessage) (store.Message, error) {
	entity, err := message.Read(bytes.NewReader(raw.RFC822))
	if err != nil && !message.IsUnknownCharset(err) {
		return store.Message{}, fmt.Errorf("parse message %s: %w", raw.ID, err)
	}

	mh := mail.Header{Header: entity.Header}
	subject, _ := mh.Subject()
	received, _ := mh.Date()
	if received.IsZero() {
		received = raw.InternalDate
	}
	if received.IsZero() {
		received = time.Now()
	}

	body, err := extractBody(entity)
	if err != nil {
		return store.Message{}, fmt.Errorf("extract body of %s: %w", raw.ID, err)
	}

	return store.Message{
		ID:       string(raw.ID),
		Sender:   headerText(mh, "From"),
		To:       headerText(mh, "To"),
		Subject:  subject,
		Body:     body,
		Received: received.UTC(),
		Read:     !slices.Contains(raw.LabelIDs, gmail.LabelUnread),
	}, nil
}

// headerText returns the decoded header value, falling back to the raw value
// when the encoded words are malformed.
func headerText(h mail.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return v
	}
	return h.Get(key)
}

// extractBody walks the MIME tree and keeps the first text/plain part. When
// a message carries only HTML, the text is derived from it. Attachments and
// other media types are ignored.
func extractBody(entity *message.Entity) (string, error) {
	var plain, html *string

	var walk func(*message.Entity) error
	walk = func(e *message.Entity) error {
		mediaType, _, _ := e.Header.ContentType()
		if mediaType == "" {
			mediaType = "text/plain"
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			mr := e.MultipartReader()
			if mr == nil {
				return nil
			}
			for {
				part, err := mr.NextPart()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return fmt.Errorf("read multipart: %w", err)
				}
				if err := walk(part); err != nil {
					return err
				}
			}
		}

		content, err := io.ReadAll(e.Body)
		if err != nil {
			return fmt.Errorf("read part body: %w", err)
		}
		switch mediaType {
		case "text/plain":
			if plain == nil {
				s := string(content)
				plain = &s
			}
		case "text/html":
			if html == nil {
				s := string(content)
				html = &s
			}
		}
		return nil
	}

	if err := walk(entity); err != nil {
		return "", err
	}
	if plain == nil && html != nil {
		converted := html2text.HTML2Text(*html)
		plain = &converted
	}
	if plain == nil {
		return "", nil
	}
	return *plain, nil
}
