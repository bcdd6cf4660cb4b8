package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/graph-notifier/internal/util"
)

// Body content types accepted by the mail API.
const (
	BodyTypeText = "Text"
	BodyTypeHTML = "HTML"
)

// MessageBody encapsulates the content of an outbound message together with
// its content-type tag.
type MessageBody struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Message is the transient notification entity. It is constructed immediately
// before a send call, serialized into the request body and discarded after
// the call returns. It has no identity beyond a single use.
type Message struct {
	MessageID string            `json:"message_id"`
	To        []string          `json:"to"`
	CC        []string          `json:"cc,omitempty"`
	BCC       []string          `json:"bcc,omitempty"`
	Subject   string            `json:"subject"`
	Body      MessageBody       `json:"body"`
	CreatedAt time.Time         `json:"created_at"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Limits bounds message validation. Zero values disable the corresponding
// check, except recipients which always require at least one entry.
type Limits struct {
	RecipientsMax int
	SubjectMaxLen int
	BodyMaxBytes  int
}

// Validate checks the message against the supplied limits. Recipient order is
// preserved; addresses are checked but never rewritten.
func (m *Message) Validate(limits Limits) error {
	if m == nil {
		return errors.New("message is nil")
	}

	if _, err := util.NormalizeEmails(m.To, 1, limits.RecipientsMax); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	if _, err := util.NormalizeEmails(m.CC, 0, limits.RecipientsMax); err != nil {
		return fmt.Errorf("cc: %w", err)
	}
	if _, err := util.NormalizeEmails(m.BCC, 0, limits.RecipientsMax); err != nil {
		return fmt.Errorf("bcc: %w", err)
	}

	if err := util.EnsureMaxRunes("subject", m.Subject, limits.SubjectMaxLen); err != nil {
		return err
	}

	switch m.Body.Type {
	case BodyTypeText, BodyTypeHTML:
	case "":
		return errors.New("body type is required")
	default:
		return fmt.Errorf("unsupported body type %q", m.Body.Type)
	}

	if m.Subject == "" && m.Body.Content == "" {
		return errors.New("message requires a subject or body content")
	}

	if limits.BodyMaxBytes > 0 && len(m.Body.Content) > limits.BodyMaxBytes {
		return fmt.Errorf("body exceeds maximum size of %d bytes", limits.BodyMaxBytes)
	}

	return nil
}
