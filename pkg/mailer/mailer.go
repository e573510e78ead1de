// Package mailer delivers transactional email.
package mailer

import (
	"context"
	"errors"
	"net/mail"
	"strings"
)

// ErrNoRecipients is returned for messages without a To address.
var ErrNoRecipients = errors.New("message has no recipients")

// Message is a transactional email.
type Message struct {
	To      []mail.Address
	Subject string
	Text    string
	HTML    string
}

// Validate checks the message has someone to go to and something to say.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	for _, to := range m.To {
		if strings.TrimSpace(to.Address) == "" {
			return ErrNoRecipients
		}
	}
	if strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.HTML) == "" {
		return errors.New("message has no content")
	}
	return nil
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
