package common

import "github.com/rs/zerolog"

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	Send(to, subject, body string) error
}

// InMemoryEmail provides a test-friendly email sender that records messages.
type InMemoryEmail struct {
	Outbox []Message
}

// Message is a single email captured by InMemoryEmail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Send records the email in memory.
func (m *InMemoryEmail) Send(to, subject, body string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Message{To: to, Subject: subject, Body: body})
	return nil
}

// LogEmailSender writes outgoing mail to the structured log instead of an SMTP relay.
type LogEmailSender struct {
	Logger zerolog.Logger
}

// Send implements EmailSender.
func (s LogEmailSender) Send(to, subject, body string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Int("body_bytes", len(body)).Msg("email_sent")
	s.Logger.Debug().Str("to", to).Msg(body)
	return nil
}
