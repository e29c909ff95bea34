package notifications

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Email sends each notification to the user's registered address.
type Email struct {
	from string
	send func(m *gomail.Message) error
}

func NewEmail(host string, port int, username, password, from string) *Email {
	d := gomail.NewDialer(host, port, username, password)
	return &Email{from: from, send: func(m *gomail.Message) error { return d.DialAndSend(m) }}
}

func (e *Email) Notify(_ context.Context, n Notification) error {
	if n.Email == "" {
		return nil
	}

	if err := e.send(e.buildMessage(n)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *Email) buildMessage(n Notification) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", n.Email)
	m.SetHeader("Subject", "MarketScout alert")
	m.SetBody("text/plain", fmt.Sprintf("Hi %s,\n\n%s\n\nSent %s UTC\n",
		n.Username, n.Message, n.CreatedAt.UTC().Format("2006-01-02 15:04:05")))
	return m
}
