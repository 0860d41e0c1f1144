package utils

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"flipzone/models"
)

const (
	MailProviderPostmark = "postmark"
	MailProviderSendgrid = "sendgrid"
	MailProviderNone     = "none"
)

// Email is a single outgoing message
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers transactional e-mail
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// NewMailer picks the provider configured for the deployment. An empty provider means
// mail is disabled.
func NewMailer(provider, postmarkToken, sendgridKey, sender string) (Mailer, error) {
	switch strings.ToLower(provider) {
	case "", MailProviderNone:
		return NopMailer{}, nil
	case MailProviderPostmark:
		if postmarkToken == "" {
			return nil, fmt.Errorf("POSTMARK_API_TOKEN is not set")
		}
		return NewPostmarkMailer(postmarkToken, sender), nil
	case MailProviderSendgrid:
		if sendgridKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
		}
		return NewSendgridMailer(sendgridKey, sender), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", provider)
}

// PostmarkMailer handles sending emails using Postmark
type PostmarkMailer struct {
	client *postmark.Client
	from   string
}

func NewPostmarkMailer(apiToken, from string) *PostmarkMailer {
	return &PostmarkMailer{client: postmark.NewClient(apiToken, ""), from: from}
}

func (m *PostmarkMailer) Send(_ context.Context, msg Email) error {
	_, err := m.client.SendEmail(postmark.Email{
		From:     m.from,
		To:       msg.To,
		Subject:  msg.Subject,
		HtmlBody: msg.HTML,
		TextBody: msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendgridMailer sends through the SendGrid v3 mail API
type SendgridMailer struct {
	apiKey string
	from   string
	url    string // overrides the API endpoint, empty means production
}

func NewSendgridMailer(apiKey, from string) *SendgridMailer {
	return &SendgridMailer{apiKey: apiKey, from: from}
}

func (m *SendgridMailer) Send(ctx context.Context, msg Email) error {
	client := sendgrid.NewSendClient(m.apiKey)
	if m.url != "" {
		client.BaseURL = m.url
	}
	message := mail.NewSingleEmail(
		mail.NewEmail("Flipzone", m.from),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to send email: sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// NopMailer drops every message
type NopMailer struct{}

func (NopMailer) Send(context.Context, Email) error { return nil }

// WelcomeEmail greets a newly registered user
func WelcomeEmail(u models.User) Email {
	name := u.Username
	if name == "" {
		name = u.Email
	}
	return Email{
		To:      u.Email,
		Subject: "Welcome to Flipzone",
		HTML: fmt.Sprintf(
			"<strong>Hi %s,</strong><br><br>Your Flipzone account is ready. Happy shopping!",
			html.EscapeString(name),
		),
		Text: fmt.Sprintf("Hi %s,\n\nYour Flipzone account is ready. Happy shopping!", name),
	}
}
