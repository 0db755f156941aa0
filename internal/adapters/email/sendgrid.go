// Package email provides mailer adapters for transactional messages.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/edumanage/edumanage/internal/ports"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridOptions configures the Sendgrid mailer.
type SendgridOptions struct {
	APIKey    string
	FromName  string
	FromEmail string
	// ResetBaseURL is the page the reset link points at; the token rides in
	// the `token` query parameter.
	ResetBaseURL string
	Logger       *slog.Logger
}

// SendgridMailer delivers mail through the Sendgrid v3 API.
type SendgridMailer struct {
	key          string
	from         *sgmail.Email
	resetBaseURL string
	log          *slog.Logger
}

var _ ports.Mailer = (*SendgridMailer)(nil)

// NewSendgridMailer builds a SendgridMailer from options.
func NewSendgridMailer(opts SendgridOptions) (*SendgridMailer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("email: sendgrid API key is required")
	}
	if opts.FromEmail == "" {
		return nil, fmt.Errorf("email: from address is required")
	}
	if opts.ResetBaseURL == "" {
		return nil, fmt.Errorf("email: reset base URL is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FromName == "" {
		opts.FromName = "EduManage"
	}
	return &SendgridMailer{
		key:          opts.APIKey,
		from:         sgmail.NewEmail(opts.FromName, opts.FromEmail),
		resetBaseURL: opts.ResetBaseURL,
		log:          opts.Logger.With("component", "email"),
	}, nil
}

// SendPasswordReset mails the reset link carrying the token.
func (m *SendgridMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	link, err := resetLink(m.resetBaseURL, token)
	if err != nil {
		return err
	}

	p := sgmail.NewPersonalization()
	p.Subject = "[EduManage] Reset your password"
	p.AddTos(sgmail.NewEmail("", to))

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(
		sgmail.NewContent("text/plain", passwordResetText(link)),
		sgmail.NewContent("text/html", passwordResetHTML(link)),
	)

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(msg)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email: sendgrid returned status %d", res.StatusCode)
	}
	m.log.InfoContext(ctx, "password reset email sent", "status", res.StatusCode)
	return nil
}

func resetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing reset base URL: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func passwordResetText(link string) string {
	return "A password reset was requested for your EduManage account.\n\n" +
		"Open the link below to choose a new password. The link expires shortly.\n\n" +
		link + "\n\n" +
		"If you did not request this, you can ignore this message.\n"
}

func passwordResetHTML(link string) string {
	return "<p>A password reset was requested for your EduManage account.</p>" +
		"<p><a href=\"" + link + "\">Choose a new password</a> (the link expires shortly).</p>" +
		"<p>If you did not request this, you can ignore this message.</p>"
}
