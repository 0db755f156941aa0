package config

import (
	"fmt"
	"strings"
)

// EmailMode selects the password-reset mailer implementation.
type EmailMode string

const (
	// EmailModeSendgrid delivers mail through the SendGrid API.
	EmailModeSendgrid EmailMode = "sendgrid"
	// EmailModeConsole logs mail to stdout (development only).
	EmailModeConsole EmailMode = "console"
)

// UnmarshalText implements encoding.TextUnmarshaler for EmailMode.
func (m *EmailMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "sendgrid", "console":
		*m = EmailMode(v)
		return nil
	default:
		return fmt.Errorf("invalid EmailMode: %q (valid options: sendgrid, console)", v)
	}
}

// EmailConfig contains password-reset mailer configuration.
type EmailConfig struct {
	Mode EmailMode `env:"MODE" envDefault:"console"`

	// Sendgrid settings (used when Mode=sendgrid).
	SendgridAPIKey string `env:"SENDGRID_API_KEY"`
	FromName       string `env:"FROM_NAME"  envDefault:"EduManage"`
	FromEmail      string `env:"FROM_EMAIL" envDefault:"no-reply@edumanage.app"`

	// ResetBaseURL is the page the reset link points at; the token is added
	// as a query parameter. Defaults to BaseURL + /reset-password at wiring
	// time when empty.
	ResetBaseURL string `env:"RESET_BASE_URL"`
}

// Validate checks that the selected mode has its required settings.
func (c EmailConfig) Validate() error {
	if c.Mode == EmailModeSendgrid && c.SendgridAPIKey == "" {
		return fmt.Errorf("EMAIL_SENDGRID_API_KEY is required in sendgrid email mode")
	}
	return nil
}
