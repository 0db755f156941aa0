package config

import "time"

// SessionsConfig contains session and token-refresh configuration.
type SessionsConfig struct {
	// ContextID names the browser context this process manages. Each
	// deployment context gets its own session keys.
	ContextID string `env:"CONTEXT_ID" envDefault:"default"`

	// BootPath is the location the auth context assumes at startup. The
	// one-time role redirect fires only when this is the root or login page.
	BootPath string `env:"BOOT_PATH" envDefault:"/"`

	// RefreshInterval is how often the active token is re-minted.
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"50m"`

	// MismatchDelay is how long the role-mismatch notice shows before the
	// guard redirects to the user's own subtree.
	MismatchDelay time.Duration `env:"MISMATCH_DELAY" envDefault:"2s"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionsConfig) Sanitize() {
	if s.ContextID == "" {
		s.ContextID = "default"
	}
	if s.RefreshInterval <= 0 {
		s.RefreshInterval = 50 * time.Minute
	}
	if s.MismatchDelay < 0 {
		s.MismatchDelay = 0
	}
}
