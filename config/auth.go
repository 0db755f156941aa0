package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects the credential store implementation.
type AuthMode string

const (
	// AuthModeLocal stores identities in Postgres with bcrypt hashes.
	AuthModeLocal AuthMode = "local"
	// AuthModeOIDC delegates credentials to an OpenID Connect provider.
	AuthModeOIDC AuthMode = "oidc"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "local", "oidc":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: local, oidc)", v)
	}
}

// LocalAuthConfig configures the local credential store.
type LocalAuthConfig struct {
	// TokenSecret signs access and reset tokens. Required in local mode.
	TokenSecret string        `env:"TOKEN_SECRET"`
	Issuer      string        `env:"ISSUER"     envDefault:"edumanage"`
	AccessTTL   time.Duration `env:"ACCESS_TTL" envDefault:"1h"`
	ResetTTL    time.Duration `env:"RESET_TTL"  envDefault:"30m"`
}

// OIDCConfig configures the OIDC credential store.
type OIDCConfig struct {
	DiscoveryURL string `env:"DISCOVERY_URL"`
	ClientID     string `env:"CLIENT_ID"     envDefault:"edumanage"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`

	// JMESPath expressions locating identity fields in the provider's claims.
	// Empty values fall back to the standard claim names.
	IDClaim       string `env:"ID_CLAIM"`
	EmailClaim    string `env:"EMAIL_CLAIM"`
	NameClaim     string `env:"NAME_CLAIM"`
	DisabledClaim string `env:"DISABLED_CLAIM"`
}

// Scopes splits the scope string into its parts.
func (c OIDCConfig) Scopes() []string {
	return strings.Fields(c.Scope)
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which credential store to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"local"`

	// Local configuration (used when Mode=local).
	Local LocalAuthConfig `envPrefix:"LOCAL_AUTH_"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`
}

// Validate checks that the selected mode has its required settings.
func (c AuthConfig) Validate() error {
	switch c.Mode {
	case AuthModeLocal:
		if c.Local.TokenSecret == "" {
			return fmt.Errorf("LOCAL_AUTH_TOKEN_SECRET is required in local auth mode")
		}
	case AuthModeOIDC:
		if c.OIDC.DiscoveryURL == "" {
			return fmt.Errorf("OIDC_DISCOVERY_URL is required in oidc auth mode")
		}
	}
	return nil
}
