package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/edumanage/edumanage/config"
	"github.com/edumanage/edumanage/internal/adapters/email"
	"github.com/edumanage/edumanage/internal/adapters/localauth"
	"github.com/edumanage/edumanage/internal/adapters/oidcauth"
	"github.com/edumanage/edumanage/internal/data"
	"github.com/edumanage/edumanage/internal/ports"
)

// CredentialConfig contains everything needed to build the credential store
// for the configured auth mode.
type CredentialConfig struct {
	Auth   config.AuthConfig
	Email  config.EmailConfig
	HTTP   config.HTTPConfig
	IsDev  bool
	DB     *sql.DB
	Logger *slog.Logger
}

// BuildMailer selects the password-reset mailer. Development mode always
// gets the console mailer so no real mail leaves a laptop.
//
//nolint:ireturn // the caller only needs the ports.Mailer contract.
func BuildMailer(cfg CredentialConfig) (ports.Mailer, error) {
	if cfg.IsDev || cfg.Email.Mode == config.EmailModeConsole {
		return email.NewConsoleMailer(cfg.Logger), nil
	}

	resetBase := cfg.Email.ResetBaseURL
	if resetBase == "" {
		resetBase = cfg.HTTP.BaseURL + "/reset-password"
	}

	mailer, err := email.NewSendgridMailer(email.SendgridOptions{
		APIKey:       cfg.Email.SendgridAPIKey,
		FromName:     cfg.Email.FromName,
		FromEmail:    cfg.Email.FromEmail,
		ResetBaseURL: resetBase,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build sendgrid mailer: %w", err)
	}
	return mailer, nil
}

// BuildCredentialStore creates the credential store for the configured auth
// mode. Local mode keeps identities in Postgres; oidc mode delegates to an
// external provider.
//
//nolint:ireturn // the caller only needs the ports.CredentialStore contract.
func BuildCredentialStore(ctx context.Context, cfg CredentialConfig) (ports.CredentialStore, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeLocal:
		return buildLocalStore(cfg)
	case config.AuthModeOIDC:
		return buildOIDCStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}

func buildLocalStore(cfg CredentialConfig) (*localauth.Store, error) {
	mailer, err := BuildMailer(cfg)
	if err != nil {
		return nil, err
	}

	store, err := localauth.New(localauth.Options{
		Identities: data.NewIdentityRepo(cfg.DB),
		Mailer:     mailer,
		Secret:     cfg.Auth.Local.TokenSecret,
		Issuer:     cfg.Auth.Local.Issuer,
		AccessTTL:  cfg.Auth.Local.AccessTTL,
		ResetTTL:   cfg.Auth.Local.ResetTTL,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build local credential store: %w", err)
	}
	return store, nil
}

func buildOIDCStore(ctx context.Context, cfg CredentialConfig) (*oidcauth.Store, error) {
	oidcCfg := cfg.Auth.OIDC
	store, err := oidcauth.New(ctx, oidcauth.Options{
		DiscoveryURL: oidcCfg.DiscoveryURL,
		ClientID:     oidcCfg.ClientID,
		ClientSecret: oidcCfg.ClientSecret,
		Scopes:       oidcCfg.Scopes(),
		Claims: oidcauth.ClaimMappings{
			ID:          oidcCfg.IDClaim,
			Email:       oidcCfg.EmailClaim,
			DisplayName: oidcCfg.NameClaim,
			Disabled:    oidcCfg.DisabledClaim,
		},
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build oidc credential store: %w", err)
	}
	return store, nil
}
