package server

import (
	"errors"
	"log/slog"

	"github.com/teemow/meetsched/internal/accounts"
	"github.com/teemow/meetsched/internal/config"
	"github.com/teemow/meetsched/internal/google"
)

// NewAccountManager builds the account manager for cfg. A nil store selects
// the token file named by the configuration. Without an OAuth client the
// manager works with the stored tokens but cannot refresh them.
func NewAccountManager(cfg *config.Config, store accounts.Store, logger *slog.Logger, metrics accounts.RefreshRecorder) (*accounts.Manager, error) {
	if store == nil {
		path, err := cfg.AccountsFile()
		if err != nil {
			return nil, err
		}
		store = accounts.NewFileStore(path)
	}

	opts := accounts.Options{Logger: logger, Metrics: metrics}
	oauthConfig, err := google.NewOAuthConfig(Credentials(cfg), "")
	switch {
	case err == nil:
		opts.Refresher = google.NewRefresher(oauthConfig)
		opts.Identity = google.NewUserInfoLookup(oauthConfig)
	case errors.Is(err, google.ErrMissingCredentials):
		logger.Warn("Google OAuth client not configured, expired tokens cannot be refreshed")
	default:
		return nil, err
	}
	return accounts.NewManager(store, opts), nil
}

// Credentials returns the OAuth client configured in cfg.
func Credentials(cfg *config.Config) google.Credentials {
	return google.Credentials{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
	}
}
