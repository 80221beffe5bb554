package app

import (
	"log"

	"github.com/ltran/capstone-notify/internal/backend"
	"github.com/ltran/capstone-notify/internal/credential"
	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/notify"
	"github.com/ltran/capstone-notify/internal/source"
	"github.com/ltran/capstone-notify/internal/source/email"
	"github.com/ltran/capstone-notify/internal/source/rest"
)

// buildBackendClient constructs the REST client from the configured
// base URL and the tokens in the system keyring. Returns nil when the
// backend is not configured yet.
func buildBackendClient(cfg *model.AppConfig) *backend.Client {
	if cfg.Backend.BaseURL == "" {
		return nil
	}

	accessToken, err := credential.Get(credential.KeyAccessToken)
	if err != nil || accessToken == "" {
		return nil
	}

	// The refresh token is optional; without it an expired access
	// token surfaces as an auth error instead of a silent renewal.
	refreshToken, _ := credential.Get(credential.KeyRefreshToken)

	client := backend.NewClient(cfg.Backend.BaseURL, accessToken, refreshToken)
	client.OnTokensRefreshed(func(access, refresh string) {
		if err := credential.Set(credential.KeyAccessToken, access); err != nil {
			log.Printf("failed to persist refreshed access token: %v", err)
		}
		if refresh != "" {
			if err := credential.Set(credential.KeyRefreshToken, refresh); err != nil {
				log.Printf("failed to persist refreshed refresh token: %v", err)
			}
		}
	})

	return client
}

// buildCollectors assembles the collector set for the aggregator:
// the REST collectors over the backend client, plus the IMAP
// announcement collector when email is enabled.
func buildCollectors(cfg *model.AppConfig, client *backend.Client) []source.Collector {
	collectors := []source.Collector{
		rest.NewFeedbackCollector(client),
		rest.NewDeadlineCollector(client),
		rest.NewEventCollector(client),
		rest.NewInvitationCollector(client),
		rest.NewCommitCollector(client),
	}

	if cfg.Email.Enabled && cfg.Email.Host != "" {
		password, err := credential.Get(credential.KeyIMAPPassword)
		if err != nil || password == "" {
			log.Printf("email announcements enabled but no mailbox password in keyring; skipping")
			return collectors
		}
		collectors = append(collectors, email.NewAdapter(
			cfg.Email.Host,
			cfg.Email.Port,
			cfg.Email.Username,
			password,
			cfg.Email.TLS,
		))
	}

	return collectors
}

// buildAggregator wires the backend client and collectors into an
// aggregator. Returns nil when the backend is not configured.
func buildAggregator(cfg *model.AppConfig, reads notify.ReadStates) (*notify.Aggregator, *backend.Client) {
	client := buildBackendClient(cfg)
	if client == nil {
		return nil, nil
	}

	collectors := buildCollectors(cfg, client)
	return notify.New(rest.NewDirectory(client), reads, collectors...), client
}
