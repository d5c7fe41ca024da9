package setup

import (
	"net/url"

	"github.com/robalyx/relay/internal/discord/client"
	"github.com/robalyx/relay/internal/setup/config"
)

// ClientConfig maps the [discord] config section onto a client configuration.
// Unset values are left zero so the client applies its own defaults.
func ClientConfig(cfg *config.Discord, proxy *url.URL) client.Config {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = client.DefaultUserAgent
	}

	browserVersion := cfg.BrowserVersion
	if browserVersion == "" {
		browserVersion = DefaultBrowserVersion
	}

	return client.Config{
		Token:          cfg.Token,
		BaseURL:        cfg.APIBase,
		UserAgent:      userAgent,
		Properties:     client.DefaultSuperProperties(userAgent, browserVersion, cfg.Locale, cfg.BuildNumber),
		Proxy:          proxy,
		Timeout:        cfg.RequestTimeoutDuration(),
		MaxAttempts:    cfg.MaxAttempts,
		BackoffBase:    cfg.BackoffBaseDuration(),
		BackoffStep:    cfg.BackoffStepDuration(),
		UseClock:       cfg.SyncClock,
		CompensateSkew: cfg.CompensateSkew,
		PaceInterval:   cfg.PaceIntervalDuration(),
		PaceJitter:     cfg.PaceJitterDuration(),
		GlobalRate:     cfg.GlobalRate,
	}
}
