package setup_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/robalyx/relay/internal/discord/client"
	"github.com/robalyx/relay/internal/setup"
	"github.com/robalyx/relay/internal/setup/config"
	"github.com/stretchr/testify/assert"
)

func TestClientConfig(t *testing.T) {
	t.Parallel()

	proxy := &url.URL{Scheme: "http", Host: "127.0.0.1:8080"}
	cfg := setup.ClientConfig(&config.Discord{
		Token:          "abc",
		APIBase:        "https://canary.discord.com/api/v9",
		Locale:         "de",
		BuildNumber:    1234,
		SyncClock:      true,
		RequestTimeout: 5000,
		MaxAttempts:    3,
		BackoffBase:    100,
		BackoffStep:    200,
		PaceInterval:   1000,
		PaceJitter:     250,
		GlobalRate:     10,
	}, proxy)

	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, "https://canary.discord.com/api/v9", cfg.BaseURL)
	assert.Equal(t, client.DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, client.DefaultUserAgent, cfg.Properties.BrowserUserAgent)
	assert.Equal(t, setup.DefaultBrowserVersion, cfg.Properties.BrowserVersion)
	assert.Equal(t, "de", cfg.Properties.SystemLocale)
	assert.Equal(t, 1234, cfg.Properties.ClientBuildNumber)
	assert.Same(t, proxy, cfg.Proxy)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.BackoffBase)
	assert.Equal(t, 200*time.Millisecond, cfg.BackoffStep)
	assert.True(t, cfg.UseClock)
	assert.False(t, cfg.CompensateSkew)
	assert.Equal(t, time.Second, cfg.PaceInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.PaceJitter)
	assert.InDelta(t, 10.0, cfg.GlobalRate, 0.001)
	assert.Nil(t, cfg.Shared)
}
