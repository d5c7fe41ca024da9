package setup

import (
	"context"
	"log"

	"github.com/robalyx/relay/internal/discord/client"
	"github.com/robalyx/relay/internal/discord/rate"
	"github.com/robalyx/relay/internal/redis"
	"github.com/robalyx/relay/internal/setup/config"
	"github.com/robalyx/relay/internal/setup/telemetry"
	"go.uber.org/zap"
)

// DefaultBrowserVersion is reported when the config leaves browser_version empty.
const DefaultBrowserVersion = "134.0.0.0"

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config     // Application configuration
	Logger       *zap.Logger        // Main application logger
	LogManager   *telemetry.Manager // Log management system
	RedisManager *redis.Manager     // Redis connection manager, nil when Redis is disabled
	Discord      *client.Client     // Rate limited Discord REST client
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(logDir, &cfg.Debug)

	return initialize(ctx, cfg, configDir, logManager)
}

// initialize builds the remaining services. On failure everything opened so
// far is closed, including the log files of logManager.
func initialize(
	ctx context.Context, cfg *config.Config, configDir string, logManager *telemetry.Manager,
) (*App, error) {
	var redisManager *redis.Manager

	fail := func(err error) (*App, error) {
		if redisManager != nil {
			redisManager.Close()
		}
		logManager.Stop()
		return nil, err
	}

	logger, err := logManager.GetLogger()
	if err != nil {
		return fail(err)
	}
	logger.Debug("Loaded configuration", zap.String("dir", configDir))

	proxy, err := cfg.Proxy.ParsedURL()
	if err != nil {
		return fail(err)
	}

	clientCfg := ClientConfig(&cfg.Discord, proxy)

	// Shared global rate limits are opt-in
	if cfg.Redis.Enabled {
		redisManager = redis.NewManager(&cfg.Redis, logger)

		redisClient, err := redisManager.GetClient(ctx, redis.RatelimitDBIndex)
		if err != nil {
			return fail(err)
		}

		clientCfg.Shared = rate.NewRedisGlobal(redisClient, cfg.Discord.Token)
		logger.Info("Sharing global rate limits through Redis",
			zap.String("host", cfg.Redis.Host),
			zap.Int("port", cfg.Redis.Port))
	}

	discord, err := client.New(clientCfg, logger)
	if err != nil {
		return fail(err)
	}

	if proxy != nil {
		logger.Info("Routing requests through proxy", zap.String("proxy", proxy.Redacted()))
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		LogManager:   logManager,
		RedisManager: redisManager,
		Discord:      discord,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup() {
	s.Discord.Close()

	stats := s.Discord.Stats()
	s.Logger.Debug("Dispatcher stats",
		zap.Int("buckets", stats.Buckets),
		zap.Uint64("acquired", stats.Acquired),
		zap.Uint64("released", stats.Released))

	// Close Redis connections last as in-flight requests may still publish to it
	if s.RedisManager != nil {
		s.RedisManager.Close()
	}

	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	s.LogManager.Stop()
}
