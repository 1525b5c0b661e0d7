package bot

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ThrottleConfig holds per-user flood control settings.
type ThrottleConfig struct {
	MaxUpdates int
	Window     time.Duration
	KeyPrefix  string
}

// DefaultThrottleConfig returns default flood control settings.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MaxUpdates: 30,
		Window:     time.Minute,
		KeyPrefix:  "linkbot:throttle",
	}
}

// Throttle counts updates per user in fixed Redis windows.
type Throttle struct {
	client *redis.Client
	config ThrottleConfig
	logger *zap.Logger
}

// NewThrottle creates a Throttle. A nil client disables throttling.
func NewThrottle(client *redis.Client, config ThrottleConfig, logger *zap.Logger) *Throttle {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultThrottleConfig()
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = def.KeyPrefix
	}
	return &Throttle{client: client, config: config, logger: logger}
}

// Allow reports whether the user may send another update in the current window.
func (t *Throttle) Allow(ctx context.Context, userID int64) bool {
	if t == nil || t.client == nil || t.config.MaxUpdates <= 0 {
		return true
	}

	key := t.config.KeyPrefix + ":" + strconv.FormatInt(userID, 10)

	result, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		t.logger.Error("throttle redis error", zap.Error(err))
		// Fail open: allow update if Redis is unavailable
		return true
	}

	// Set expiration on first update
	if result == 1 {
		t.client.Expire(ctx, key, t.config.Window)
	}

	if result > int64(t.config.MaxUpdates) {
		t.logger.Debug("update throttled",
			zap.Int64("user_id", userID),
			zap.Int64("count", result),
		)
		return false
	}
	return true
}
