// Package config maps environment variables onto the service configuration,
// including the full earning policy table: base reward ranges, caps,
// cooldowns and play limits are configuration, never hardcoded per game.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/pawmart/wallet-backend/internal/models"
)

type Config struct {
	Env  string `envconfig:"APP_ENV" default:"development"`
	Port string `envconfig:"PORT" default:"8080"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`

	RedisURL  string `envconfig:"REDIS_URL" default:"localhost:6379"`
	RedisPass string `envconfig:"REDIS_PASS" default:""`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTExpiry time.Duration `envconfig:"JWT_EXPIRY" default:"24h"`

	// --- Earning policy ---
	DailyEarnCap   int64 `envconfig:"DAILY_EARN_CAP" default:"5000"` // $50.00/day
	MaxPlaysPerDay int64 `envconfig:"MAX_PLAYS_PER_DAY" default:"10"`

	// Purchase rewards: basis points of the order subtotal, capped per order.
	PurchaseRewardBps   int64 `envconfig:"PURCHASE_REWARD_BPS" default:"100"`
	PurchaseRewardCap   int64 `envconfig:"PURCHASE_REWARD_CAP" default:"1000"`
	PurchaseMinSubtotal int64 `envconfig:"PURCHASE_MIN_SUBTOTAL" default:"100"`

	// --- Games ---
	FeedPetCooldown  time.Duration `envconfig:"FEED_PET_COOLDOWN" default:"60s"`
	FeedPetMinReward int64         `envconfig:"FEED_PET_MIN_REWARD" default:"50"`
	FeedPetMaxReward int64         `envconfig:"FEED_PET_MAX_REWARD" default:"200"`

	QuizMinReward int64 `envconfig:"QUIZ_MIN_REWARD" default:"100"`
	QuizMaxReward int64 `envconfig:"QUIZ_MAX_REWARD" default:"300"`

	WheelMinReward int64 `envconfig:"WHEEL_MIN_REWARD" default:"200"`
	WheelMaxReward int64 `envconfig:"WHEEL_MAX_REWARD" default:"1000"`
	// Lucky wheel is a membership perk.
	WheelMinTier string `envconfig:"WHEEL_MIN_TIER" default:"silver"`

	// --- Redemption / holds ---
	RedeemDedupeWindow time.Duration `envconfig:"REDEEM_DEDUPE_WINDOW" default:"24h"`
	HoldTTL            time.Duration `envconfig:"HOLD_TTL" default:"30m"`

	// Cron spec for the nightly maintenance sweep (stale holds, reconcile).
	MaintenanceSchedule string `envconfig:"MAINTENANCE_SCHEDULE" default:"0 3 * * *"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DailyEarnCap <= 0 {
		return fmt.Errorf("DAILY_EARN_CAP must be > 0")
	}
	if c.MaxPlaysPerDay <= 0 {
		return fmt.Errorf("MAX_PLAYS_PER_DAY must be > 0")
	}
	if c.FeedPetMinReward > c.FeedPetMaxReward ||
		c.QuizMinReward > c.QuizMaxReward ||
		c.WheelMinReward > c.WheelMaxReward {
		return fmt.Errorf("reward range min exceeds max")
	}
	if !models.Tier(c.WheelMinTier).Valid() {
		return fmt.Errorf("WHEEL_MIN_TIER %q is not a known tier", c.WheelMinTier)
	}
	return nil
}

// GameRules builds the policy table the gate and earning engine consume.
func (c *Config) GameRules() map[string]models.GameRule {
	return map[string]models.GameRule{
		"feed_pet": {
			GameID:    "feed_pet",
			Frequency: models.FrequencyCooldown,
			Cooldown:  c.FeedPetCooldown,
			MinReward: c.FeedPetMinReward,
			MaxReward: c.FeedPetMaxReward,
		},
		"quiz": {
			GameID:    "quiz",
			Frequency: models.FrequencyDaily,
			MinReward: c.QuizMinReward,
			MaxReward: c.QuizMaxReward,
		},
		"lucky_wheel": {
			GameID:    "lucky_wheel",
			Frequency: models.FrequencyWeekly,
			MinReward: c.WheelMinReward,
			MaxReward: c.WheelMaxReward,
			MinTier:   models.Tier(c.WheelMinTier),
		},
	}
}
