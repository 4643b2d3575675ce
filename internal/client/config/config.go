package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the partsdesk session client.
//
// Durations are time.Duration values; the JSON loader accepts either Go
// duration strings ("1h45m") or integer nanoseconds.
type Config struct {
	// Backend and local state.
	APIBaseURL     string
	StateDBPath    string
	RedisAddr      string
	GRPCAddr       string
	RequestTimeout time.Duration

	// Session Context.
	RefreshInterval time.Duration
	RefreshMargin   time.Duration

	// Auth Error Reporter.
	DedupWindow      time.Duration
	ErrorHistorySize int
	RestoreDelay     time.Duration

	// Notification Center.
	NotificationCap      int
	NotificationDuration time.Duration

	// Form Preservation Store.
	SnapshotTTL          time.Duration
	AutoPreserveDebounce time.Duration

	// Recovery Orchestrator.
	RecoveryMaxRetries int
	RecoveryRetryDelay time.Duration

	// Re-authentication prompt.
	LockoutAttempts int
	LockoutCooldown time.Duration
}

// LoadDefaults populates c with the values the dashboard has always used.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8000/api/v1"
	c.StateDBPath = "partsdesk.db"
	c.RedisAddr = ""
	c.GRPCAddr = ""
	c.RequestTimeout = 30 * time.Second

	c.RefreshInterval = 105 * time.Minute
	c.RefreshMargin = 5 * time.Minute

	c.DedupWindow = 5 * time.Second
	c.ErrorHistorySize = 10
	c.RestoreDelay = 500 * time.Millisecond

	c.NotificationCap = 5
	c.NotificationDuration = 5 * time.Second

	c.SnapshotTTL = 30 * time.Minute
	c.AutoPreserveDebounce = time.Second

	c.RecoveryMaxRetries = 3
	c.RecoveryRetryDelay = 2 * time.Second

	c.LockoutAttempts = 3
	c.LockoutCooldown = 5 * time.Minute
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment (optionally seeded by a .env file), a JSON file and
// command-line flags. Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg, ".env")
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}
