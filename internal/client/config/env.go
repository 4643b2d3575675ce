package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables understood by parseEnv.
const (
	EnvAPIBaseURL = "PARTSDESK_API_URL"
	EnvStateDB    = "PARTSDESK_DB"
	EnvRedisAddr  = "PARTSDESK_REDIS_ADDR"
	EnvGRPCAddr   = "PARTSDESK_GRPC_ADDR"
)

// parseEnv loads dotenvPath if it exists (without overriding variables that
// are already set) and copies the recognised variables into cfg.
func parseEnv(cfg *Config, dotenvPath string) {
	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			_ = godotenv.Load(dotenvPath)
		}
	}

	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv(EnvStateDB); v != "" {
		cfg.StateDBPath = v
	}
	if v, ok := os.LookupEnv(EnvRedisAddr); ok {
		cfg.RedisAddr = v
	}
	if v, ok := os.LookupEnv(EnvGRPCAddr); ok {
		cfg.GRPCAddr = v
	}
}
