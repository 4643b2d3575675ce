// Package config loads runtime configuration for the partsdesk session client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables, optionally seeded from a .env file (parseEnv).
//  3. Optional JSON file (parseJson) selected via -c/-config or PARTSDESK_CONFIG.
//  4. Command-line flags (parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   backend API base URL
//	-d string   path of the local SQLite state database
//	-r string   Redis address for the session-scoped store (empty = in-memory)
//	-i int      background token refresh interval (minutes)
//
// # JSON schema
//
//	{
//	  "api_base_url": "http://localhost:8000/api/v1",
//	  "state_db_path": "partsdesk.db",
//	  "redis_addr": "",
//	  "refresh_interval": "1h45m",
//	  "recovery_max_retries": 3,
//	  "recovery_retry_delay": "2s",
//	  "snapshot_ttl": "30m"
//	}
//
// Only keys present in the file override earlier values.
package config
