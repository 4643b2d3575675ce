package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/partsdesk/internal/flagx"
	"github.com/dmitrijs2005/partsdesk/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// let us tell "absent" from "zero" so a partial file only overrides what it
// names.
type JsonConfig struct {
	APIBaseURL     *string         `json:"api_base_url"`
	StateDBPath    *string         `json:"state_db_path"`
	RedisAddr      *string         `json:"redis_addr"`
	GRPCAddr       *string         `json:"grpc_addr"`
	RequestTimeout *timex.Duration `json:"request_timeout"`

	RefreshInterval *timex.Duration `json:"refresh_interval"`
	RefreshMargin   *timex.Duration `json:"refresh_margin"`

	DedupWindow      *timex.Duration `json:"dedup_window"`
	ErrorHistorySize *int            `json:"error_history_size"`
	RestoreDelay     *timex.Duration `json:"restore_delay"`

	NotificationCap      *int            `json:"notification_cap"`
	NotificationDuration *timex.Duration `json:"notification_duration"`

	SnapshotTTL          *timex.Duration `json:"snapshot_ttl"`
	AutoPreserveDebounce *timex.Duration `json:"auto_preserve_debounce"`

	RecoveryMaxRetries *int            `json:"recovery_max_retries"`
	RecoveryRetryDelay *timex.Duration `json:"recovery_retry_delay"`

	LockoutAttempts *int            `json:"lockout_attempts"`
	LockoutCooldown *timex.Duration `json:"lockout_cooldown"`
}

// parseJson overlays cfg with values from the JSON file named by -c/-config
// in args (or PARTSDESK_CONFIG). It panics on read or unmarshal errors, the
// same way flag parsing does: a broken config file is a startup failure.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.StateDBPath, jc.StateDBPath)
	setString(&cfg.RedisAddr, jc.RedisAddr)
	setString(&cfg.GRPCAddr, jc.GRPCAddr)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)

	setDuration(&cfg.RefreshInterval, jc.RefreshInterval)
	setDuration(&cfg.RefreshMargin, jc.RefreshMargin)

	setDuration(&cfg.DedupWindow, jc.DedupWindow)
	setInt(&cfg.ErrorHistorySize, jc.ErrorHistorySize)
	setDuration(&cfg.RestoreDelay, jc.RestoreDelay)

	setInt(&cfg.NotificationCap, jc.NotificationCap)
	setDuration(&cfg.NotificationDuration, jc.NotificationDuration)

	setDuration(&cfg.SnapshotTTL, jc.SnapshotTTL)
	setDuration(&cfg.AutoPreserveDebounce, jc.AutoPreserveDebounce)

	setInt(&cfg.RecoveryMaxRetries, jc.RecoveryMaxRetries)
	setDuration(&cfg.RecoveryRetryDelay, jc.RecoveryRetryDelay)

	setInt(&cfg.LockoutAttempts, jc.LockoutAttempts)
	setDuration(&cfg.LockoutCooldown, jc.LockoutCooldown)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
