package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides are the CYCLECAL_* variables. Unset variables leave the
// file values alone.
type envOverrides struct {
	Listen               string   `env:"CYCLECAL_LISTEN"`
	Timezone             string   `env:"CYCLECAL_TIMEZONE"`
	LogLevel             string   `env:"CYCLECAL_LOG_LEVEL"`
	StateBackend         string   `env:"CYCLECAL_STATE_BACKEND"`
	StatePath            string   `env:"CYCLECAL_STATE_PATH"`
	HorizonDays          int      `env:"CYCLECAL_HORIZON_DAYS"`
	ForecastCount        int      `env:"CYCLECAL_FORECAST_COUNT"`
	ComplianceWindowDays int      `env:"CYCLECAL_COMPLIANCE_WINDOW_DAYS"`
	CondensedLabels      *bool    `env:"CYCLECAL_CONDENSED_LABELS"`
	RecomputeDebounceMS  int      `env:"CYCLECAL_RECOMPUTE_DEBOUNCE_MS"`
	CORSOrigins          []string `env:"CYCLECAL_CORS_ORIGINS" envSeparator:","`
	BasicAuthUsername    string   `env:"CYCLECAL_BASIC_AUTH_USERNAME"`
	BasicAuthPassword    string   `env:"CYCLECAL_BASIC_AUTH_PASSWORD"`
}

// ApplyEnv overlays CYCLECAL_* environment variables onto c and
// normalizes the result.
func (c *Config) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setString(&c.Listen, o.Listen)
	setString(&c.Timezone, o.Timezone)
	setString(&c.LogLevel, o.LogLevel)
	setString(&c.State.Backend, o.StateBackend)
	setString(&c.State.Path, o.StatePath)
	setInt(&c.HorizonDays, o.HorizonDays)
	setInt(&c.ForecastCount, o.ForecastCount)
	setInt(&c.ComplianceWindowDays, o.ComplianceWindowDays)
	setInt(&c.RecomputeDebounceMS, o.RecomputeDebounceMS)
	if o.CondensedLabels != nil {
		c.CondensedLabels = *o.CondensedLabels
	}
	if len(o.CORSOrigins) > 0 {
		c.CORSOrigins = o.CORSOrigins
	}
	if o.BasicAuthUsername != "" && o.BasicAuthPassword != "" {
		c.BasicAuth = &BasicAuthConfig{Username: o.BasicAuthUsername, Password: o.BasicAuthPassword}
	}

	c.Normalize()
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
