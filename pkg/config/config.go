// Package config loads the externally supplied product policy: SLA windows,
// certification validity, storage and activity log locations.
//
// Values come from the environment, optionally seeded from a .env file.
// Policy numbers like the SLA windows are configuration: the core packages
// take them as inputs and never hard-code them.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/blackwolfsec/soc-sdk/pkg/certification"
	"github.com/blackwolfsec/soc-sdk/pkg/core"
	"github.com/blackwolfsec/soc-sdk/pkg/incident"
	"github.com/blackwolfsec/soc-sdk/pkg/shared/severity"
)

// Config holds the service configuration.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// DatabasePath is the SQLite database location.
	DatabasePath string

	// ActivityLogPath is the JSONL activity log location.
	ActivityLogPath string

	// SLA windows per incident severity.
	SLACritical time.Duration
	SLAHigh     time.Duration
	SLAMedium   time.Duration
	SLALow      time.Duration

	// CertValidityMonths is the certification validity window.
	CertValidityMonths int

	// CertExpiryWarning is the expiring-soon horizon.
	CertExpiryWarning time.Duration

	// RequireFindingsResolved gates certification issuance on zero open
	// findings in addition to engagement completion.
	RequireFindingsResolved bool

	// SweepInterval is how often the monitor re-reads live state.
	SweepInterval time.Duration

	// Verbose enables debug logging.
	Verbose bool
}

// Default returns the product-default configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}

	return &Config{
		ListenAddr:         ":8080",
		DatabasePath:       filepath.Join(home, ".blackwolf", "soc.db"),
		ActivityLogPath:    filepath.Join(home, ".blackwolf", "activity.log"),
		SLACritical:        2 * time.Hour,
		SLAHigh:            4 * time.Hour,
		SLAMedium:          8 * time.Hour,
		SLALow:             24 * time.Hour,
		CertValidityMonths: certification.DefaultValidityMonths,
		CertExpiryWarning:  certification.DefaultExpiringSoonWindow,
		SweepInterval:      time.Minute,
	}
}

// Load builds the configuration from defaults, an optional .env file, and
// the process environment. A missing .env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		// Best-effort load of a .env in the working directory.
		_ = godotenv.Load()
	}

	cfg := Default()

	envString(&cfg.ListenAddr, "SOC_LISTEN_ADDR")
	envString(&cfg.DatabasePath, "SOC_DB_PATH")
	envString(&cfg.ActivityLogPath, "SOC_ACTIVITY_LOG")
	envDuration(&cfg.SLACritical, "SOC_SLA_CRITICAL")
	envDuration(&cfg.SLAHigh, "SOC_SLA_HIGH")
	envDuration(&cfg.SLAMedium, "SOC_SLA_MEDIUM")
	envDuration(&cfg.SLALow, "SOC_SLA_LOW")
	envInt(&cfg.CertValidityMonths, "SOC_CERT_VALIDITY_MONTHS")
	envDuration(&cfg.CertExpiryWarning, "SOC_CERT_EXPIRY_WARNING")
	envBool(&cfg.RequireFindingsResolved, "SOC_REQUIRE_FINDINGS_RESOLVED")
	envDuration(&cfg.SweepInterval, "SOC_SWEEP_INTERVAL")
	envBool(&cfg.Verbose, "SOC_VERBOSE")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	return core.NewValidator().
		Required("SOC_LISTEN_ADDR", c.ListenAddr).
		Required("SOC_DB_PATH", c.DatabasePath).
		Required("SOC_ACTIVITY_LOG", c.ActivityLogPath).
		MinDuration("SOC_SLA_CRITICAL", c.SLACritical, time.Minute).
		MinDuration("SOC_SLA_HIGH", c.SLAHigh, time.Minute).
		MinDuration("SOC_SLA_MEDIUM", c.SLAMedium, time.Minute).
		MinDuration("SOC_SLA_LOW", c.SLALow, time.Minute).
		Min("SOC_CERT_VALIDITY_MONTHS", c.CertValidityMonths, 1).
		MinDuration("SOC_CERT_EXPIRY_WARNING", c.CertExpiryWarning, 24*time.Hour).
		MinDuration("SOC_SWEEP_INTERVAL", c.SweepInterval, time.Second).
		Err()
}

// SLAPolicy builds the incident SLA policy from the configured windows.
func (c *Config) SLAPolicy() (incident.SLAPolicy, error) {
	return incident.NewSLAPolicy(map[severity.Level]time.Duration{
		severity.Critical: c.SLACritical,
		severity.High:     c.SLAHigh,
		severity.Medium:   c.SLAMedium,
		severity.Low:      c.SLALow,
	})
}

// CertPolicy builds the certification issuance policy.
func (c *Config) CertPolicy() certification.Policy {
	policy := certification.DefaultPolicy()
	for _, t := range certification.AllTypes() {
		policy.ValidityMonths[t] = c.CertValidityMonths
	}
	policy.ExpiringSoonWindow = c.CertExpiryWarning
	policy.RequireFindingsResolved = c.RequireFindingsResolved
	return policy
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
