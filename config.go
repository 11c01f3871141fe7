package actiongate

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/actiongate/actiongate/policy"
	"github.com/actiongate/actiongate/service/ratelimit"
)

// Config is a serialisable representation of the gate configuration. It can
// be populated from YAML or JSON; the zero value is useful: all nested
// fields inherit their package defaults and simulate-only stays on.
type Config struct {
	// PollInterval is the orchestrator cadence, e.g. "15s".
	PollInterval string `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`

	// HandlerTimeout bounds one live handler dispatch, e.g. "120s".
	HandlerTimeout string `json:"handlerTimeout,omitempty" yaml:"handlerTimeout,omitempty"`

	// SimulateOnly gates real side effects; nil means true. Executing for
	// real always requires an explicit false.
	SimulateOnly *bool `json:"simulateOnly,omitempty" yaml:"simulateOnly,omitempty"`

	// BaseURL is the storage root for the fs backends (requests, audit,
	// ledger, event queue). Empty keeps everything in memory.
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`

	// HealthLocation, when set, receives a JSON health snapshot per cycle.
	HealthLocation string `json:"healthLocation,omitempty" yaml:"healthLocation,omitempty"`

	Policy     policy.Config    `json:"policy,omitempty" yaml:"policy,omitempty"`
	RateLimits ratelimit.Config `json:"rateLimits,omitempty" yaml:"rateLimits,omitempty"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	simulate := true
	return &Config{
		PollInterval:   "15s",
		HandlerTimeout: "120s",
		SimulateOnly:   &simulate,
		RateLimits:     ratelimit.DefaultConfig(),
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if _, err := c.pollInterval(); err != nil {
		return err
	}
	if _, err := c.handlerTimeout(); err != nil {
		return err
	}
	return nil
}

func (c *Config) pollInterval() (time.Duration, error) {
	if c == nil || c.PollInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid pollInterval %q", c.PollInterval)
	}
	return d, nil
}

func (c *Config) handlerTimeout() (time.Duration, error) {
	if c == nil || c.HandlerTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.HandlerTimeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid handlerTimeout %q", c.HandlerTimeout)
	}
	return d, nil
}

func (c *Config) simulateOnly() bool {
	if c == nil || c.SimulateOnly == nil {
		return true
	}
	return *c.SimulateOnly
}

// LoadConfig reads a YAML (or JSON) configuration from any location
// viant/afs understands, then applies environment overrides. A `.env` file
// in the working directory is honoured when present.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	config := DefaultConfig()
	if URL != "" {
		fs := afs.New()
		data, err := fs.DownloadWithURL(ctx, URL)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %v: %w", URL, err)
		}
		if err = yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
		}
	}
	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Environment variables recognised by applyEnv.
const (
	envDryRun         = "DRY_RUN"
	envPollInterval   = "POLL_INTERVAL"
	envBaseURL        = "BASE_URL"
	envHealthLocation = "HEALTH_LOCATION"
)

func (c *Config) applyEnv() {
	_ = godotenv.Load()
	if value := os.Getenv(envDryRun); value != "" {
		if simulate, err := strconv.ParseBool(value); err == nil {
			c.SimulateOnly = &simulate
		}
	}
	if value := os.Getenv(envPollInterval); value != "" {
		c.PollInterval = value
	}
	if value := os.Getenv(envBaseURL); value != "" {
		c.BaseURL = value
	}
	if value := os.Getenv(envHealthLocation); value != "" {
		c.HealthLocation = value
	}
}
