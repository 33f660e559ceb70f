package types

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Registry configuration
const (
	// MaxValidators is the default registry capacity.
	MaxValidators = 1000

	// MaxValidatorIDLen bounds caller-assigned ids.
	MaxValidatorIDLen = 128

	// NeutralTrust is the trust score assigned at registration.
	NeutralTrust = 50

	// DefaultCapability is the capability score assigned when advisory
	// assessment is disabled or unreachable.
	DefaultCapability = 50

	// MinCapability is the advisory-assessed capability floor below
	// which registration is refused (live advisory only).
	MinCapability = 30

	// ScoreMax is the upper bound for trust and capability scores.
	ScoreMax = 100
)

// Round configuration
const (
	// QuorumFloor is the minimum active-validator count required to open
	// a round.
	QuorumFloor = 7

	// ThresholdMin is the lowest settable agreement percentage. Never
	// below simple majority.
	ThresholdMin = 51

	// ThresholdMax is the highest settable agreement percentage.
	ThresholdMax = 90

	// RoundTick is the default relative time unit for round deadlines.
	RoundTick = time.Second

	// MinDeadlineTicks and MaxDeadlineTicks bound per-class deadline
	// overrides.
	MinDeadlineTicks = 1
	MaxDeadlineTicks = 100

	// OnlineWindow is the number of recent eligibility snapshots used
	// for the rolling uptime percentage.
	OnlineWindow = 10
)

// List publication configuration
const (
	// MinListMembers is the quorum floor for a published list.
	MinListMembers = 7

	// MaxListMembers caps list size.
	MaxListMembers = 150

	// OverlapSafetyFloor is the diagnostic overlap percentage two
	// coexisting lists are expected to stay above. The engine exposes
	// the check; operators enforce it.
	OverlapSafetyFloor = 90
)

// Advisory configuration
const (
	// DefaultAdvisoryTimeout bounds every advisory gateway call.
	DefaultAdvisoryTimeout = 2 * time.Second

	// AssessmentCacheSize is the LRU capacity for cached validator
	// assessments.
	AssessmentCacheSize = 512
)

// Config holds runtime configuration for the engine and daemon.
type Config struct {
	// Registry
	MaxValidators     int    `yaml:"maxValidators"`
	NeutralTrust      uint32 `yaml:"neutralTrust"`
	DefaultCapability uint32 `yaml:"defaultCapability"`
	MinCapability     uint32 `yaml:"minCapability"`

	// Rounds
	QuorumFloor  int           `yaml:"quorumFloor"`
	RoundTick    time.Duration `yaml:"roundTick"`
	OnlineWindow int           `yaml:"onlineWindow"`

	// Lists
	MinListMembers int `yaml:"minListMembers"`
	MaxListMembers int `yaml:"maxListMembers"`

	// Advisory
	AdvisoryEnabled bool          `yaml:"advisoryEnabled"`
	AdvisoryURL     string        `yaml:"advisoryURL"`
	AdvisoryTimeout time.Duration `yaml:"advisoryTimeout"`

	// Daemon
	ListenAddr      string        `yaml:"listenAddr"`
	DataDir         string        `yaml:"dataDir"`
	LogLevel        string        `yaml:"logLevel"`
	RateLimitPerSec float64       `yaml:"rateLimitPerSec"`
	RateLimitBurst  int           `yaml:"rateLimitBurst"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxValidators:     MaxValidators,
		NeutralTrust:      NeutralTrust,
		DefaultCapability: DefaultCapability,
		MinCapability:     MinCapability,
		QuorumFloor:       QuorumFloor,
		RoundTick:         RoundTick,
		OnlineWindow:      OnlineWindow,
		MinListMembers:    MinListMembers,
		MaxListMembers:    MaxListMembers,
		AdvisoryEnabled:   false,
		AdvisoryTimeout:   DefaultAdvisoryTimeout,
		ListenAddr:        ":8640",
		DataDir:           "",
		LogLevel:          "info",
		RateLimitPerSec:   100,
		RateLimitBurst:    200,
		ShutdownTimeout:   30 * time.Second,
	}
}

// LoadConfig reads a YAML config file over the defaults, then applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides configuration from environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("GDIN_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("GDIN_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("GDIN_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GDIN_ADVISORY_URL"); v != "" {
		c.AdvisoryURL = v
		c.AdvisoryEnabled = true
	}
	if v := os.Getenv("GDIN_ADVISORY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.AdvisoryTimeout = d
		}
	}
	if v := os.Getenv("GDIN_QUORUM_FLOOR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.QuorumFloor = n
		}
	}
}

// Validate rejects configurations that would break engine invariants.
func (c *Config) Validate() error {
	if c.MaxValidators < c.QuorumFloor {
		return fmt.Errorf("maxValidators %d below quorum floor %d", c.MaxValidators, c.QuorumFloor)
	}
	if c.QuorumFloor < 1 {
		return fmt.Errorf("quorumFloor must be positive, got %d", c.QuorumFloor)
	}
	if !ScoreInRange(c.NeutralTrust) || !ScoreInRange(c.DefaultCapability) || !ScoreInRange(c.MinCapability) {
		return fmt.Errorf("scores must be within 0..%d", ScoreMax)
	}
	if c.MinListMembers < 1 || c.MaxListMembers < c.MinListMembers {
		return fmt.Errorf("invalid list member bounds [%d, %d]", c.MinListMembers, c.MaxListMembers)
	}
	if c.RoundTick <= 0 {
		return fmt.Errorf("roundTick must be positive")
	}
	if c.OnlineWindow < 1 {
		return fmt.Errorf("onlineWindow must be positive")
	}
	if c.AdvisoryEnabled && c.AdvisoryURL == "" {
		return fmt.Errorf("advisory enabled but no URL configured")
	}
	if c.AdvisoryTimeout <= 0 {
		return fmt.Errorf("advisoryTimeout must be positive")
	}
	return nil
}
