package core

import (
	"log"
	"os"
	"strconv"
	"time"
)

// NeutralReputation is assumed for candidates with no reputation record yet.
const NeutralReputation = 50

// Config holds the coordinator's tunable parameters. The phase timeout and
// budget split values are policy defaults, overridable through the
// environment rather than derived from any quest property.
type Config struct {
	Port       int
	HealthPort int

	// RegistryURL is the base URL of the external reputation/identity
	// source. Empty disables ranked candidate lookups entirely.
	RegistryURL string

	ScoutTimeout  time.Duration
	VerifyTimeout time.Duration
	SynthTimeout  time.Duration

	// Percentage shares of the total quest budget per phase.
	ScoutShare  int
	VerifyShare int
	SynthShare  int

	MinReputation int

	// Buffer sizes for the intake and completion queues.
	IntakeBuffer     int
	CompletionBuffer int
}

// DefaultConfig returns the built-in policy defaults: 5m/10m/15m phase
// timeouts and a 50/30/20 budget split.
func DefaultConfig() Config {
	return Config{
		Port:             8080,
		HealthPort:       8081,
		ScoutTimeout:     5 * time.Minute,
		VerifyTimeout:    10 * time.Minute,
		SynthTimeout:     15 * time.Minute,
		ScoutShare:       50,
		VerifyShare:      30,
		SynthShare:       20,
		MinReputation:    NeutralReputation,
		IntakeBuffer:     100,
		CompletionBuffer: 100,
	}
}

// LoadConfig builds a Config from the environment on top of the defaults.
func LoadConfig() Config {
	cfg := DefaultConfig()
	cfg.Port = envInt("COORDINATOR_PORT", cfg.Port)
	cfg.HealthPort = envInt("HEALTH_PORT", cfg.HealthPort)
	cfg.RegistryURL = os.Getenv("REGISTRY_URL")
	cfg.ScoutTimeout = envDuration("SCOUT_TIMEOUT", cfg.ScoutTimeout)
	cfg.VerifyTimeout = envDuration("VERIFY_TIMEOUT", cfg.VerifyTimeout)
	cfg.SynthTimeout = envDuration("SYNTH_TIMEOUT", cfg.SynthTimeout)
	cfg.ScoutShare = envInt("SCOUT_SHARE", cfg.ScoutShare)
	cfg.VerifyShare = envInt("VERIFY_SHARE", cfg.VerifyShare)
	cfg.SynthShare = envInt("SYNTH_SHARE", cfg.SynthShare)
	cfg.MinReputation = envInt("MIN_REPUTATION", cfg.MinReputation)

	if cfg.ScoutShare+cfg.VerifyShare+cfg.SynthShare > 100 {
		log.Printf("[Config] Budget shares exceed 100%%, falling back to 50/30/20")
		cfg.ScoutShare, cfg.VerifyShare, cfg.SynthShare = 50, 30, 20
	}
	return cfg
}

// TimeoutForPhase returns the configured timeout window for a quest phase.
func (c Config) TimeoutForPhase(phase QuestStatus) time.Duration {
	switch phase {
	case StatusScouting:
		return c.ScoutTimeout
	case StatusVerifying:
		return c.VerifyTimeout
	case StatusSynthesizing:
		return c.SynthTimeout
	default:
		return c.ScoutTimeout
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[Config] Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[Config] Invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return d
}
