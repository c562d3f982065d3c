package core

import (
	"testing"
	"time"
)

func TestDefaultConfigPolicy(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ScoutTimeout != 5*time.Minute || cfg.VerifyTimeout != 10*time.Minute || cfg.SynthTimeout != 15*time.Minute {
		t.Fatalf("unexpected default timeouts: %+v", cfg)
	}
	if cfg.ScoutShare != 50 || cfg.VerifyShare != 30 || cfg.SynthShare != 20 {
		t.Fatalf("unexpected default shares: %+v", cfg)
	}
}

func TestTimeoutForPhase(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TimeoutForPhase(StatusScouting) != cfg.ScoutTimeout {
		t.Error("scouting timeout mismatch")
	}
	if cfg.TimeoutForPhase(StatusVerifying) != cfg.VerifyTimeout {
		t.Error("verifying timeout mismatch")
	}
	if cfg.TimeoutForPhase(StatusSynthesizing) != cfg.SynthTimeout {
		t.Error("synthesizing timeout mismatch")
	}
}

func TestLoadConfig_InvalidShareFallback(t *testing.T) {
	t.Setenv("SCOUT_SHARE", "60")
	t.Setenv("VERIFY_SHARE", "40")
	t.Setenv("SYNTH_SHARE", "20")

	cfg := LoadConfig()
	if cfg.ScoutShare != 50 || cfg.VerifyShare != 30 || cfg.SynthShare != 20 {
		t.Fatalf("expected fallback to 50/30/20, got %d/%d/%d", cfg.ScoutShare, cfg.VerifyShare, cfg.SynthShare)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("COORDINATOR_PORT", "9999")
	t.Setenv("SCOUT_TIMEOUT", "30s")
	t.Setenv("MIN_REPUTATION", "75")

	cfg := LoadConfig()
	if cfg.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Port)
	}
	if cfg.ScoutTimeout != 30*time.Second {
		t.Errorf("scout timeout = %v, want 30s", cfg.ScoutTimeout)
	}
	if cfg.MinReputation != 75 {
		t.Errorf("min reputation = %d, want 75", cfg.MinReputation)
	}
}
