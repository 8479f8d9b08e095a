package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.App.HTTP.Address() != ":8080" {
		t.Errorf("address = %q", cfg.App.HTTP.Address())
	}
}

func TestSimulatorConfig_DisabledSkipsChecks(t *testing.T) {
	cfg := SimulatorConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled simulator should pass: %v", err)
	}

	cfg = SimulatorConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled simulator without symbols should fail")
	}
}

func TestFeedConfig_Durations(t *testing.T) {
	cfg := FeedConfig{
		ThrottleMS: 250,
		Simulator:  SimulatorConfig{Enabled: true, Symbols: []string{"BTC-USD"}, IntervalMS: 100},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.ChannelThrottle() != 250*time.Millisecond {
		t.Errorf("throttle = %v", cfg.ChannelThrottle())
	}
	if cfg.Simulator.Interval() != 100*time.Millisecond {
		t.Errorf("interval = %v", cfg.Simulator.Interval())
	}

	cfg.ThrottleMS = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative throttle should fail")
	}
}

func TestBundlesConfig_RequiresPath(t *testing.T) {
	cfg := BundlesConfig{Path: "", Watch: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty bundles path should fail")
	}
}
