package core

import (
	"context"
	"encoding/base64"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.AwaitTimeout != 5*time.Minute {
		t.Fatalf("unexpected await timeout %s", cfg.AwaitTimeout)
	}
	if cfg.CallbackPath != "/callback" {
		t.Fatalf("unexpected callback path %q", cfg.CallbackPath)
	}
	if len(cfg.Scopes) != 2 {
		t.Fatalf("unexpected scopes %v", cfg.Scopes)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for blank service name")
	}

	cfg = DefaultConfig()
	cfg.CallbackPath = "callback"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for relative callback path")
	}

	cfg = DefaultConfig()
	cfg.AwaitTimeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative timeout")
	}
}

func TestGoOptionsResolverPrecedence(t *testing.T) {
	defaults := DefaultConfig()
	loaded := Config{AwaitTimeout: 2 * time.Minute, ServiceName: "from-config"}
	runtime := Config{AwaitTimeout: 30 * time.Second}

	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.AwaitTimeout != 30*time.Second {
		t.Fatalf("runtime layer must win, got %s", resolved.AwaitTimeout)
	}
	if resolved.ServiceName != "from-config" {
		t.Fatalf("config layer must beat defaults, got %q", resolved.ServiceName)
	}
	if resolved.CallbackPath != "/callback" {
		t.Fatalf("defaults must fill the gaps, got %q", resolved.CallbackPath)
	}
}

func TestCfgxConfigProviderAppliesRawValues(t *testing.T) {
	provider := NewCfgxConfigProvider(staticRawConfigLoader{Values: map[string]any{
		"service_name": "loaded-name",
	}})

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "loaded-name" {
		t.Fatalf("raw value not applied, got %q", cfg.ServiceName)
	}
	if cfg.CallbackPath != "/callback" {
		t.Fatalf("defaults lost, got %q", cfg.CallbackPath)
	}
}

func TestGenerateAuthState(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		state, err := generateAuthState()
		if err != nil {
			t.Fatalf("generate state: %v", err)
		}
		raw, decodeErr := base64.RawURLEncoding.DecodeString(state)
		if decodeErr != nil {
			t.Fatalf("state is not url-safe base64: %v", decodeErr)
		}
		if len(raw)*8 < 128 {
			t.Fatalf("state entropy below 128 bits: %d bytes", len(raw))
		}
		if seen[state] {
			t.Fatalf("state repeated: %q", state)
		}
		seen[state] = true
	}
}
