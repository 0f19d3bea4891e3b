package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := NewViper()
	v.Set("auth.signing_secret", "test-secret")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "livedoc.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if cfg.AITimeout != 20*time.Second {
		t.Fatalf("unexpected ai timeout %v", cfg.AITimeout)
	}
	if cfg.RedisAddress != "" {
		t.Fatalf("expected redis disabled by default, got %q", cfg.RedisAddress)
	}
}

func TestLoadRejectsMissingSigningSecret(t *testing.T) {
	v := NewViper()

	_, err := Load(v)
	if err == nil {
		t.Fatal("expected error for missing signing secret")
	}
	if !strings.Contains(err.Error(), "auth.signing_secret") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	v := NewViper()
	v.Set("auth.signing_secret", "test-secret")
	v.Set("token.ttl_minutes", 0)

	if _, err := Load(v); err == nil {
		t.Fatal("expected error for zero token ttl")
	}
}
