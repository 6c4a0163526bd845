package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "CAIXA_OWNER", "AMQP_EXCHANGE", "REFRESH_INTERVAL"} {
		t.Setenv(key, "")
	}
	cfg := Load()

	if cfg.Port != "8082" {
		t.Fatalf("default port expected 8082, got %q", cfg.Port)
	}
	if cfg.Owner != "default" {
		t.Fatalf("default owner expected 'default', got %q", cfg.Owner)
	}
	if cfg.AMQPExchange != "caixa.changes" {
		t.Fatalf("default exchange expected caixa.changes, got %q", cfg.AMQPExchange)
	}
	if cfg.RefreshInterval != 5*time.Minute {
		t.Fatalf("default refresh interval expected 5m, got %v", cfg.RefreshInterval)
	}
}

func TestLoadReadsEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("CAIXA_OWNER", "empresa-1")
	t.Setenv("PURGE_INTERVAL", "2h")

	cfg := Load()
	if cfg.Port != "9999" || cfg.Owner != "empresa-1" || cfg.PurgeInterval != 2*time.Hour {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestValidateAccumulatesErrors(t *testing.T) {
	cfg := Load()
	cfg.Port = "not-a-port"
	cfg.Owner = "  "
	cfg.AMQPURL = "http://wrong-scheme"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"port", "owner", "AMQP"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error missing %q: %s", want, msg)
		}
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := Load()
	cfg.SQLiteDBPath = t.TempDir() + "/caixa.db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}
