package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OfferTimeout != 20*time.Second {
		t.Fatalf("default offer timeout should be 20s, got %v", cfg.OfferTimeout)
	}
	if cfg.ExhaustionGrace != 0 {
		t.Fatalf("default exhaustion grace should be 0, got %v", cfg.ExhaustionGrace)
	}
	if cfg.CandidateTopN != 8 {
		t.Fatalf("default top-n should be 8, got %d", cfg.CandidateTopN)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DISPATCH_OFFER_TIMEOUT", "150ms")
	t.Setenv("DISPATCH_EXHAUSTION_GRACE", "20s")
	t.Setenv("DISPATCH_TOP_N", "3")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OfferTimeout != 150*time.Millisecond {
		t.Fatalf("offer timeout override not applied: %v", cfg.OfferTimeout)
	}
	if cfg.ExhaustionGrace != 20*time.Second {
		t.Fatalf("grace override not applied: %v", cfg.ExhaustionGrace)
	}
	if cfg.CandidateTopN != 3 {
		t.Fatalf("top-n override not applied: %d", cfg.CandidateTopN)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("broker list not trimmed: %v", cfg.KafkaBrokers)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level should be lowercased, got %q", cfg.LogLevel)
	}
}

func TestInvalidValuesAccumulate(t *testing.T) {
	t.Setenv("DISPATCH_OFFER_TIMEOUT", "soon")
	t.Setenv("DISPATCH_TOP_N", "zero")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected an error for invalid env values")
	}
}

func TestRejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("DISPATCH_OFFER_TIMEOUT", "-5s")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected an error for a negative offer timeout")
	}
}
