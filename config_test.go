package courier_test

import (
	"testing"

	"github.com/courierhq/courier"
)

func TestParseEnvironment(t *testing.T) {
	cases := []struct {
		in   string
		want courier.Environment
	}{
		{"development", courier.EnvDevelopment},
		{"test", courier.EnvTest},
		{"production", courier.EnvProduction},
		{"", courier.EnvDevelopment},
	}
	for _, tc := range cases {
		got, err := courier.ParseEnvironment(tc.in)
		if err != nil {
			t.Errorf("ParseEnvironment(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseEnvironment(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseEnvironment_Unknown(t *testing.T) {
	if _, err := courier.ParseEnvironment("staging"); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := courier.DefaultConfig()
	if cfg.Environment != courier.EnvProduction {
		t.Errorf("Environment = %q, want %q", cfg.Environment, courier.EnvProduction)
	}
	if cfg.Concurrency <= 0 {
		t.Error("Concurrency must be positive")
	}
	if len(cfg.Queues) == 0 {
		t.Error("expected a default queue")
	}
	if cfg.ShutdownGrace <= 0 {
		t.Error("ShutdownGrace must be positive")
	}
	if cfg.Codec != "json" {
		t.Errorf("Codec = %q, want %q", cfg.Codec, "json")
	}
}
