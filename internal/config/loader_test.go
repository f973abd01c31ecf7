package config_test

import (
	"strings"
	"testing"

	"github.com/podiumlabs/podium/internal/config"
)

func TestValidate_MemoryDriverIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  driver: memory
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Driver != config.StorageMemory {
		t.Errorf("driver = %q, want memory", cfg.Storage.Driver)
	}
}

func TestValidate_PostgresWithDSNIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  driver: postgres
  postgres_dsn: "postgres://localhost/podium"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownProviderNameIsNotAnError(t *testing.T) {
	t.Parallel()
	// Unknown names only warn; third-party providers may be registered at
	// runtime.
	yaml := `
providers:
  llm:
    name: my-custom-gateway
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	llmNames := config.ValidProviderNames["llm"]
	if len(llmNames) == 0 {
		t.Fatal("ValidProviderNames[\"llm\"] should not be empty")
	}
	found := false
	for _, n := range llmNames {
		if n == "openai" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"llm\"] should contain \"openai\"")
	}
	asrNames := config.ValidProviderNames["asr"]
	found = false
	for _, n := range asrNames {
		if n == "whisper" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"asr\"] should contain \"whisper\"")
	}
}
