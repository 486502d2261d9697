package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mpriessner/ai-lab-assistent-v1/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr: got %s, want :8080", cfg.Server.Addr)
	}
	if cfg.GenAI.Provider != "gemini" {
		t.Errorf("Provider: got %s, want gemini", cfg.GenAI.Provider)
	}
	if cfg.Gemini.Model != "gemini-2.0-flash" {
		t.Errorf("Gemini model: got %s", cfg.Gemini.Model)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("SampleRate: got %d, want 16000", cfg.Audio.SampleRate)
	}
	if got := cfg.SessionTTLDuration(); got != 30*time.Minute {
		t.Errorf("SessionTTLDuration: got %v, want 30m", got)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_ELEVENLABS_KEY", "xi-secret")

	path := writeConfig(t, "elevenlabs:\n  api_key: ${TEST_ELEVENLABS_KEY}\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.ElevenLabs.APIKey != "xi-secret" {
		t.Errorf("APIKey: got %s, want xi-secret", cfg.ElevenLabs.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSessionTTLDuration_Invalid(t *testing.T) {
	path := writeConfig(t, "server:\n  session_ttl: bogus\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if got := cfg.SessionTTLDuration(); got != 30*time.Minute {
		t.Errorf("SessionTTLDuration: got %v, want fallback 30m", got)
	}
}
