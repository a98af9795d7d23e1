// ABOUTME: Tests for config loading, defaults and environment overrides
// ABOUTME: Covers file values, TAPDECK_* env precedence and fallbacks
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error for an explicit missing file")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load with no file: %v", err)
	}
	if !cfg.Output.MergeAfterStop {
		t.Error("expected merge_after_stop to default to true")
	}
	if cfg.Capture.SampleRate != 0 {
		t.Errorf("expected sample_rate to default to 0, got %v", cfg.Capture.SampleRate)
	}
	if cfg.Output.Directory == "" {
		t.Error("expected a non-empty default output directory")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tapdeck.yaml")
	body := []byte(`
output:
  directory: /tmp/captures
  merge_after_stop: false
capture:
  mute_while_tapped: true
  sample_rate: 44100
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Output.Directory != "/tmp/captures" {
		t.Errorf("directory = %q", cfg.Output.Directory)
	}
	if cfg.Output.MergeAfterStop {
		t.Error("expected merge_after_stop false from file")
	}
	if !cfg.Capture.MuteWhileTapped {
		t.Error("expected mute_while_tapped true from file")
	}
	if cfg.Capture.SampleRate != 44100 {
		t.Errorf("sample_rate = %v, want 44100", cfg.Capture.SampleRate)
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("TAPDECK_OUTPUT_MERGE_AFTER_STOP", "false")
	t.Setenv("TAPDECK_CAPTURE_SAMPLE_RATE", "44100")
	t.Setenv("TAPDECK_OUTPUT_DIRECTORY", "/tmp/env-captures")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Output.MergeAfterStop {
		t.Error("expected TAPDECK_OUTPUT_MERGE_AFTER_STOP=false to apply")
	}
	if cfg.Capture.SampleRate != 44100 {
		t.Errorf("sample_rate = %v, want env override 44100", cfg.Capture.SampleRate)
	}
	if cfg.Output.Directory != "/tmp/env-captures" {
		t.Errorf("directory = %q, want env override", cfg.Output.Directory)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tapdeck.yaml")
	body := []byte("output:\n  merge_after_stop: true\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TAPDECK_OUTPUT_MERGE_AFTER_STOP", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Output.MergeAfterStop {
		t.Error("expected the environment to take precedence over the file")
	}
}
