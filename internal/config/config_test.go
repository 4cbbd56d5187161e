package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Workers)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxFileBytes != 5*1024*1024 {
		t.Errorf("expected 5MB cap, got %d", cfg.MaxFileBytes)
	}
	if cfg.OnCancel != "skip" {
		t.Errorf("expected skip policy, got %q", cfg.OnCancel)
	}
}

func TestLoad_YAMLFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subtrans.yaml")
	data := []byte("workers: 8\ntarget_lang: German\nmodel: from-file\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SUBTRANS_MODEL", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("expected workers from file, got %d", cfg.Workers)
	}
	if cfg.TargetLang != "German" {
		t.Errorf("expected target lang from file, got %q", cfg.TargetLang)
	}
	if cfg.Model != "from-env" {
		t.Errorf("expected env to override file, got %q", cfg.Model)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cfg, _ := Load("")
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	cfg.OnCancel = "explode"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown cancel policy")
	}
}
