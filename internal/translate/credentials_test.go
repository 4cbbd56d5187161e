package translate

import (
	"os"
	"testing"
)

func TestLoadKey_FlagWins(t *testing.T) {
	t.Setenv(KeyEnvVar, "env-key")
	if got := LoadKey(" flag-key "); got != "flag-key" {
		t.Errorf("expected trimmed flag value, got %q", got)
	}
}

func TestLoadKey_EnvBeforeFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.WriteFile(KeyFile, []byte("file-key\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(KeyEnvVar, "env-key")
	if got := LoadKey(""); got != "env-key" {
		t.Errorf("expected env key, got %q", got)
	}
}

func TestLoadKey_File(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(KeyEnvVar, "")
	if got := LoadKey(""); got != "" {
		t.Errorf("expected empty key with no sources, got %q", got)
	}
	if err := SaveKey("xai-secret"); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if got := LoadKey(""); got != "xai-secret" {
		t.Errorf("expected key from file, got %q", got)
	}
	info, err := os.Stat(KeyFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 key file, got %v", info.Mode().Perm())
	}
}

func TestSaveKey_RejectsEmpty(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := SaveKey("   "); err == nil {
		t.Error("expected error saving empty key")
	}
}
