package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"forge/internal/logging"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "nope"))

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.AutonomousAccess {
		t.Error("expected autonomous access to default to false")
	}
	if !settings.InternetAccess {
		t.Error("expected internet access to default to true")
	}
	if settings.LogLevel != logging.LevelWarn {
		t.Errorf("log level = %q, want warn", settings.LogLevel)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "forge", "settings.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := yaml.Marshal(&Settings{OutputDir: "/tmp/build", AutonomousAccess: true, InternetAccess: false, LogLevel: logging.LevelDebug})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.OutputDir != "/tmp/build" {
		t.Errorf("output dir = %q", settings.OutputDir)
	}
	if !settings.AutonomousAccess || settings.InternetAccess {
		t.Errorf("autonomous=%v internet=%v, want true/false", settings.AutonomousAccess, settings.InternetAccess)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("FORGE_AUTONOMOUS_ACCESS", "true")
	t.Setenv("FORGE_OUTPUT_DIR", "/env/dir")

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !settings.AutonomousAccess {
		t.Error("expected env var to enable autonomous access")
	}
	if settings.OutputDir != "/env/dir" {
		t.Errorf("output dir = %q, want env override", settings.OutputDir)
	}
}

func TestSave_RoundTripsThroughSettingsPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	settings := DefaultSettings()
	settings.OutputDir = "generated"
	settings.AutonomousAccess = true

	if err := settings.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.OutputDir != "generated" || !reloaded.AutonomousAccess {
		t.Errorf("reloaded = %+v", reloaded)
	}
}
