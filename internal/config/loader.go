package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"forge/internal/fileutil"
	"forge/internal/logging"
)

// Load reads settings from the per-user settings file, falling back to
// DefaultSettings for anything the file doesn't set, then applies
// environment overrides. A missing file is not an error.
func Load() (*Settings, error) {
	settings := DefaultSettings()

	path := SettingsPath()
	if path != "" {
		if err := loadFromFile(settings, path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	loadFromEnv(settings)
	return settings, nil
}

// SettingsPath returns the per-user settings file's path, honoring
// XDG_CONFIG_HOME and favoring macOS's Application Support directory when
// it already exists there.
func SettingsPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "forge", "settings.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	if runtime.GOOS == "darwin" {
		appSupport := filepath.Join(home, "Library", "Application Support", "forge", "settings.yaml")
		if _, err := os.Stat(appSupport); err == nil {
			return appSupport
		}
		dotConfig := filepath.Join(home, ".forge", "settings.yaml")
		if _, err := os.Stat(dotConfig); err == nil {
			return dotConfig
		}
		return appSupport
	}

	return filepath.Join(home, ".forge", "settings.yaml")
}

func loadFromFile(settings *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), settings); err != nil {
		return fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(settings *Settings) {
	if dir := os.Getenv("FORGE_OUTPUT_DIR"); dir != "" {
		settings.OutputDir = dir
	}
	if v := os.Getenv("FORGE_AUTONOMOUS_ACCESS"); v != "" {
		settings.AutonomousAccess = isTruthy(v)
	}
	if v := os.Getenv("FORGE_INTERNET_ACCESS"); v != "" {
		settings.InternetAccess = isTruthy(v)
	}
	if level := os.Getenv("FORGE_LOG_LEVEL"); level != "" {
		settings.LogLevel = logging.ParseLevel(level)
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Save writes settings to its settings file atomically, creating the
// containing directory (mode 0700, since a future settings field could
// carry a credential) if needed.
func (s *Settings) Save() error {
	path := SettingsPath()
	if path == "" {
		return fmt.Errorf("could not determine settings path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	return fileutil.AtomicWrite(path, data, 0o600)
}
