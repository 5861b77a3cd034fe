// Package config loads and saves this engine's per-user settings file: the
// output directory builds land in by default, and the two capability
// switches (shelling out on its own, reaching the network through the
// research provider) that gate what an autonomous build is allowed to do
// without asking first.
package config

import "forge/internal/logging"

// Settings is the on-disk shape of <user-home>/.forge/settings.yaml.
type Settings struct {
	// OutputDir is the default workspace root for a build request that
	// doesn't name one explicitly. Empty means "the current directory".
	OutputDir string `yaml:"output_dir"`

	// AutonomousAccess allows the Agentic Executor and the DAG
	// Orchestrator's run-command detection to execute shell commands
	// without per-command confirmation. False restricts both to
	// dry-run: commands are parsed and logged but never started.
	AutonomousAccess bool `yaml:"autonomous_access"`

	// InternetAccess gates the research provider: false forces
	// orchestrator.NoResearchProvider regardless of what's configured,
	// so a guided-fix escalation never reaches out to the network.
	InternetAccess bool `yaml:"internet_access"`

	// LogLevel is the structured logger's minimum level: debug, info,
	// warn, or error.
	LogLevel logging.Level `yaml:"log_level"`
}

// DefaultSettings returns the settings a fresh install starts with:
// conservative about autonomy, permissive about research, quiet logging.
func DefaultSettings() *Settings {
	return &Settings{
		OutputDir:        "",
		AutonomousAccess: false,
		InternetAccess:   true,
		LogLevel:         logging.LevelWarn,
	}
}
