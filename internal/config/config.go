// Package config loads valops configuration from valops.yaml with
// environment-variable overrides. Defaults mirror the production setup of the
// weekly valuation agent, so the binary works with no config file at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up next to the executable and in
// the current directory.
const DefaultFileName = "valops.yaml"

// Config holds all valops configuration.
type Config struct {
	// Pipeline is the external program bracketed by the run log.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Log configures the append-only run log.
	Log LogConfig `yaml:"log"`

	// Deploy configures the gcloud function deployment.
	Deploy DeployConfig `yaml:"deploy"`

	// Schedule configures the recurring run slots.
	Schedule ScheduleConfig `yaml:"schedule"`

	// Logging configures diagnostic output.
	Logging LoggingConfig `yaml:"logging"`
}

// PipelineConfig describes the pipeline program invocation.
type PipelineConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// WorkingDir overrides the default base directory (the directory the
	// valops executable lives in).
	WorkingDir string `yaml:"working_dir"`

	// Timeout bounds one pipeline run. Empty or "0" means unbounded.
	Timeout string `yaml:"timeout"`
}

// LogConfig locates the run log, relative to the base directory unless
// absolute.
type LogConfig struct {
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
}

// DeployConfig holds the fixed gcloud deployment parameters.
type DeployConfig struct {
	Function   string `yaml:"function"`
	Runtime    string `yaml:"runtime"`
	EntryPoint string `yaml:"entry_point"`
	Source     string `yaml:"source"`
	Region     string `yaml:"region"`
	Memory     string `yaml:"memory"`
	Timeout    string `yaml:"timeout"`

	// EnvVars are forwarded verbatim from the caller's environment into
	// --set-env-vars. Unset variables forward as empty values.
	EnvVars []string `yaml:"env_vars"`
}

// ScheduleConfig describes the recurring run slots.
type ScheduleConfig struct {
	// Hours are HH:MM start times, one scheduled task per entry.
	Hours []string `yaml:"hours"`

	// Days are three-letter weekday names (MON..SUN).
	Days []string `yaml:"days"`

	// Command is the command line each scheduled task runs. Empty means
	// "<executable> run".
	Command string `yaml:"command"`
}

// LoggingConfig configures zap diagnostics.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the configuration matching the production scripts.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Command: "python",
			Args:    []string{"main.py"},
			Timeout: "0",
		},

		Log: LogConfig{
			Dir:  "logs",
			File: "ejecucion.log",
		},

		Deploy: DeployConfig{
			Function:   "val-semanal-bot",
			Runtime:    "python312",
			EntryPoint: "webhook",
			Source:     "cloud_function",
			Region:     "us-central1",
			Memory:     "256MB",
			Timeout:    "60s",
			EnvVars:    []string{"TELEGRAM_BOT_TOKEN", "GITHUB_REPO"},
		},

		Schedule: ScheduleConfig{
			Hours: []string{
				"09:00", "10:00", "11:00", "12:00", "13:00",
				"14:00", "15:00", "16:00", "17:00", "18:00",
			},
			Days: []string{"MON", "TUE"},
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a malformed file is an error. Environment overrides are applied
// after the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Locate returns the config path to load: explicit wins, then VALOPS_CONFIG,
// then valops.yaml next to the executable, then valops.yaml in the current
// directory. The returned path may not exist; Load treats that as defaults.
func Locate(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("VALOPS_CONFIG"); p != "" {
		return p
	}
	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), DefaultFileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return DefaultFileName
}

// Save writes the configuration to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if cmd := os.Getenv("VALOPS_PIPELINE_CMD"); cmd != "" {
		c.Pipeline.Command = cmd
	}
	if dir := os.Getenv("VALOPS_PIPELINE_DIR"); dir != "" {
		c.Pipeline.WorkingDir = dir
	}
	if dir := os.Getenv("VALOPS_LOG_DIR"); dir != "" {
		c.Log.Dir = dir
	}
	if os.Getenv("VALOPS_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}

// GetPipelineTimeout returns the pipeline timeout as a duration. Unparseable
// or empty values mean unbounded.
func (c *Config) GetPipelineTimeout() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// LogPath resolves the run log path against baseDir unless already absolute.
func (c *Config) LogPath(baseDir string) string {
	dir := c.Log.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	return filepath.Join(dir, c.Log.File)
}
