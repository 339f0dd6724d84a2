package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the agent's tunables. Flags/env in cmd/agent override the
// optional YAML file.
type Config struct {
	ListenAddr string

	// LogDir holds the per-account rolling logs the agent itself writes.
	LogDir string
	// WorkerLogDir is the shared directory the worker runtime logs into
	// (RuneLite's logs dir). Log discovery scans it.
	WorkerLogDir string
	// RuneLiteHome is the worker home dir; plugin stat drops live under it.
	RuneLiteHome string
	// WorkDir is the launcher's working directory (where the client jars live).
	WorkDir  string
	JavaPath string

	// ServerURL is the controlplane base URL (settings + account lookups).
	ServerURL string

	SettleDelay        time.Duration
	PIDResolveAttempts int
	LivenessInterval   time.Duration
	GraceDelay         time.Duration
	SnapshotInterval   time.Duration
	// WorkerExeName is the process-table name the PID resolver matches.
	WorkerExeName string
}

func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":3001"
	}
	if c.LogDir == "" {
		c.LogDir = "/tmp/bot-logs"
	}
	if c.RuneLiteHome == "" {
		home, _ := os.UserHomeDir()
		c.RuneLiteHome = filepath.Join(home, ".runelite")
	}
	if c.WorkerLogDir == "" {
		c.WorkerLogDir = filepath.Join(c.RuneLiteHome, "logs")
	}
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:8080"
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 3 * time.Second
	}
	if c.PIDResolveAttempts <= 0 {
		c.PIDResolveAttempts = 3
	}
	if c.LivenessInterval <= 0 {
		c.LivenessInterval = 5 * time.Second
	}
	if c.GraceDelay <= 0 {
		c.GraceDelay = 5 * time.Second
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = 2 * time.Second
	}
	if c.WorkerExeName == "" {
		c.WorkerExeName = "java"
	}
}

func (c *Config) Validate() error {
	if c.LogDir == "" {
		return fmt.Errorf("log_dir is required")
	}
	if c.WorkerLogDir == "" {
		return fmt.Errorf("worker_log_dir is required")
	}
	return nil
}

// rawConfig is the YAML shape: durations are strings ("3s") because yaml.v3
// has no native time.Duration decoding.
type rawConfig struct {
	ListenAddr         string `yaml:"listen"`
	LogDir             string `yaml:"log_dir"`
	WorkerLogDir       string `yaml:"worker_log_dir"`
	RuneLiteHome       string `yaml:"runelite_home"`
	WorkDir            string `yaml:"work_dir"`
	JavaPath           string `yaml:"java_path"`
	ServerURL          string `yaml:"server_url"`
	SettleDelay        string `yaml:"settle_delay"`
	PIDResolveAttempts int    `yaml:"pid_resolve_attempts"`
	LivenessInterval   string `yaml:"liveness_interval"`
	GraceDelay         string `yaml:"grace_delay"`
	SnapshotInterval   string `yaml:"snapshot_interval"`
	WorkerExeName      string `yaml:"worker_exe"`
}

func parseOptionalDuration(name, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return d, nil
}

// LoadConfig reads a YAML config file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var raw rawConfig
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		cfg = Config{
			ListenAddr:         raw.ListenAddr,
			LogDir:             raw.LogDir,
			WorkerLogDir:       raw.WorkerLogDir,
			RuneLiteHome:       raw.RuneLiteHome,
			WorkDir:            raw.WorkDir,
			JavaPath:           raw.JavaPath,
			ServerURL:          raw.ServerURL,
			PIDResolveAttempts: raw.PIDResolveAttempts,
			WorkerExeName:      raw.WorkerExeName,
		}
		for _, d := range []struct {
			name string
			raw  string
			dst  *time.Duration
		}{
			{"settle_delay", raw.SettleDelay, &cfg.SettleDelay},
			{"liveness_interval", raw.LivenessInterval, &cfg.LivenessInterval},
			{"grace_delay", raw.GraceDelay, &cfg.GraceDelay},
			{"snapshot_interval", raw.SnapshotInterval, &cfg.SnapshotInterval},
		} {
			v, err := parseOptionalDuration(d.name, d.raw)
			if err != nil {
				return nil, err
			}
			*d.dst = v
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
