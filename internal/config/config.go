package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// MinPollInterval is the floor for the monitor poll interval. Scanning
// every window-server client more often than this costs more than it
// detects.
const MinPollInterval = 500 * time.Millisecond

type Config struct {
	Monitor  MonitorConfig  `yaml:"monitor"`
	Diagnose DiagnoseConfig `yaml:"diagnose"`
	Serve    ServeConfig    `yaml:"serve"`
}

type MonitorConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	ForegroundOnly bool          `yaml:"foreground_only"`
	PIDs           []int32       `yaml:"pids"`
	NameFilter     string        `yaml:"name_filter"`
}

type DiagnoseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Sample           bool          `yaml:"sample"`
	Spindump         bool          `yaml:"spindump"`
	SystemWide       bool          `yaml:"system_wide"`
	SampleDuration   time.Duration `yaml:"sample_duration"`
	SpindumpDuration time.Duration `yaml:"spindump_duration"`
	SpindumpInterval time.Duration `yaml:"spindump_interval"`
	Timeout          time.Duration `yaml:"timeout"`
	OutputDir        string        `yaml:"output_dir"`
}

type ServeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			PollInterval: 2 * time.Second,
		},
		Diagnose: DiagnoseConfig{
			Sample:           true,
			SampleDuration:   10 * time.Second,
			SpindumpDuration: 10 * time.Second,
			SpindumpInterval: 10 * time.Millisecond,
			Timeout:          2 * time.Minute,
		},
		Serve: ServeConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
	}
}

// Load reads a YAML config file over the defaults, then applies
// environment overrides and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides config fields from HUNG_DETECT_* environment
// variables. Values typically come from a .env file loaded in main.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("HUNG_DETECT_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Monitor.PollInterval = d
		}
	}
	if v := os.Getenv("HUNG_DETECT_OUTPUT_DIR"); v != "" {
		c.Diagnose.OutputDir = v
	}
	if v := os.Getenv("HUNG_DETECT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Serve.Port = p
		}
	}
}

// Validate clamps and checks the configuration. It is called by Load and
// again in main after flag overrides.
func (c *Config) Validate() error {
	if c.Monitor.PollInterval < MinPollInterval {
		c.Monitor.PollInterval = MinPollInterval
	}
	if c.Diagnose.SampleDuration <= 0 {
		return fmt.Errorf("diagnose.sample_duration must be positive, got %s", c.Diagnose.SampleDuration)
	}
	if c.Diagnose.SpindumpDuration <= 0 {
		return fmt.Errorf("diagnose.spindump_duration must be positive, got %s", c.Diagnose.SpindumpDuration)
	}
	if c.Diagnose.SpindumpInterval <= 0 {
		return fmt.Errorf("diagnose.spindump_interval must be positive, got %s", c.Diagnose.SpindumpInterval)
	}
	if c.Diagnose.Timeout <= 0 {
		return fmt.Errorf("diagnose.timeout must be positive, got %s", c.Diagnose.Timeout)
	}
	if c.Serve.Port < 1 || c.Serve.Port > 65535 {
		return fmt.Errorf("serve.port out of range: %d", c.Serve.Port)
	}
	return nil
}

// DiagnosisRequiresRoot reports whether the configured diagnosis level
// needs euid 0. spindump refuses to run unprivileged, so configuring it
// without root is a startup error rather than a guaranteed per-job
// failure later.
func (c *Config) DiagnosisRequiresRoot() bool {
	return c.Diagnose.Enabled && (c.Diagnose.Spindump || c.Diagnose.SystemWide)
}
