// Package config provides configuration loading from a YAML file and
// environment variables. Environment variables override file values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SchedulerConfig holds paths and flags for the scheduler CLI binaries.
type SchedulerConfig struct {
	SqueuePath  string `yaml:"squeuePath"`
	ScancelPath string `yaml:"scancelPath"`
}

// WaitConfig holds the default polling policy for waits.
type WaitConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	MaxInterval  time.Duration `yaml:"maxInterval"` // cap for poll backoff; equal to PollInterval disables growth
	Timeout      time.Duration `yaml:"timeout"`
}

// NotifierConfig tunes the terminal-state callback notifier.
type NotifierConfig struct {
	Workers     int           `yaml:"workers"`
	BufferSize  int           `yaml:"bufferSize"`
	HTTPTimeout time.Duration `yaml:"httpTimeout"`
}

// Config holds configuration for the gateway service and the CLI.
type Config struct {
	Port              string          `yaml:"port"`
	MetricsPort       string          `yaml:"metricsPort"`
	APIKeyFile        string          `yaml:"apiKeyFile"`
	ShutdownDrainWait time.Duration   `yaml:"shutdownDrainWait"` // time to wait for load balancer to drain (0 to skip)
	BaseDir           string          `yaml:"baseDir"`           // root under which job working directories live
	Scheduler         SchedulerConfig `yaml:"scheduler"`
	Wait              WaitConfig      `yaml:"wait"`
	Notifier          NotifierConfig  `yaml:"notifier"`

	// APIKey is resolved from APIKeyFile at load time, never stored in the file.
	APIKey string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:              "8080",
		MetricsPort:       "9090",
		ShutdownDrainWait: 5 * time.Second,
		BaseDir:           "slurm_jobs",
		Scheduler: SchedulerConfig{
			SqueuePath:  "squeue",
			ScancelPath: "scancel",
		},
		Wait: WaitConfig{
			PollInterval: 5 * time.Second,
			Timeout:      24 * time.Hour,
		},
		Notifier: NotifierConfig{
			Workers:     4,
			BufferSize:  256,
			HTTPTimeout: 10 * time.Second,
		},
	}
}

// Load reads the config file at path (if non-empty), then applies environment
// overrides. A missing file with an empty path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.Wait.MaxInterval < cfg.Wait.PollInterval {
		cfg.Wait.MaxInterval = cfg.Wait.PollInterval
	}

	cfg.APIKey = GetSecretFile(cfg.APIKeyFile)
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = GetEnv("PORT", c.Port)
	c.MetricsPort = GetEnv("METRICS_PORT", c.MetricsPort)
	c.APIKeyFile = GetEnv("API_KEY_FILE", c.APIKeyFile)
	c.ShutdownDrainWait = GetDurationEnv("SHUTDOWN_DRAIN_WAIT", c.ShutdownDrainWait)
	c.BaseDir = GetEnv("JOBS_BASE_DIR", c.BaseDir)
	c.Scheduler.SqueuePath = GetEnv("SQUEUE_PATH", c.Scheduler.SqueuePath)
	c.Scheduler.ScancelPath = GetEnv("SCANCEL_PATH", c.Scheduler.ScancelPath)
	c.Wait.PollInterval = GetDurationEnv("WAIT_POLL_INTERVAL", c.Wait.PollInterval)
	c.Wait.MaxInterval = GetDurationEnv("WAIT_MAX_INTERVAL", c.Wait.MaxInterval)
	c.Wait.Timeout = GetDurationEnv("WAIT_TIMEOUT", c.Wait.Timeout)
	c.Notifier.Workers = GetIntEnv("NOTIFIER_WORKERS", c.Notifier.Workers)
	c.Notifier.BufferSize = GetIntEnv("NOTIFIER_BUFFER_SIZE", c.Notifier.BufferSize)
	c.Notifier.HTTPTimeout = GetDurationEnv("NOTIFIER_HTTP_TIMEOUT", c.Notifier.HTTPTimeout)
}
