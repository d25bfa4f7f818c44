// Package config loads the management server configuration from YAML.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Execution ExecutionConfig `yaml:"execution"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	PathPrefix string `yaml:"path_prefix"`
	// RateLimit is requests per minute per client IP. Negative disables it.
	RateLimit int `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig guards the API with a static bearer token. An empty token
// disables authentication.
type AuthConfig struct {
	Token string `yaml:"token"`
}

type ExecutionConfig struct {
	Shell          string   `yaml:"shell"`
	ShellArgs      []string `yaml:"shell_args"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MaxOutputSize  int      `yaml:"max_output_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Timeout returns the job timeout.
func (c *ExecutionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IsEnabled reports whether the metrics endpoint is served. Metrics are on
// unless explicitly disabled.
func (c *MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.PathPrefix == "" {
		cfg.Server.PathPrefix = "/manage"
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 300
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/deploy-manager.db"
	}
	if cfg.Execution.Shell == "" {
		cfg.Execution.Shell = "/bin/bash"
	}
	if len(cfg.Execution.ShellArgs) == 0 {
		cfg.Execution.ShellArgs = []string{"-l", "-c"}
	}
	if cfg.Execution.TimeoutSeconds == 0 {
		cfg.Execution.TimeoutSeconds = 1800
	}
	if cfg.Execution.MaxOutputSize == 0 {
		cfg.Execution.MaxOutputSize = 10485760
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
