// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version    string
	LogLevel   string
	LogService string

	// ConfigDir holds players.yaml; LogDir receives per-player process logs.
	ConfigDir string
	LogDir    string

	ListenAddr       string
	RateLimitEnabled bool
	RateLimitRPS     int

	// Supervisor timing budget
	StartupGrace time.Duration
	StopTimeout  time.Duration
	KillTimeout  time.Duration

	MonitorInterval time.Duration

	// Optional Redis status publishing
	RedisAddr    string
	RedisChannel string

	// Provider assumed when a stored player carries no provider field.
	DefaultProvider string
}

// FileConfig represents the YAML configuration structure.
type FileConfig struct {
	Version   string `yaml:"version,omitempty"`
	LogLevel  string `yaml:"logLevel,omitempty"`
	ConfigDir string `yaml:"configDir,omitempty"`
	LogDir    string `yaml:"logDir,omitempty"`

	API     APIConfig     `yaml:"api,omitempty"`
	Process ProcessConfig `yaml:"process,omitempty"`
	Monitor MonitorConfig `yaml:"monitor,omitempty"`
	Redis   RedisConfig   `yaml:"redis,omitempty"`
}

// APIConfig holds HTTP transport settings.
type APIConfig struct {
	ListenAddr       string `yaml:"listenAddr,omitempty"`
	RateLimitEnabled *bool  `yaml:"rateLimitEnabled,omitempty"`
	RateLimitRPS     *int   `yaml:"rateLimitRps,omitempty"`
}

// ProcessConfig holds the supervisor timing budget in milliseconds.
type ProcessConfig struct {
	StartupGraceMS *int `yaml:"startupGraceMs,omitempty"`
	StopTimeoutMS  *int `yaml:"stopTimeoutMs,omitempty"`
	KillTimeoutMS  *int `yaml:"killTimeoutMs,omitempty"`
}

// MonitorConfig holds status poller settings.
type MonitorConfig struct {
	IntervalMS *int `yaml:"intervalMs,omitempty"`
}

// RedisConfig holds optional status publishing settings.
type RedisConfig struct {
	Addr    string `yaml:"addr,omitempty"`
	Channel string `yaml:"channel,omitempty"`
}
