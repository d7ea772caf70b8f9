// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither environment nor file provide a value.
const (
	DefaultListenAddr      = ":8080"
	DefaultConfigDir       = "/app/config"
	DefaultLogDir          = "/app/logs"
	DefaultStartupGrace    = 500 * time.Millisecond
	DefaultStopTimeout     = 5 * time.Second
	DefaultKillTimeout     = 2 * time.Second
	DefaultMonitorInterval = 2 * time.Second
	DefaultRateLimitRPS    = 50
	DefaultProviderType    = "squeezelite"
	DefaultRedisChannel    = "msp:status"
)

// Loader resolves configuration with precedence ENV > file > defaults.
type Loader struct {
	path    string
	version string
}

// NewLoader creates a loader. An empty path skips the file layer.
func NewLoader(path, version string) *Loader {
	return &Loader{path: path, version: version}
}

// Load resolves the effective configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{
		Version:          l.version,
		LogLevel:         "info",
		LogService:       "msp",
		ConfigDir:        DefaultConfigDir,
		LogDir:           DefaultLogDir,
		ListenAddr:       DefaultListenAddr,
		RateLimitEnabled: true,
		RateLimitRPS:     DefaultRateLimitRPS,
		StartupGrace:     DefaultStartupGrace,
		StopTimeout:      DefaultStopTimeout,
		KillTimeout:      DefaultKillTimeout,
		MonitorInterval:  DefaultMonitorInterval,
		RedisChannel:     DefaultRedisChannel,
		DefaultProvider:  DefaultProviderType,
	}

	if l.path != "" {
		fileCfg, err := LoadFileConfig(l.path)
		if err != nil {
			return AppConfig{}, err
		}
		if fileCfg != nil {
			mergeFile(&cfg, fileCfg)
		}
	}

	mergeEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// LoadFileConfig reads and decodes a YAML config file.
// A missing file is not an error; it returns (nil, nil) so env and defaults apply.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var fileCfg FileConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fileCfg, nil
}

func mergeFile(cfg *AppConfig, f *FileConfig) {
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.ConfigDir != "" {
		cfg.ConfigDir = f.ConfigDir
	}
	if f.LogDir != "" {
		cfg.LogDir = f.LogDir
	}
	if f.API.ListenAddr != "" {
		cfg.ListenAddr = f.API.ListenAddr
	}
	if f.API.RateLimitEnabled != nil {
		cfg.RateLimitEnabled = *f.API.RateLimitEnabled
	}
	if f.API.RateLimitRPS != nil {
		cfg.RateLimitRPS = *f.API.RateLimitRPS
	}
	if f.Process.StartupGraceMS != nil {
		cfg.StartupGrace = time.Duration(*f.Process.StartupGraceMS) * time.Millisecond
	}
	if f.Process.StopTimeoutMS != nil {
		cfg.StopTimeout = time.Duration(*f.Process.StopTimeoutMS) * time.Millisecond
	}
	if f.Process.KillTimeoutMS != nil {
		cfg.KillTimeout = time.Duration(*f.Process.KillTimeoutMS) * time.Millisecond
	}
	if f.Monitor.IntervalMS != nil {
		cfg.MonitorInterval = time.Duration(*f.Monitor.IntervalMS) * time.Millisecond
	}
	if f.Redis.Addr != "" {
		cfg.RedisAddr = f.Redis.Addr
	}
	if f.Redis.Channel != "" {
		cfg.RedisChannel = f.Redis.Channel
	}
}

func mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString("MSP_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("MSP_LOG_SERVICE", cfg.LogService)
	cfg.ConfigDir = ParseString("MSP_CONFIG_PATH", cfg.ConfigDir)
	cfg.LogDir = ParseString("MSP_LOG_PATH", cfg.LogDir)
	cfg.ListenAddr = ParseString("MSP_LISTEN", cfg.ListenAddr)
	cfg.RateLimitEnabled = ParseBool("MSP_RATE_LIMIT_ENABLED", cfg.RateLimitEnabled)
	cfg.RateLimitRPS = ParseInt("MSP_RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.StartupGrace = ParseDuration("MSP_STARTUP_GRACE", cfg.StartupGrace)
	cfg.StopTimeout = ParseDuration("MSP_STOP_TIMEOUT", cfg.StopTimeout)
	cfg.KillTimeout = ParseDuration("MSP_KILL_TIMEOUT", cfg.KillTimeout)
	cfg.MonitorInterval = ParseDuration("MSP_MONITOR_INTERVAL", cfg.MonitorInterval)
	cfg.RedisAddr = ParseString("MSP_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisChannel = ParseString("MSP_REDIS_CHANNEL", cfg.RedisChannel)
	cfg.DefaultProvider = ParseString("MSP_DEFAULT_PROVIDER", cfg.DefaultProvider)
}
