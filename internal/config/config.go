// Package config provides the configuration schema, loader, and the runtime
// credential store for the Voxweave server.
package config

import (
	"errors"
	"fmt"
)

// LogLevel controls log verbosity for the Voxweave server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler kind.
type LogFormat string

const (
	LogJSON LogFormat = "json"
	LogText LogFormat = "text"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogJSON || f == LogText
}

// Config is the root configuration structure for Voxweave.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., "127.0.0.1:8000").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects json or text log output.
	LogFormat LogFormat `yaml:"log_format"`
}

// AudioConfig controls stitching and on-disk audio storage.
type AudioConfig struct {
	// StorageDir is where generated MP3 files are written.
	StorageDir string `yaml:"storage_dir"`

	// SilenceBetweenMS is the gap inserted between chunks, in milliseconds.
	SilenceBetweenMS int64 `yaml:"silence_between_ms"`

	// CrossfadeMS, when positive, joins chunks with an overlap instead of a
	// silence gap. Word timing assumes hard joins, so leave this at zero
	// unless timing accuracy does not matter.
	CrossfadeMS int64 `yaml:"crossfade_ms"`

	// RetentionHours is how long generated files are kept before the
	// sweeper removes them.
	RetentionHours int `yaml:"retention_hours"`
}

// JobsConfig controls the in-memory job store.
type JobsConfig struct {
	// RetentionHours is how long finished job records are kept.
	RetentionHours int `yaml:"retention_hours"`
}

// ProvidersConfig holds per-provider credentials. Environment variables
// override these values; the settings API overrides both for the session.
type ProvidersConfig struct {
	Google     GoogleConfig     `yaml:"google"`
	AWS        AWSConfig        `yaml:"aws"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
}

// GoogleConfig configures Google Cloud TTS authentication. APIKey takes
// priority over CredentialsPath when both are set.
type GoogleConfig struct {
	APIKey          string `yaml:"api_key"`
	CredentialsPath string `yaml:"credentials_path"`
}

// AWSConfig configures Amazon Polly authentication.
type AWSConfig struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Region          string `yaml:"region"`
}

// ElevenLabsConfig configures ElevenLabs authentication.
type ElevenLabsConfig struct {
	APIKey string `yaml:"api_key"`
}

// OpenAIConfig configures OpenAI authentication.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// Defaults applied by [Load] before validation.
const (
	DefaultListenAddr       = "127.0.0.1:8000"
	DefaultStorageDir       = "/tmp/voxweave-audio"
	DefaultSilenceBetweenMS = 100
	DefaultRetentionHours   = 24
	DefaultAWSRegion        = "us-east-1"
)

// ApplyDefaults fills zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = LogJSON
	}
	if c.Audio.StorageDir == "" {
		c.Audio.StorageDir = DefaultStorageDir
	}
	if c.Audio.SilenceBetweenMS == 0 {
		c.Audio.SilenceBetweenMS = DefaultSilenceBetweenMS
	}
	if c.Audio.RetentionHours == 0 {
		c.Audio.RetentionHours = DefaultRetentionHours
	}
	if c.Jobs.RetentionHours == 0 {
		c.Jobs.RetentionHours = DefaultRetentionHours
	}
	if c.Providers.AWS.Region == "" {
		c.Providers.AWS.Region = DefaultAWSRegion
	}
}

// Validate checks that cfg contains a coherent set of values.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: json, text", cfg.Server.LogFormat))
	}
	if cfg.Audio.SilenceBetweenMS < 0 {
		errs = append(errs, fmt.Errorf("audio.silence_between_ms %d must not be negative", cfg.Audio.SilenceBetweenMS))
	}
	if cfg.Audio.CrossfadeMS < 0 {
		errs = append(errs, fmt.Errorf("audio.crossfade_ms %d must not be negative", cfg.Audio.CrossfadeMS))
	}
	if cfg.Audio.RetentionHours < 0 {
		errs = append(errs, fmt.Errorf("audio.retention_hours %d must not be negative", cfg.Audio.RetentionHours))
	}
	if cfg.Jobs.RetentionHours < 0 {
		errs = append(errs, fmt.Errorf("jobs.retention_hours %d must not be negative", cfg.Jobs.RetentionHours))
	}

	return errors.Join(errs...)
}
