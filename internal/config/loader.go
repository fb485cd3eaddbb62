package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file configuration. These match the
// conventional names each vendor's own tooling reads.
const (
	envGoogleCredentials = "GOOGLE_APPLICATION_CREDENTIALS"
	envGoogleAPIKey      = "GOOGLE_API_KEY"
	envAWSAccessKeyID    = "AWS_ACCESS_KEY_ID"
	envAWSSecretKey      = "AWS_SECRET_ACCESS_KEY"
	envAWSRegion         = "AWS_REGION"
	envElevenLabsAPIKey  = "ELEVENLABS_API_KEY"
	envOpenAIAPIKey      = "OPENAI_API_KEY"
)

// Load reads the YAML configuration file at path, applies environment
// overrides and defaults, and validates the result. A missing file is not an
// error; the server then runs on defaults and environment variables alone.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := &Config{}
		ApplyEnv(cfg, os.Getenv)
		cfg.ApplyDefaults()
		return cfg, Validate(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and defaults, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg, os.Getenv)
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays credential environment variables onto cfg. getenv is a
// parameter so tests can inject an environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Providers.Google.CredentialsPath, envGoogleCredentials)
	set(&cfg.Providers.Google.APIKey, envGoogleAPIKey)
	set(&cfg.Providers.AWS.AccessKeyID, envAWSAccessKeyID)
	set(&cfg.Providers.AWS.SecretAccessKey, envAWSSecretKey)
	set(&cfg.Providers.AWS.Region, envAWSRegion)
	set(&cfg.Providers.ElevenLabs.APIKey, envElevenLabsAPIKey)
	set(&cfg.Providers.OpenAI.APIKey, envOpenAIAPIKey)
}
