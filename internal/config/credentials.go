package config

import (
	"sync"

	"github.com/voxweave/voxweave/pkg/provider/tts"
)

// Credentials layers session-scoped overrides over the loaded provider
// configuration. Overrides set through the settings API live only in memory;
// they are never written back to the config file or echoed to clients.
//
// Safe for concurrent use.
type Credentials struct {
	mu        sync.RWMutex
	base      ProvidersConfig
	overrides map[string]string
}

// Override keys. One per mutable credential field.
const (
	keyGoogleAPIKey       = "google_api_key"
	keyGoogleCredentials  = "google_credentials_path"
	keyAWSAccessKeyID     = "aws_access_key_id"
	keyAWSSecretAccessKey = "aws_secret_access_key"
	keyAWSRegion          = "aws_region"
	keyElevenLabsAPIKey   = "elevenlabs_api_key"
	keyOpenAIAPIKey       = "openai_api_key"
)

// NewCredentials creates a credential store over the loaded base values.
func NewCredentials(base ProvidersConfig) *Credentials {
	return &Credentials{
		base:      base,
		overrides: make(map[string]string),
	}
}

func (c *Credentials) get(key, base string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v := c.overrides[key]; v != "" {
		return v
	}
	return base
}

func (c *Credentials) GoogleAPIKey() string {
	return c.get(keyGoogleAPIKey, c.base.Google.APIKey)
}

func (c *Credentials) GoogleCredentialsPath() string {
	return c.get(keyGoogleCredentials, c.base.Google.CredentialsPath)
}

func (c *Credentials) AWSAccessKeyID() string {
	return c.get(keyAWSAccessKeyID, c.base.AWS.AccessKeyID)
}

func (c *Credentials) AWSSecretAccessKey() string {
	return c.get(keyAWSSecretAccessKey, c.base.AWS.SecretAccessKey)
}

// AWSRegion never returns empty; the default region applies when nothing is
// configured.
func (c *Credentials) AWSRegion() string {
	if v := c.get(keyAWSRegion, c.base.AWS.Region); v != "" {
		return v
	}
	return DefaultAWSRegion
}

func (c *Credentials) ElevenLabsAPIKey() string {
	return c.get(keyElevenLabsAPIKey, c.base.ElevenLabs.APIKey)
}

func (c *Credentials) OpenAIAPIKey() string {
	return c.get(keyOpenAIAPIKey, c.base.OpenAI.APIKey)
}

// SetProviderKey records a session-scoped API key for a provider. For Amazon
// the key is the access key id; the secret is set separately through
// [Credentials.SetAWSSecretAccessKey]. Unknown providers are ignored.
func (c *Credentials) SetProviderKey(provider tts.Name, key string) {
	var field string
	switch provider {
	case tts.NameGoogle:
		field = keyGoogleAPIKey
	case tts.NameAmazon:
		field = keyAWSAccessKeyID
	case tts.NameElevenLabs:
		field = keyElevenLabsAPIKey
	case tts.NameOpenAI:
		field = keyOpenAIAPIKey
	default:
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[field] = key
}

// SetAWSSecretAccessKey records a session-scoped AWS secret.
func (c *Credentials) SetAWSSecretAccessKey(secret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[keyAWSSecretAccessKey] = secret
}

// SetAWSRegion records a session-scoped AWS region.
func (c *Credentials) SetAWSRegion(region string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[keyAWSRegion] = region
}

// IsProviderConfigured reports whether a provider has enough credentials to
// attempt synthesis. Presence is checked, not validity.
func (c *Credentials) IsProviderConfigured(provider tts.Name) bool {
	switch provider {
	case tts.NameGoogle:
		return c.GoogleAPIKey() != "" || c.GoogleCredentialsPath() != ""
	case tts.NameAmazon:
		return c.AWSAccessKeyID() != "" && c.AWSSecretAccessKey() != ""
	case tts.NameElevenLabs:
		return c.ElevenLabsAPIKey() != ""
	case tts.NameOpenAI:
		return c.OpenAIAPIKey() != ""
	default:
		return false
	}
}
