// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (Google Cloud TTS, Amazon
// Polly, ElevenLabs, OpenAI) and presents a uniform request/response surface:
// one Synthesize call per text chunk, returning encoded MP3 audio plus
// whatever timing data the service can produce. The pipeline inspects
// Capabilities to decide chunk sizing and timing strategy up front.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/voxweave/voxweave/internal/timing"
)

// Name identifies a provider in requests, configuration, and URLs.
type Name string

// Registered provider names.
const (
	NameGoogle     Name = "google"
	NameAmazon     Name = "amazon"
	NameElevenLabs Name = "elevenlabs"
	NameOpenAI     Name = "openai"
)

// Capabilities describes what a provider can do. The pipeline reads these
// once and never probes the remote service for feature support.
type Capabilities struct {
	// SpeedControl reports whether Synthesize honours the speed multiplier.
	SpeedControl bool

	// WordTimings reports whether Synthesize returns per-word timing.
	WordTimings bool

	// MaxChunkChars is the largest text chunk the provider accepts,
	// including safety margin below the service's hard limit.
	MaxChunkChars int

	// MinSpeed and MaxSpeed bound the playback rate multiplier. Synthesize
	// clamps out-of-range requests rather than rejecting them. DefaultSpeed
	// is used when a request leaves speed unset.
	MinSpeed     float64
	MaxSpeed     float64
	DefaultSpeed float64
}

// ClampSpeed forces speed into the provider's supported range.
func (c Capabilities) ClampSpeed(speed float64) float64 {
	if speed < c.MinSpeed {
		return c.MinSpeed
	}
	if speed > c.MaxSpeed {
		return c.MaxSpeed
	}
	return speed
}

// Voice is one entry of a provider's voice catalogue.
type Voice struct {
	// ID is the provider-specific voice identifier passed back to Synthesize.
	ID string `json:"id"`

	// Name is the human-readable voice name.
	Name string `json:"name"`

	// Language is a BCP-47 tag such as "en-US", or empty when the provider
	// does not expose one.
	Language string `json:"language,omitempty"`

	// Gender is the provider-reported voice gender, lowercased, or empty.
	Gender string `json:"gender,omitempty"`
}

// SynthesisResult is the outcome of synthesising one text chunk. Timing
// entries, when present, are relative to the start of this chunk's audio and
// use chunk-local rune offsets.
type SynthesisResult struct {
	AudioBytes      []byte
	DurationMS      int64
	WordTimings     []timing.WordTiming
	SentenceTimings []timing.SentenceTiming
}

// Provider is the abstraction over any TTS backend.
//
// Synthesize must map every failure to exactly one of the provider error
// codes: auth failures, rate limits, or a generic API error. Callers rely on
// the rate-limit code to drive retries.
type Provider interface {
	// Name returns the stable identifier used in requests and URLs.
	Name() Name

	// DisplayName returns the human-readable provider name for UIs.
	DisplayName() string

	// IsConfigured reports whether credentials are present. It must not
	// perform network calls; configuration is checked, not validated.
	IsConfigured() bool

	// Capabilities describes the provider's static feature set.
	Capabilities() Capabilities

	// ListVoices returns the provider's voice catalogue. Implementations
	// cache the catalogue after the first successful fetch.
	ListVoices(ctx context.Context) ([]Voice, error)

	// Synthesize converts one text chunk to MP3 audio at the given voice and
	// speed. Speed outside the capability range is clamped, never rejected.
	Synthesize(ctx context.Context, text, voiceID string, speed float64) (*SynthesisResult, error)
}
