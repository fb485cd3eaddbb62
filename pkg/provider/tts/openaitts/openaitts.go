// Package openaitts implements the tts.Provider interface for the OpenAI
// speech API.
//
// OpenAI's endpoint returns no timing information of any kind, so this
// provider only produces audio; timing is estimated downstream. The voice
// catalogue is a fixed list because the API has no listing endpoint.
package openaitts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxweave/voxweave/internal/apperr"
	"github.com/voxweave/voxweave/pkg/provider/tts"
)

const requestTimeout = 60 * time.Second

// fixedVoices is the catalogue OpenAI documents; there is no API to list it.
var fixedVoices = []tts.Voice{
	{ID: "alloy", Name: "Alloy", Language: "en-US"},
	{ID: "echo", Name: "Echo", Language: "en-US"},
	{ID: "fable", Name: "Fable", Language: "en-US"},
	{ID: "onyx", Name: "Onyx", Language: "en-US"},
	{ID: "nova", Name: "Nova", Language: "en-US"},
	{ID: "shimmer", Name: "Shimmer", Language: "en-US"},
}

// Credentials is the slice of the credential store this provider reads.
type Credentials interface {
	OpenAIAPIKey() string
}

// Provider talks to the OpenAI speech API through the official SDK.
type Provider struct {
	creds   Credentials
	baseURL string
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint (for testing).
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// New creates an OpenAI TTS provider reading credentials from creds.
func New(creds Credentials, opts ...Option) *Provider {
	p := &Provider{creds: creds}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() tts.Name { return tts.NameOpenAI }

func (p *Provider) DisplayName() string { return "OpenAI TTS" }

func (p *Provider) IsConfigured() bool {
	return p.creds.OpenAIAPIKey() != ""
}

func (p *Provider) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		SpeedControl:  true,
		WordTimings:   false,
		MaxChunkChars: 4000,
		MinSpeed:      0.25,
		MaxSpeed:      4.0,
		DefaultSpeed:  1.0,
	}
}

// ListVoices returns the fixed catalogue.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	voices := make([]tts.Voice, len(fixedVoices))
	copy(voices, fixedVoices)
	return voices, nil
}

// client builds an SDK client with the current key, so runtime credential
// changes take effect without restarting.
func (p *Provider) client() oai.Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(p.creds.OpenAIAPIKey()),
		option.WithHTTPClient(&http.Client{Timeout: requestTimeout}),
		// Rate-limit retries are the pipeline's job, with its own backoff.
		option.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	return oai.NewClient(reqOpts...)
}

// Synthesize renders one chunk as MP3. No timing data is available.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string, speed float64) (*tts.SynthesisResult, error) {
	speed = p.Capabilities().ClampSpeed(speed)

	client := p.client()
	resp, err := client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModelTTS1,
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voiceID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
		Speed:          oai.Float(speed),
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.API("openai", err.Error())
	}
	if len(audio) == 0 {
		return nil, apperr.API("openai", "empty audio response")
	}

	return &tts.SynthesisResult{AudioBytes: audio}, nil
}

// mapOpenAIError translates SDK failures into the provider error taxonomy.
func mapOpenAIError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return apperr.Auth("openai", "")
		case http.StatusTooManyRequests:
			return apperr.RateLimit("openai")
		default:
			return apperr.API("openai", apiErr.Message)
		}
	}
	return apperr.API("openai", err.Error())
}

var _ tts.Provider = (*Provider)(nil)
