// Package googletts implements the tts.Provider interface for Google Cloud
// Text-to-Speech.
//
// Two authentication modes are supported: an API key appended as a query
// parameter, or a service-account JSON file whose tokens are minted through
// golang.org/x/oauth2. The API key takes priority when both are configured.
// The REST synthesis path does not return time points, so word timing is
// produced only in name; the pipeline falls back to estimation when a chunk
// comes back without timing data.
package googletts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/voxweave/voxweave/internal/apperr"
	"github.com/voxweave/voxweave/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://texttospeech.googleapis.com/v1"
	tokenScope     = "https://www.googleapis.com/auth/cloud-platform"
	requestTimeout = 60 * time.Second
)

// Credentials is the slice of the credential store this provider reads.
type Credentials interface {
	GoogleAPIKey() string
	GoogleCredentialsPath() string
}

// Provider talks to the Google Cloud TTS REST API.
type Provider struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	voicesCache []tts.Voice
	tokenSource oauth2.TokenSource
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint (for testing).
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a Google Cloud TTS provider reading credentials from creds.
func New(creds Credentials, opts ...Option) *Provider {
	p := &Provider{
		creds:      creds,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() tts.Name { return tts.NameGoogle }

func (p *Provider) DisplayName() string { return "Google Cloud TTS" }

// IsConfigured reports whether an API key or a service-account file is set.
func (p *Provider) IsConfigured() bool {
	return p.creds.GoogleAPIKey() != "" || p.creds.GoogleCredentialsPath() != ""
}

func (p *Provider) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		SpeedControl:  true,
		WordTimings:   true,
		MaxChunkChars: 4500,
		MinSpeed:      0.25,
		MaxSpeed:      4.0,
		DefaultSpeed:  1.0,
	}
}

// voicesResponse mirrors the GET /voices payload.
type voicesResponse struct {
	Voices []struct {
		Name          string   `json:"name"`
		LanguageCodes []string `json:"languageCodes"`
		SSMLGender    string   `json:"ssmlGender"`
	} `json:"voices"`
}

// ListVoices fetches the voice catalogue, one entry per (voice, language)
// pair. The catalogue is cached after the first successful fetch.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	cached := p.voicesCache
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	body, err := p.doRequest(ctx, http.MethodGet, "/voices", nil)
	if err != nil {
		return nil, err
	}

	voices, err := parseVoicesResponse(body)
	if err != nil {
		return nil, apperr.API("google", err.Error())
	}

	p.mu.Lock()
	p.voicesCache = voices
	p.mu.Unlock()
	return voices, nil
}

// parseVoicesResponse flattens the catalogue payload into tts.Voice entries.
func parseVoicesResponse(body []byte) ([]tts.Voice, error) {
	var resp voicesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode voices response: %w", err)
	}

	var voices []tts.Voice
	for _, v := range resp.Voices {
		short := v.Name
		if idx := strings.LastIndex(v.Name, "-"); idx >= 0 {
			short = v.Name[idx+1:]
		}
		for _, lang := range v.LanguageCodes {
			voices = append(voices, tts.Voice{
				ID:       v.Name,
				Name:     short,
				Language: lang,
				Gender:   strings.ToLower(v.SSMLGender),
			})
		}
	}
	return voices, nil
}

// synthesizeRequest mirrors the POST /text:synthesize payload.
type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize renders one chunk as MP3. Duration is left at zero; the caller
// probes it from the audio.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string, speed float64) (*tts.SynthesisResult, error) {
	speed = p.Capabilities().ClampSpeed(speed)

	var req synthesizeRequest
	req.Input.Text = text
	req.Voice.LanguageCode = languageCodeFromVoiceID(voiceID)
	req.Voice.Name = voiceID
	req.AudioConfig.AudioEncoding = "MP3"
	req.AudioConfig.SpeakingRate = speed

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	body, err := p.doRequest(ctx, http.MethodPost, "/text:synthesize", payload)
	if err != nil {
		return nil, err
	}

	var resp synthesizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperr.API("google", "decode synthesize response: "+err.Error())
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, apperr.API("google", "invalid base64 audio content")
	}
	if len(audio) == 0 {
		return nil, apperr.API("google", "empty audio content")
	}

	return &tts.SynthesisResult{AudioBytes: audio}, nil
}

// languageCodeFromVoiceID extracts "en-US" from "en-US-Neural2-A".
func languageCodeFromVoiceID(voiceID string) string {
	parts := strings.SplitN(voiceID, "-", 3)
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}

// doRequest sends one API call with whichever auth mode is configured and
// maps failure statuses to the provider error taxonomy.
func (p *Provider) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	url := p.baseURL + path

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if key := p.creds.GoogleAPIKey(); key != "" {
		q := req.URL.Query()
		q.Set("key", key)
		req.URL.RawQuery = q.Encode()
	} else {
		token, err := p.bearerToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.API("google", err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.API("google", err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperr.Auth("google", string(data))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperr.RateLimit("google")
	case resp.StatusCode != http.StatusOK:
		return nil, apperr.API("google", string(data))
	}
	return data, nil
}

// bearerToken mints an access token from the service-account file, reusing
// the token source across calls.
func (p *Provider) bearerToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	ts := p.tokenSource
	p.mu.Unlock()

	if ts == nil {
		path := p.creds.GoogleCredentialsPath()
		data, err := os.ReadFile(path)
		if err != nil {
			return "", apperr.Auth("google", fmt.Sprintf("read service account file: %v", err))
		}
		creds, err := google.CredentialsFromJSON(ctx, data, tokenScope)
		if err != nil {
			return "", apperr.Auth("google", fmt.Sprintf("parse service account file: %v", err))
		}
		ts = creds.TokenSource
		p.mu.Lock()
		p.tokenSource = ts
		p.mu.Unlock()
	}

	token, err := ts.Token()
	if err != nil {
		return "", apperr.Auth("google", err.Error())
	}
	return token.AccessToken, nil
}

var _ tts.Provider = (*Provider)(nil)
