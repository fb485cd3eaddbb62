// Package elevenlabs implements the tts.Provider interface for the
// ElevenLabs speech API.
//
// Synthesis uses the with-timestamps endpoint, which returns character-level
// alignment; characters are regrouped into words here so the rest of the
// pipeline only ever sees word timing. Chunk duration is taken from the last
// aligned character rather than probing the audio.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/voxweave/voxweave/internal/apperr"
	"github.com/voxweave/voxweave/internal/timing"
	"github.com/voxweave/voxweave/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	modelID        = "eleven_monolingual_v1"
	requestTimeout = 60 * time.Second
)

// Credentials is the slice of the credential store this provider reads.
type Credentials interface {
	ElevenLabsAPIKey() string
}

// Provider talks to the ElevenLabs REST API.
type Provider struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	voicesCache []tts.Voice
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

// New creates an ElevenLabs provider reading credentials from creds.
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

func (p *Provider) Name() tts.Name { return tts.NameElevenLabs }

func (p *Provider) DisplayName() string { return "ElevenLabs" }

func (p *Provider) IsConfigured() bool {
	return p.creds.ElevenLabsAPIKey() != ""
}

func (p *Provider) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		SpeedControl:  true,
		WordTimings:   true,
		MaxChunkChars: 4500,
		MinSpeed:      0.7,
		MaxSpeed:      1.2,
		DefaultSpeed:  1.0,
	}
}

type voicesResponse struct {
	Voices []struct {
		VoiceID string            `json:"voice_id"`
		Name    string            `json:"name"`
		Labels  map[string]string `json:"labels"`
	} `json:"voices"`
}

// ListVoices fetches the voice catalogue, cached after the first success.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	cached := p.voicesCache
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	p.setHeaders(req)

	body, err := p.do(req)
	if err != nil {
		return nil, err
	}

	var resp voicesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperr.API("elevenlabs", "decode voices response: "+err.Error())
	}

	voices := make([]tts.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		name := v.Name
		if name == "" {
			name = v.VoiceID
		}
		voices = append(voices, tts.Voice{
			ID:       v.VoiceID,
			Name:     name,
			Language: v.Labels["language"],
			Gender:   strings.ToLower(v.Labels["gender"]),
		})
	}

	p.mu.Lock()
	p.voicesCache = voices
	p.mu.Unlock()
	return voices, nil
}

type synthesizeRequest struct {
	Text          string `json:"text"`
	ModelID       string `json:"model_id"`
	VoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
		Speed           float64 `json:"speed"`
	} `json:"voice_settings"`
}

type synthesizeResponse struct {
	AudioBase64 string    `json:"audio_base64"`
	Alignment   alignment `json:"alignment"`
}

type alignment struct {
	Characters    []string  `json:"characters"`
	CharStartSecs []float64 `json:"character_start_times_seconds"`
	CharEndSecs   []float64 `json:"character_end_times_seconds"`
}

// Synthesize renders one chunk with word timing derived from character
// alignment.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string, speed float64) (*tts.SynthesisResult, error) {
	speed = p.Capabilities().ClampSpeed(speed)

	var reqBody synthesizeRequest
	reqBody.Text = text
	reqBody.ModelID = modelID
	reqBody.VoiceSettings.Stability = 0.5
	reqBody.VoiceSettings.SimilarityBoost = 0.5
	reqBody.VoiceSettings.Speed = speed

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/with-timestamps", p.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	p.setHeaders(req)

	body, err := p.do(req)
	if err != nil {
		return nil, err
	}

	var resp synthesizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperr.API("elevenlabs", "decode synthesize response: "+err.Error())
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return nil, apperr.API("elevenlabs", "invalid base64 audio")
	}
	if len(audio) == 0 {
		return nil, apperr.API("elevenlabs", "empty audio content")
	}

	words := groupAlignment(resp.Alignment)

	var durationMS int64
	for _, w := range words {
		if w.EndMS > durationMS {
			durationMS = w.EndMS
		}
	}

	return &tts.SynthesisResult{
		AudioBytes:  audio,
		DurationMS:  durationMS,
		WordTimings: words,
	}, nil
}

// groupAlignment folds character-level alignment into word timings, treating
// spaces and newlines as word separators. Character offsets count alignment
// entries, matching rune offsets in the submitted text.
func groupAlignment(a alignment) []timing.WordTiming {
	n := len(a.Characters)
	if n == 0 || len(a.CharStartSecs) == 0 || len(a.CharEndSecs) == 0 {
		return nil
	}
	if len(a.CharStartSecs) < n {
		n = len(a.CharStartSecs)
	}
	if len(a.CharEndSecs) < n {
		n = len(a.CharEndSecs)
	}

	var words []timing.WordTiming
	var current strings.Builder
	var startSec, endSec float64
	startChar := 0
	offset := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		words = append(words, timing.WordTiming{
			Word:      current.String(),
			StartMS:   int64(startSec * 1000),
			EndMS:     int64(endSec * 1000),
			StartChar: startChar,
			EndChar:   startChar + len([]rune(current.String())),
		})
		current.Reset()
	}

	for i := 0; i < n; i++ {
		ch := a.Characters[i]
		if ch == " " || ch == "\n" {
			flush()
			offset++
			continue
		}
		if current.Len() == 0 {
			startSec = a.CharStartSecs[i]
			startChar = offset
		}
		current.WriteString(ch)
		endSec = a.CharEndSecs[i]
		offset++
	}
	flush()
	return words
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("xi-api-key", p.creds.ElevenLabsAPIKey())
	req.Header.Set("Content-Type", "application/json")
}

// do sends the request and maps failure statuses to the provider error
// taxonomy.
func (p *Provider) do(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.API("elevenlabs", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.API("elevenlabs", err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperr.Auth("elevenlabs", "")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperr.RateLimit("elevenlabs")
	case resp.StatusCode != http.StatusOK:
		return nil, apperr.API("elevenlabs", string(body))
	}
	return body, nil
}

var _ tts.Provider = (*Provider)(nil)
