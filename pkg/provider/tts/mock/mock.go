// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return canned synthesis results and to verify the text,
// voice, and speed passed to the backend.
//
// Example:
//
//	p := &mock.Provider{
//	    ProviderName: tts.NameGoogle,
//	    Configured:   true,
//	    SynthesizeResult: &tts.SynthesisResult{AudioBytes: []byte("mp3"), DurationMS: 500},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/voxweave/voxweave/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text    string
	VoiceID string
	Speed   float64
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName tts.Name

	// Display is returned by DisplayName. Defaults to the name.
	Display string

	// Configured is returned by IsConfigured.
	Configured bool

	// Caps is returned by Capabilities.
	Caps tts.Capabilities

	// ListVoicesResult and ListVoicesErr are returned by ListVoices.
	ListVoicesResult []tts.Voice
	ListVoicesErr    error

	// SynthesizeResult and SynthesizeErr are returned by Synthesize when
	// SynthesizeFunc is nil.
	SynthesizeResult *tts.SynthesisResult
	SynthesizeErr    error

	// SynthesizeFunc, when set, fully replaces the canned Synthesize
	// behaviour. Calls are still recorded.
	SynthesizeFunc func(ctx context.Context, text, voiceID string, speed float64) (*tts.SynthesisResult, error)

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// ListVoicesCount counts calls to ListVoices.
	ListVoicesCount int
}

// Name returns ProviderName, or "mock" when unset.
func (p *Provider) Name() tts.Name {
	if p.ProviderName == "" {
		return tts.Name("mock")
	}
	return p.ProviderName
}

// DisplayName returns Display, or the name when unset.
func (p *Provider) DisplayName() string {
	if p.Display != "" {
		return p.Display
	}
	return string(p.Name())
}

// IsConfigured returns Configured.
func (p *Provider) IsConfigured() bool {
	return p.Configured
}

// Capabilities returns Caps.
func (p *Provider) Capabilities() tts.Capabilities {
	return p.Caps
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListVoicesCount++
	return p.ListVoicesResult, p.ListVoicesErr
}

// Synthesize records the call and returns the canned result or delegates to
// SynthesizeFunc.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string, speed float64) (*tts.SynthesisResult, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, VoiceID: voiceID, Speed: speed})
	fn := p.SynthesizeFunc
	res, err := p.SynthesizeResult, p.SynthesizeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, voiceID, speed)
	}
	return res, err
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.ListVoicesCount = 0
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
