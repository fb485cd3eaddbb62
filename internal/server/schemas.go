package server

import (
	"github.com/voxweave/voxweave/internal/timing"
	"github.com/voxweave/voxweave/pkg/provider/tts"
)

// errorEnvelope is the uniform error response body.
type errorEnvelope struct {
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

type capabilitiesInfo struct {
	SupportsSpeedControl bool    `json:"supports_speed_control"`
	SupportsWordTiming   bool    `json:"supports_word_timing"`
	MinSpeed             float64 `json:"min_speed"`
	MaxSpeed             float64 `json:"max_speed"`
	DefaultSpeed         float64 `json:"default_speed"`
	MaxChunkChars        int     `json:"max_chunk_chars"`
}

type providerInfo struct {
	Name         string           `json:"name"`
	DisplayName  string           `json:"display_name"`
	IsConfigured bool             `json:"is_configured"`
	Capabilities capabilitiesInfo `json:"capabilities"`
}

type providersResponse struct {
	Providers []providerInfo `json:"providers"`
}

type voicesRequest struct {
	Provider string `json:"provider"`
}

type voicesResponse struct {
	Provider string      `json:"provider"`
	Voices   []tts.Voice `json:"voices"`
}

type generateRequest struct {
	Provider string  `json:"provider"`
	VoiceID  string  `json:"voice_id"`
	Text     string  `json:"text"`
	Speed    float64 `json:"speed"`
}

type generateResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type statusResponse struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	Progress        float64 `json:"progress"`
	TotalChunks     int     `json:"total_chunks"`
	CompletedChunks int     `json:"completed_chunks"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

type audioMetadataResponse struct {
	JobID      string       `json:"job_id"`
	DurationMS int64        `json:"duration_ms"`
	Format     string       `json:"format"`
	SizeBytes  int64        `json:"size_bytes"`
	TimingData *timing.Data `json:"timing_data"`
}

type settingsEntry struct {
	Provider     string `json:"provider"`
	IsConfigured bool   `json:"is_configured"`
}

type settingsResponse struct {
	Providers []settingsEntry `json:"providers"`
}

// settingsUpdateRequest carries a session-scoped credential. For Amazon,
// APIKey is the access key id and the secret rides along separately. The key
// values never appear in any response.
type settingsUpdateRequest struct {
	Provider           string `json:"provider"`
	APIKey             string `json:"api_key"`
	AWSSecretAccessKey string `json:"aws_secret_access_key,omitempty"`
	AWSRegion          string `json:"aws_region,omitempty"`
}

type settingsUpdateResponse struct {
	Provider     string `json:"provider"`
	IsConfigured bool   `json:"is_configured"`
}

type ffmpegInfo struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
}

type dependenciesInfo struct {
	FFmpeg ffmpegInfo `json:"ffmpeg"`
}

type healthResponse struct {
	Status       string           `json:"status"`
	Version      string           `json:"version"`
	Dependencies dependenciesInfo `json:"dependencies"`
}
