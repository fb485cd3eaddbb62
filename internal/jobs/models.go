// Package jobs coordinates the TTS generation workflow: chunking, provider
// synthesis with retry, audio stitching, timing normalization, and job
// lifecycle tracking.
package jobs

import (
	"time"

	"github.com/voxweave/voxweave/internal/timing"
	"github.com/voxweave/voxweave/pkg/provider/tts"
)

// Status of a generation job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job tracks one asynchronous generation request. Stored in memory only;
// jobs do not survive a restart.
type Job struct {
	ID              string
	Provider        tts.Name
	VoiceID         string
	Text            string
	Speed           float64
	Status          Status
	Progress        float64
	TotalChunks     int
	CompletedChunks int
	AudioFilePath   string
	TimingData      *timing.Data
	ErrorMessage    string
	CreatedAt       time.Time
	CompletedAt     time.Time
}

// AudioMetadata describes a completed job's audio file plus its timing data.
type AudioMetadata struct {
	JobID      string
	DurationMS int64
	Format     string
	SizeBytes  int64
	Timing     *timing.Data
}
