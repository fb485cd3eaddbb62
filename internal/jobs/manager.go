package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/voxweave/voxweave/internal/apperr"
	"github.com/voxweave/voxweave/internal/audio"
	"github.com/voxweave/voxweave/internal/chunk"
	"github.com/voxweave/voxweave/internal/timing"
	"github.com/voxweave/voxweave/pkg/provider/tts"
)

// Metrics receives pipeline events. The observe package provides the real
// implementation; the default is a no-op.
type Metrics interface {
	JobStarted()
	JobFinished(status Status)
	ObserveSynthesis(provider tts.Name, d time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) JobStarted()                                     {}
func (noopMetrics) JobFinished(Status)                              {}
func (noopMetrics) ObserveSynthesis(tts.Name, time.Duration, error) {}

// CreateRequest is the validated input for a new generation job.
type CreateRequest struct {
	Provider tts.Name
	Text     string
	VoiceID  string
	Speed    float64
}

// Manager orchestrates the generation workflow. All dependencies are
// injected; the manager owns no goroutines, callers run ProcessJob in the
// background themselves.
type Manager struct {
	registry   *tts.Registry
	chunker    *chunk.Chunker
	normalizer *timing.Normalizer
	stitcher   *audio.Stitcher
	audioStore *audio.Store
	store      *Store
	logger     *slog.Logger
	metrics    Metrics
	sleep      sleepFunc
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mx Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mx }
}

// WithSleep replaces the retry backoff sleep (for testing).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ManagerOption {
	return func(m *Manager) { m.sleep = fn }
}

// NewManager wires the generation pipeline together.
func NewManager(registry *tts.Registry, chunker *chunk.Chunker, normalizer *timing.Normalizer, stitcher *audio.Stitcher, audioStore *audio.Store, store *Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:   registry,
		chunker:    chunker,
		normalizer: normalizer,
		stitcher:   stitcher,
		audioStore: audioStore,
		store:      store,
		logger:     slog.Default(),
		metrics:    noopMetrics{},
		sleep:      defaultSleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store exposes the underlying job store for lifecycle sweeps.
func (m *Manager) Store() *Store {
	return m.store
}

// CreateJob validates the request, chunks the text, and records a pending
// job. Processing does not start here; the caller launches ProcessJob.
func (m *Manager) CreateJob(ctx context.Context, req CreateRequest) (Job, error) {
	provider, err := m.registry.Get(req.Provider)
	if err != nil {
		return Job{}, err
	}
	if !provider.IsConfigured() {
		return Job{}, apperr.ProviderNotConfigured(string(req.Provider))
	}

	chunks, err := m.chunker.Chunk(req.Text, provider.Capabilities().MaxChunkChars)
	if err != nil {
		return Job{}, err
	}

	job := Job{
		ID:          uuid.NewString(),
		Provider:    req.Provider,
		VoiceID:     req.VoiceID,
		Text:        req.Text,
		Speed:       req.Speed,
		Status:      StatusPending,
		TotalChunks: len(chunks),
		CreatedAt:   time.Now().UTC(),
	}
	m.store.Create(job)

	m.logger.Info("job created",
		"job_id", job.ID,
		"provider", job.Provider,
		"chunks", job.TotalChunks,
		"text_chars", len([]rune(job.Text)),
	)
	return job, nil
}

// ProcessJob runs a job to completion. Every failure is caught at this level
// and recorded on the job as a sanitized message; ProcessJob itself never
// returns an error to its goroutine.
func (m *Manager) ProcessJob(ctx context.Context, jobID string) {
	job, err := m.store.Get(jobID)
	if err != nil {
		m.logger.Error("process: job vanished", "job_id", jobID)
		return
	}

	m.metrics.JobStarted()
	if err := m.runJob(ctx, &job); err != nil {
		job.Status = StatusFailed
		job.ErrorMessage = apperr.Sanitize(err.Error())
		m.store.Update(job)
		m.metrics.JobFinished(StatusFailed)
		m.logger.Error("job failed", "job_id", jobID, "error", job.ErrorMessage)
		return
	}
	m.metrics.JobFinished(StatusCompleted)
	m.logger.Info("job completed", "job_id", jobID, "chunks", job.TotalChunks)
}

// runJob is the fallible body of ProcessJob.
func (m *Manager) runJob(ctx context.Context, job *Job) error {
	job.Status = StatusInProgress
	m.store.Update(*job)

	provider, err := m.registry.Get(job.Provider)
	if err != nil {
		return err
	}

	chunks, err := m.chunker.Chunk(job.Text, provider.Capabilities().MaxChunkChars)
	if err != nil {
		return err
	}
	job.TotalChunks = len(chunks)
	m.store.Update(*job)

	audioParts := make([][]byte, 0, len(chunks))
	wordParts := make([][]timing.WordTiming, 0, len(chunks))
	sentenceParts := make([][]timing.SentenceTiming, 0, len(chunks))
	durations := make([]int64, 0, len(chunks))
	hasWords, hasSentences := false, false

	for _, c := range chunks {
		start := time.Now()
		result, err := synthesizeWithRetry(ctx, provider, c.Text, job.VoiceID, job.Speed, m.sleep)
		m.metrics.ObserveSynthesis(job.Provider, time.Since(start), err)
		if err != nil {
			return err
		}

		audioParts = append(audioParts, result.AudioBytes)
		durations = append(durations, result.DurationMS)
		wordParts = append(wordParts, result.WordTimings)
		sentenceParts = append(sentenceParts, result.SentenceTimings)
		if len(result.WordTimings) > 0 {
			hasWords = true
		}
		if len(result.SentenceTimings) > 0 {
			hasSentences = true
		}

		job.CompletedChunks++
		job.Progress = float64(job.CompletedChunks) / float64(job.TotalChunks)
		m.store.Update(*job)
	}

	// Merge math needs real per-chunk durations; probe any the provider
	// could not report.
	if hasWords || hasSentences {
		for i := range durations {
			if durations[i] == 0 {
				d, err := m.stitcher.DurationMS(ctx, audioParts[i])
				if err != nil {
					return err
				}
				durations[i] = d
			}
		}
	}

	stitched, err := m.stitcher.Stitch(ctx, audioParts)
	if err != nil {
		return err
	}

	path, err := m.audioStore.Save(job.ID, stitched.AudioBytes)
	if err != nil {
		return err
	}

	job.TimingData = m.buildTiming(job, chunks, wordParts, sentenceParts, durations, hasWords, hasSentences, stitched.DurationMS)
	job.AudioFilePath = path
	job.Status = StatusCompleted
	job.Progress = 1.0
	job.CompletedAt = time.Now().UTC()
	m.store.Update(*job)
	return nil
}

// buildTiming selects the timing strategy: word merge when any chunk
// produced word timing, sentence merge when only sentence timing exists,
// proportional estimation otherwise or when merge inputs are inconsistent.
func (m *Manager) buildTiming(job *Job, chunks []chunk.TextChunk, wordParts [][]timing.WordTiming, sentenceParts [][]timing.SentenceTiming, durations []int64, hasWords, hasSentences bool, totalDurationMS int64) *timing.Data {
	silenceMS := m.stitcher.SilenceBetweenMS()

	if hasWords || hasSentences {
		if err := checkMergeInputs(len(chunks), len(wordParts), len(durations)); err != nil {
			m.logger.Warn("timing merge failed, falling back to estimation",
				"job_id", job.ID, "error", err.Error())
		} else if hasWords {
			return &timing.Data{
				Type:  timing.TypeWord,
				Words: m.normalizer.MergeWordTimings(chunks, wordParts, durations, silenceMS),
			}
		} else {
			return &timing.Data{
				Type:      timing.TypeSentence,
				Sentences: m.normalizer.MergeSentenceTimings(chunks, sentenceParts, durations, silenceMS),
			}
		}
	}

	return &timing.Data{
		Type:      timing.TypeSentence,
		Sentences: m.normalizer.EstimateSentenceTimings(job.Text, totalDurationMS),
	}
}

// checkMergeInputs guards the parallel-slice contract of the merge calls.
func checkMergeInputs(chunks, parts, durations int) error {
	if parts != chunks || durations != chunks {
		return fmt.Errorf("timing parts %d / durations %d do not match %d chunks", parts, durations, chunks)
	}
	return nil
}

// GetJobStatus returns the current state of a job.
func (m *Manager) GetJobStatus(jobID string) (Job, error) {
	return m.store.Get(jobID)
}

// GetAudioFilePath returns the audio path for a completed job.
func (m *Manager) GetAudioFilePath(jobID string) (string, error) {
	job, err := m.store.Get(jobID)
	if err != nil {
		return "", err
	}
	if job.Status != StatusCompleted || job.AudioFilePath == "" {
		return "", apperr.JobNotCompleted(jobID, string(job.Status))
	}
	return job.AudioFilePath, nil
}

// GetAudioMetadata returns audio properties and timing for a completed job.
// Duration and size are measured from the file on disk, not from job state,
// so a sweeper-removed file reports zero rather than stale numbers.
func (m *Manager) GetAudioMetadata(ctx context.Context, jobID string) (*AudioMetadata, error) {
	job, err := m.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusCompleted {
		return nil, apperr.JobNotCompleted(jobID, string(job.Status))
	}

	meta := &AudioMetadata{
		JobID:  jobID,
		Format: "mp3",
		Timing: job.TimingData,
	}
	if meta.Timing == nil {
		meta.Timing = &timing.Data{Type: timing.TypeSentence, Sentences: []timing.SentenceTiming{}}
	}

	if size, err := m.audioStore.Size(jobID); err == nil {
		meta.SizeBytes = size
	}
	if path, err := m.audioStore.Path(jobID); err == nil {
		if data, readErr := os.ReadFile(path); readErr == nil {
			if d, probeErr := m.stitcher.DurationMS(ctx, data); probeErr == nil {
				meta.DurationMS = d
			}
		}
	}
	return meta, nil
}
