package server

import (
	"net/http"
	"slices"

	"github.com/voxweave/voxweave/internal/apperr"
	"github.com/voxweave/voxweave/internal/jobs"
	"github.com/voxweave/voxweave/pkg/provider/tts"
)

// Request-level bounds. Providers clamp speed further to their own range.
const (
	maxTextChars = 100000
	minSpeed     = 0.25
	maxSpeed     = 4.0
	defaultSpeed = 1.0
)

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	providers := s.registry.List()
	resp := providersResponse{Providers: make([]providerInfo, 0, len(providers))}
	for _, p := range providers {
		caps := p.Capabilities()
		resp.Providers = append(resp.Providers, providerInfo{
			Name:         string(p.Name()),
			DisplayName:  p.DisplayName(),
			IsConfigured: p.IsConfigured(),
			Capabilities: capabilitiesInfo{
				SupportsSpeedControl: caps.SpeedControl,
				SupportsWordTiming:   caps.WordTimings,
				MinSpeed:             caps.MinSpeed,
				MaxSpeed:             caps.MaxSpeed,
				DefaultSpeed:         caps.DefaultSpeed,
				MaxChunkChars:        caps.MaxChunkChars,
			},
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	var req voicesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	provider, err := s.registry.Get(tts.Name(req.Provider))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if !provider.IsConfigured() {
		writeError(w, s.logger, apperr.ProviderNotConfigured(req.Provider))
		return
	}

	voices, err := provider.ListVoices(r.Context())
	if err != nil {
		s.metrics.RecordProviderRequest(r.Context(), req.Provider, "error")
		writeError(w, s.logger, err)
		return
	}
	s.metrics.RecordProviderRequest(r.Context(), req.Provider, "ok")

	if voices == nil {
		voices = []tts.Voice{}
	}
	writeJSON(w, http.StatusOK, voicesResponse{Provider: req.Provider, Voices: voices})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	if req.Provider == "" {
		writeError(w, s.logger, apperr.Validation("provider is required", map[string]any{"field": "provider"}))
		return
	}
	if req.VoiceID == "" {
		writeError(w, s.logger, apperr.Validation("voice_id is required", map[string]any{"field": "voice_id"}))
		return
	}
	if n := len([]rune(req.Text)); n == 0 || n > maxTextChars {
		writeError(w, s.logger, apperr.Validation("text must be between 1 and 100000 characters",
			map[string]any{"field": "text", "length": n}))
		return
	}
	if req.Speed == 0 {
		req.Speed = defaultSpeed
	}
	if req.Speed < minSpeed || req.Speed > maxSpeed {
		writeError(w, s.logger, apperr.Validation("speed must be between 0.25 and 4.0",
			map[string]any{"field": "speed", "value": req.Speed}))
		return
	}

	job, err := s.manager.CreateJob(r.Context(), jobs.CreateRequest{
		Provider: tts.Name(req.Provider),
		Text:     req.Text,
		VoiceID:  req.VoiceID,
		Speed:    req.Speed,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.runJob(job.ID)

	writeJSON(w, http.StatusAccepted, generateResponse{JobID: job.ID, Status: string(job.Status)})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.GetJobStatus(r.PathValue("id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		JobID:           job.ID,
		Status:          string(job.Status),
		Progress:        job.Progress,
		TotalChunks:     job.TotalChunks,
		CompletedChunks: job.CompletedChunks,
		ErrorMessage:    job.ErrorMessage,
	})
}

func (s *Server) handleAudioMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := s.manager.GetAudioMetadata(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, audioMetadataResponse{
		JobID:      meta.JobID,
		DurationMS: meta.DurationMS,
		Format:     meta.Format,
		SizeBytes:  meta.SizeBytes,
		TimingData: meta.Timing,
	})
}

func (s *Server) handleAudioFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	path, err := s.manager.GetAudioFilePath(id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="tts-`+id+`.mp3"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	names := tts.Names()
	resp := settingsResponse{Providers: make([]settingsEntry, 0, len(names))}
	for _, name := range names {
		resp.Providers = append(resp.Providers, settingsEntry{
			Provider:     string(name),
			IsConfigured: s.creds.IsProviderConfigured(name),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	name := tts.Name(req.Provider)
	if !slices.Contains(tts.Names(), name) {
		writeError(w, s.logger, apperr.InvalidProvider(req.Provider))
		return
	}
	if req.APIKey == "" {
		writeError(w, s.logger, apperr.Validation("api_key must not be empty", map[string]any{"field": "api_key"}))
		return
	}

	s.creds.SetProviderKey(name, req.APIKey)
	if name == tts.NameAmazon {
		if req.AWSSecretAccessKey != "" {
			s.creds.SetAWSSecretAccessKey(req.AWSSecretAccessKey)
		}
		if req.AWSRegion != "" {
			s.creds.SetAWSRegion(req.AWSRegion)
		}
	}

	// Log the event, never the key.
	s.logger.Info("provider credentials updated", "provider", req.Provider)

	writeJSON(w, http.StatusOK, settingsUpdateResponse{
		Provider:     req.Provider,
		IsConfigured: s.creds.IsProviderConfigured(name),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "healthy", Version: s.version}

	path, err := s.locator.LocateFFmpeg()
	if err != nil {
		resp.Status = "degraded"
	} else {
		resp.Dependencies.FFmpeg = ffmpegInfo{Available: true, Path: path}
	}

	writeJSON(w, http.StatusOK, resp)
}
