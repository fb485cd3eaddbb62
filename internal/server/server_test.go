package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxweave/voxweave/internal/apperr"
	"github.com/voxweave/voxweave/internal/audio"
	"github.com/voxweave/voxweave/internal/chunk"
	"github.com/voxweave/voxweave/internal/config"
	"github.com/voxweave/voxweave/internal/ffmpeg"
	"github.com/voxweave/voxweave/internal/jobs"
	"github.com/voxweave/voxweave/internal/server"
	"github.com/voxweave/voxweave/internal/timing"
	"github.com/voxweave/voxweave/pkg/provider/tts"
	"github.com/voxweave/voxweave/pkg/provider/tts/mock"
)

const (
	testFFmpeg  = "/opt/bin/ffmpeg"
	testFFprobe = "/opt/bin/ffprobe"
)

type fixture struct {
	srv      http.Handler
	provider *mock.Provider
	creds    *config.Credentials
}

// newFixture builds a server over one mock provider, a fake ffmpeg executor,
// and a synchronous job runner so tests observe terminal job states
// immediately after POST /api/generate. An optional locator overrides the
// default always-available ffmpeg lookup.
func newFixture(t *testing.T, provider *mock.Provider, locatorOverride ...*ffmpeg.Locator) *fixture {
	t.Helper()

	registry := tts.NewRegistry()
	registry.Register(provider)

	run := func(_ context.Context, path string, _ []string, stdin []byte) ([]byte, error) {
		switch path {
		case testFFmpeg:
			return []byte("STITCHED"), nil
		case testFFprobe:
			return []byte("2.000\n"), nil
		}
		return nil, fmt.Errorf("unexpected binary %s", path)
	}
	bins := ffmpeg.Binaries{FFmpeg: testFFmpeg, FFprobe: testFFprobe}
	exec := ffmpeg.NewExecutor(ffmpeg.WithRun(run))
	stitcher := audio.NewStitcher(bins, audio.WithExecutor(exec), audio.WithTempDir(t.TempDir()))

	store, err := audio.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := jobs.NewManager(
		registry, chunk.NewChunker(), timing.NewNormalizer(), stitcher, store, jobs.NewStore(),
		jobs.WithLogger(logger),
	)

	creds := config.NewCredentials(config.ProvidersConfig{})

	locator := ffmpeg.NewLocator(
		ffmpeg.WithGetenv(func(string) string { return "" }),
		ffmpeg.WithLookPath(func(name string) (string, error) { return "/usr/bin/" + name, nil }),
	)
	if len(locatorOverride) > 0 {
		locator = locatorOverride[0]
	}

	srv := server.New(manager, registry, creds, locator,
		server.WithLogger(logger),
		server.WithVersion("1.2.3"),
		server.WithJobRunner(func(jobID string) {
			manager.ProcessJob(context.Background(), jobID)
		}),
	)

	return &fixture{srv: srv.Handler(), provider: provider, creds: creds}
}

func configuredProvider() *mock.Provider {
	return &mock.Provider{
		ProviderName: tts.NameGoogle,
		Display:      "Google Cloud TTS",
		Configured:   true,
		Caps: tts.Capabilities{
			SpeedControl:  true,
			WordTimings:   true,
			MaxChunkChars: 4500,
			MinSpeed:      0.25,
			MaxSpeed:      4.0,
			DefaultSpeed:  1.0,
		},
		SynthesizeResult: &tts.SynthesisResult{AudioBytes: []byte("A1"), DurationMS: 900},
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

type errorBody struct {
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
}

func TestProvidersEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, configuredProvider())
	rec := f.do(t, "GET", "/api/providers", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[struct {
		Providers []struct {
			Name         string `json:"name"`
			DisplayName  string `json:"display_name"`
			IsConfigured bool   `json:"is_configured"`
			Capabilities struct {
				SupportsSpeedControl bool    `json:"supports_speed_control"`
				SupportsWordTiming   bool    `json:"supports_word_timing"`
				MaxChunkChars        int     `json:"max_chunk_chars"`
				MinSpeed             float64 `json:"min_speed"`
				MaxSpeed             float64 `json:"max_speed"`
				DefaultSpeed         float64 `json:"default_speed"`
			} `json:"capabilities"`
		} `json:"providers"`
	}](t, rec)

	if len(body.Providers) != 1 {
		t.Fatalf("providers = %+v", body.Providers)
	}
	p := body.Providers[0]
	if p.Name != "google" || p.DisplayName != "Google Cloud TTS" || !p.IsConfigured {
		t.Errorf("provider = %+v", p)
	}
	if !p.Capabilities.SupportsSpeedControl || !p.Capabilities.SupportsWordTiming || p.Capabilities.MaxChunkChars != 4500 {
		t.Errorf("capabilities = %+v", p.Capabilities)
	}
	if p.Capabilities.DefaultSpeed != 1.0 {
		t.Errorf("default_speed = %v", p.Capabilities.DefaultSpeed)
	}
}

func TestVoicesEndpoint(t *testing.T) {
	t.Parallel()

	p := configuredProvider()
	p.ListVoicesResult = []tts.Voice{{ID: "en-US-A", Name: "A", Language: "en-US", Gender: "female"}}
	f := newFixture(t, p)

	rec := f.do(t, "POST", "/api/voices", `{"provider":"google"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[struct {
		Provider string      `json:"provider"`
		Voices   []tts.Voice `json:"voices"`
	}](t, rec)
	if body.Provider != "google" || len(body.Voices) != 1 || body.Voices[0].ID != "en-US-A" {
		t.Errorf("body = %+v", body)
	}
}

func TestVoicesUnknownProvider(t *testing.T) {
	t.Parallel()

	f := newFixture(t, configuredProvider())
	rec := f.do(t, "POST", "/api/voices", `{"provider":"bogus"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody[errorBody](t, rec); body.ErrorCode != apperr.CodeInvalidProvider {
		t.Errorf("error_code = %q", body.ErrorCode)
	}
}

func TestVoicesNotConfigured(t *testing.T) {
	t.Parallel()

	p := configuredProvider()
	p.Configured = false
	f := newFixture(t, p)

	rec := f.do(t, "POST", "/api/voices", `{"provider":"google"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody[errorBody](t, rec); body.ErrorCode != apperr.CodeProviderNotConfigured {
		t.Errorf("error_code = %q", body.ErrorCode)
	}
}

func TestVoicesProviderAPIError(t *testing.T) {
	t.Parallel()

	p := configuredProvider()
	p.ListVoicesErr = apperr.API("google", "upstream exploded")
	f := newFixture(t, p)

	rec := f.do(t, "POST", "/api/voices", `{"provider":"google"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody[errorBody](t, rec); body.ErrorCode != apperr.CodeProviderAPI {
		t.Errorf("error_code = %q", body.ErrorCode)
	}
}

func TestGenerateAcceptedAndProcessed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, configuredProvider())

	rec := f.do(t, "POST", "/api/generate",
		`{"provider":"google","voice_id":"en-US-A","text":"Hello there.","speed":1.0}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	accepted := decodeBody[struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}](t, rec)
	if accepted.JobID == "" || accepted.Status != "pending" {
		t.Fatalf("body = %+v", accepted)
	}

	// The fixture's job runner is synchronous, so the job is already done.
	rec = f.do(t, "GET", "/api/generate/"+accepted.JobID+"/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	status := decodeBody[struct {
		JobID           string  `json:"job_id"`
		Status          string  `json:"status"`
		Progress        float64 `json:"progress"`
		CompletedChunks int     `json:"completed_chunks"`
	}](t, rec)
	if status.Status != "completed" || status.Progress != 1.0 || status.CompletedChunks != 1 {
		t.Errorf("status body = %+v", status)
	}
}

func TestGenerateValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, configuredProvider())

	cases := []struct {
		name string
		body string
	}{
		{"missing provider", `{"voice_id":"v","text":"hi"}`},
		{"missing voice", `{"provider":"google","text":"hi"}`},
		{"empty text", `{"provider":"google","voice_id":"v","text":""}`},
		{"speed too high", `{"provider":"google","voice_id":"v","text":"hi","speed":9}`},
		{"speed too low", `{"provider":"google","voice_id":"v","text":"hi","speed":0.1}`},
		{"bad json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, "POST", "/api/generate", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if body := decodeBody[errorBody](t, rec); body.ErrorCode != apperr.CodeValidation {
				t.Errorf("error_code = %q", body.ErrorCode)
			}
		})
	}
}

func TestGenerateDefaultsSpeed(t *testing.T) {
	t.Parallel()

	p := configuredProvider()
	f := newFixture(t, p)

	rec := f.do(t, "POST", "/api/generate",
		`{"provider":"google","voice_id":"v","text":"Hello."}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(p.SynthesizeCalls) != 1 || p.SynthesizeCalls[0].Speed != 1.0 {
		t.Errorf("synthesize calls = %+v, want one call at speed 1.0", p.SynthesizeCalls)
	}
}

func TestJobStatusNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, configuredProvider())
	rec := f.do(t, "GET", "/api/generate/nope/status", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody[errorBody](t, rec); body.ErrorCode != apperr.CodeJobNotFound {
		t.Errorf("error_code = %q", body.ErrorCode)
	}
}

func TestAudioMetadataAndFile(t *testing.T) {
	t.Parallel()

	f := newFixture(t, configuredProvider())

	rec := f.do(t, "POST", "/api/generate",
		`{"provider":"google","voice_id":"v","text":"Hello there."}`)
	jobID := decodeBody[struct {
		JobID string `json:"job_id"`
	}](t, rec).JobID

	rec = f.do(t, "GET", "/api/audio/"+jobID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metadata status = %d: %s", rec.Code, rec.Body.String())
	}
	meta := decodeBody[struct {
		JobID      string          `json:"job_id"`
		DurationMS int64           `json:"duration_ms"`
		Format     string          `json:"format"`
		SizeBytes  int64           `json:"size_bytes"`
		TimingData json.RawMessage `json:"timing_data"`
	}](t, rec)
	if meta.JobID != jobID || meta.Format != "mp3" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.SizeBytes != int64(len("STITCHED")) || meta.DurationMS != 2000 {
		t.Errorf("size = %d, duration = %d", meta.SizeBytes, meta.DurationMS)
	}
	if len(meta.TimingData) == 0 || string(meta.TimingData) == "null" {
		t.Error("timing_data missing")
	}

	rec = f.do(t, "GET", "/api/audio/"+jobID+"/file", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("file status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q", got)
	}
	want := `attachment; filename="tts-` + jobID + `.mp3"`
	if got := rec.Header().Get("Content-Disposition"); got != want {
		t.Errorf("Content-Disposition = %q, want %q", got, want)
	}
	if rec.Body.String() != "STITCHED" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestAudioBeforeCompletion(t *testing.T) {
	t.Parallel()

	p := configuredProvider()
	f := newFixture(t, p)

	// A job that fails stays non-completed; audio endpoints must refuse it.
	p.SynthesizeErr = errors.New("boom")
	rec := f.do(t, "POST", "/api/generate",
		`{"provider":"google","voice_id":"v","text":"Hello."}`)
	jobID := decodeBody[struct {
		JobID string `json:"job_id"`
	}](t, rec).JobID

	rec = f.do(t, "GET", "/api/audio/"+jobID, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody[errorBody](t, rec); body.ErrorCode != apperr.CodeJobNotCompleted {
		t.Errorf("error_code = %q", body.ErrorCode)
	}

	rec = f.do(t, "GET", "/api/audio/"+jobID+"/file", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("file status = %d", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t, configuredProvider())

	rec := f.do(t, "GET", "/api/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	before := decodeBody[struct {
		Providers []struct {
			Provider     string `json:"provider"`
			IsConfigured bool   `json:"is_configured"`
		} `json:"providers"`
	}](t, rec)
	wantOrder := []string{"google", "amazon", "elevenlabs", "openai"}
	if len(before.Providers) != len(wantOrder) {
		t.Fatalf("providers = %+v", before.Providers)
	}
	for i, want := range wantOrder {
		if before.Providers[i].Provider != want {
			t.Errorf("providers[%d] = %q, want %q", i, before.Providers[i].Provider, want)
		}
		if before.Providers[i].IsConfigured {
			t.Errorf("%s configured before any key was set", want)
		}
	}

	const secret = "xi-verysecretapikey-123456"
	rec = f.do(t, "PUT", "/api/settings", `{"provider":"elevenlabs","api_key":"`+secret+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), secret) {
		t.Fatalf("response echoed the key: %s", rec.Body.String())
	}
	updated := decodeBody[struct {
		Provider     string `json:"provider"`
		IsConfigured bool   `json:"is_configured"`
	}](t, rec)
	if updated.Provider != "elevenlabs" || !updated.IsConfigured {
		t.Errorf("body = %+v", updated)
	}

	rec = f.do(t, "GET", "/api/settings", "")
	if strings.Contains(rec.Body.String(), secret) {
		t.Fatalf("settings listing echoed the key: %s", rec.Body.String())
	}
	after := decodeBody[struct {
		Providers []struct {
			Provider     string `json:"provider"`
			IsConfigured bool   `json:"is_configured"`
		} `json:"providers"`
	}](t, rec)
	for _, p := range after.Providers {
		if p.Provider == "elevenlabs" && !p.IsConfigured {
			t.Error("elevenlabs still unconfigured after PUT")
		}
	}
}

func TestSettingsRejectsUnknownProviderAndEmptyKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t, configuredProvider())

	rec := f.do(t, "PUT", "/api/settings", `{"provider":"bogus","api_key":"k"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody[errorBody](t, rec); body.ErrorCode != apperr.CodeInvalidProvider {
		t.Errorf("error_code = %q", body.ErrorCode)
	}

	rec = f.do(t, "PUT", "/api/settings", `{"provider":"openai","api_key":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody[errorBody](t, rec); body.ErrorCode != apperr.CodeValidation {
		t.Errorf("error_code = %q", body.ErrorCode)
	}
}

func TestSettingsAmazonSetsBothHalves(t *testing.T) {
	t.Parallel()

	f := newFixture(t, configuredProvider())

	rec := f.do(t, "PUT", "/api/settings",
		`{"provider":"amazon","api_key":"AKIAEXAMPLE","aws_secret_access_key":"s3cr3t","aws_region":"eu-west-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[struct {
		Provider     string `json:"provider"`
		IsConfigured bool   `json:"is_configured"`
	}](t, rec)
	if !updated.IsConfigured {
		t.Error("amazon should be configured with both halves")
	}
	if f.creds.AWSRegion() != "eu-west-1" {
		t.Errorf("region = %q", f.creds.AWSRegion())
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, configuredProvider())
	rec := f.do(t, "GET", "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[struct {
		Status       string `json:"status"`
		Version      string `json:"version"`
		Dependencies struct {
			FFmpeg struct {
				Available bool   `json:"available"`
				Path      string `json:"path"`
			} `json:"ffmpeg"`
		} `json:"dependencies"`
	}](t, rec)
	if body.Status != "healthy" || body.Version != "1.2.3" {
		t.Errorf("body = %+v", body)
	}
	if !body.Dependencies.FFmpeg.Available || body.Dependencies.FFmpeg.Path != "/usr/bin/ffmpeg" {
		t.Errorf("ffmpeg = %+v", body.Dependencies.FFmpeg)
	}
}

func TestHealthDegradedWithoutFFmpeg(t *testing.T) {
	t.Parallel()

	locator := ffmpeg.NewLocator(
		ffmpeg.WithGetenv(func(string) string { return "" }),
		ffmpeg.WithLookPath(func(string) (string, error) { return "", errors.New("not found") }),
	)
	f := newFixture(t, configuredProvider(), locator)

	rec := f.do(t, "GET", "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[struct {
		Status       string `json:"status"`
		Dependencies struct {
			FFmpeg struct {
				Available bool `json:"available"`
			} `json:"ffmpeg"`
		} `json:"dependencies"`
	}](t, rec)
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	if body.Dependencies.FFmpeg.Available {
		t.Error("ffmpeg reported available")
	}
}

func TestRequestIDOnEveryResponse(t *testing.T) {
	t.Parallel()

	f := newFixture(t, configuredProvider())

	rec := f.do(t, "GET", "/api/providers", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	req := httptest.NewRequest("GET", "/api/providers", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	echo := httptest.NewRecorder()
	f.srv.ServeHTTP(echo, req)
	if got := echo.Header().Get("X-Request-ID"); got != "client-id-1" {
		t.Errorf("X-Request-ID = %q, want echo", got)
	}
}
