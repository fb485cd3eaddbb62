// Package ffmpeg locates and runs the ffmpeg and ffprobe binaries.
//
// Audio stitching shells out rather than linking a codec: ffmpeg is already
// the deployment requirement for MP3 work and its concat filter handles
// silence insertion and re-encoding in one pass. Binary resolution honours
// FFMPEG_PATH / FFPROBE_PATH overrides before falling back to the system
// PATH, and execution is injectable so the audio layer tests without the
// real binaries.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrNotFound indicates a required binary is not installed.
var ErrNotFound = errors.New("ffmpeg binary not found")

// Environment overrides for custom binary locations.
const (
	envFFmpegPath  = "FFMPEG_PATH"
	envFFprobePath = "FFPROBE_PATH"
)

// Binaries holds resolved paths for the two tools.
type Binaries struct {
	FFmpeg  string
	FFprobe string
}

// Locator resolves binary paths with injectable environment access.
type Locator struct {
	getenv   func(string) string
	lookPath func(string) (string, error)
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithGetenv sets a custom environment lookup (for testing).
func WithGetenv(fn func(string) string) LocatorOption {
	return func(l *Locator) { l.getenv = fn }
}

// WithLookPath sets a custom PATH lookup (for testing).
func WithLookPath(fn func(string) (string, error)) LocatorOption {
	return func(l *Locator) { l.lookPath = fn }
}

// NewLocator creates a Locator with the given options.
func NewLocator(opts ...LocatorOption) *Locator {
	l := &Locator{
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate resolves both binaries. An FFMPEG_PATH / FFPROBE_PATH override that
// points at a missing file is an error rather than a silent fallback.
func (l *Locator) Locate() (Binaries, error) {
	ffmpeg, err := l.locateOne("ffmpeg", envFFmpegPath)
	if err != nil {
		return Binaries{}, err
	}
	ffprobe, err := l.locateOne("ffprobe", envFFprobePath)
	if err != nil {
		return Binaries{}, err
	}
	return Binaries{FFmpeg: ffmpeg, FFprobe: ffprobe}, nil
}

// LocateFFmpeg resolves only the ffmpeg binary, for health reporting.
func (l *Locator) LocateFFmpeg() (string, error) {
	return l.locateOne("ffmpeg", envFFmpegPath)
}

func (l *Locator) locateOne(name, envKey string) (string, error) {
	if envPath := l.getenv(envKey); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: %s is set to %q but no binary exists there", ErrNotFound, envKey, envPath)
		}
		return envPath, nil
	}
	path, err := l.lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s not on PATH (install ffmpeg or set %s)", ErrNotFound, name, envKey)
	}
	return path, nil
}

// runFn executes a binary with stdin and returns its stdout.
type runFn func(ctx context.Context, path string, args []string, stdin []byte) ([]byte, error)

// Executor runs ffmpeg commands with an injectable run function.
type Executor struct {
	run runFn
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRun sets a custom run function (for testing).
func WithRun(fn runFn) ExecutorOption {
	return func(e *Executor) { e.run = fn }
}

// NewExecutor creates an Executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{run: defaultRun}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the binary and returns stdout. ffmpeg writes diagnostics to
// stderr, so on failure the stderr tail is folded into the error.
func (e *Executor) Run(ctx context.Context, path string, args []string, stdin []byte) ([]byte, error) {
	return e.run(ctx, path, args, stdin)
}

func defaultRun(ctx context.Context, path string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", path, err, tail(stderr.String(), 512))
	}
	return stdout.Bytes(), nil
}

// tail returns at most n trailing bytes of s. ffmpeg puts the actual error
// at the end of a long banner.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
