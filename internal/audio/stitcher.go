// Package audio assembles per-chunk MP3 segments into one output file and
// manages the generated files on disk.
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/voxweave/voxweave/internal/apperr"
	"github.com/voxweave/voxweave/internal/ffmpeg"
)

// Defaults for the stitched output.
const (
	defaultSilenceBetweenMS = 100
	outputBitrate           = "192k"
	outputSampleRate        = 44100
)

// StitchResult is the assembled audio plus its measured properties.
type StitchResult struct {
	AudioBytes []byte
	DurationMS int64
	SizeBytes  int64
}

// Stitcher concatenates MP3 segments with a fixed silence gap at each join,
// re-encoding to a uniform bitrate so segments from different providers play
// back seamlessly.
type Stitcher struct {
	bins             ffmpeg.Binaries
	exec             *ffmpeg.Executor
	silenceBetweenMS int64
	crossfadeMS      int64
	tempDir          string
}

// StitcherOption configures a Stitcher.
type StitcherOption func(*Stitcher)

// WithSilenceBetween sets the gap inserted between segments, in milliseconds.
func WithSilenceBetween(ms int64) StitcherOption {
	return func(s *Stitcher) { s.silenceBetweenMS = ms }
}

// WithCrossfade overlaps segment joins by the given amount. The configured
// silence gap is still inserted ahead of each overlap. Timing merge assumes
// hard joins, so crossfade is only for single-chunk or estimate-mode output.
func WithCrossfade(ms int64) StitcherOption {
	return func(s *Stitcher) { s.crossfadeMS = ms }
}

// WithExecutor sets a custom command executor (for testing).
func WithExecutor(e *ffmpeg.Executor) StitcherOption {
	return func(s *Stitcher) { s.exec = e }
}

// WithTempDir sets the directory for intermediate segment files.
func WithTempDir(dir string) StitcherOption {
	return func(s *Stitcher) { s.tempDir = dir }
}

// NewStitcher creates a Stitcher bound to resolved ffmpeg binaries.
func NewStitcher(bins ffmpeg.Binaries, opts ...StitcherOption) *Stitcher {
	s := &Stitcher{
		bins:             bins,
		exec:             ffmpeg.NewExecutor(),
		silenceBetweenMS: defaultSilenceBetweenMS,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SilenceBetweenMS reports the configured join gap. The timing normalizer
// must use the same value the stitcher actually inserted.
func (s *Stitcher) SilenceBetweenMS() int64 {
	return s.silenceBetweenMS
}

// Stitch joins segments in order into a single MP3. Segments must each be a
// complete MP3 stream.
func (s *Stitcher) Stitch(ctx context.Context, segments [][]byte) (*StitchResult, error) {
	if len(segments) == 0 {
		return nil, apperr.AudioProcessing("no audio segments to stitch")
	}

	dir, err := os.MkdirTemp(s.tempDir, "stitch-*")
	if err != nil {
		return nil, apperr.AudioProcessing(fmt.Sprintf("create temp dir: %v", err))
	}
	defer os.RemoveAll(dir)

	paths := make([]string, len(segments))
	for i, seg := range segments {
		p := filepath.Join(dir, fmt.Sprintf("seg-%04d.mp3", i))
		if err := os.WriteFile(p, seg, 0o600); err != nil {
			return nil, apperr.AudioProcessing(fmt.Sprintf("write segment %d: %v", i, err))
		}
		paths[i] = p
	}

	args := s.buildArgs(paths)
	out, err := s.exec.Run(ctx, s.bins.FFmpeg, args, nil)
	if err != nil {
		return nil, apperr.AudioProcessing(fmt.Sprintf("ffmpeg concat: %v", err))
	}
	if len(out) == 0 {
		return nil, apperr.AudioProcessing("ffmpeg produced no output")
	}

	durationMS, err := s.DurationMS(ctx, out)
	if err != nil {
		return nil, err
	}

	return &StitchResult{
		AudioBytes: out,
		DurationMS: durationMS,
		SizeBytes:  int64(len(out)),
	}, nil
}

// buildArgs assembles the ffmpeg invocation: every segment as an input, a
// generated silence source between each pair (or an acrossfade chain), and
// a single re-encoded MP3 stream on stdout.
func (s *Stitcher) buildArgs(paths []string) []string {
	var args []string
	args = append(args, "-hide_banner", "-nostdin", "-v", "error")
	for _, p := range paths {
		args = append(args, "-i", p)
	}

	switch {
	case len(paths) == 1:
		// Nothing to join, just normalize the encoding.
		args = append(args, "-map", "0:a")
	case s.crossfadeMS > 0:
		args = append(args, "-filter_complex", s.crossfadeFilter(len(paths)), "-map", "[out]")
	default:
		args = append(args, "-filter_complex", s.concatFilter(len(paths)), "-map", "[out]")
	}

	args = append(args,
		"-ar", strconv.Itoa(outputSampleRate),
		"-c:a", "libmp3lame",
		"-b:a", outputBitrate,
		"-f", "mp3",
		"pipe:1",
	)
	return args
}

// concatFilter builds "[gap];...;[0:a][g0][1:a]...concat=n=K:v=0:a=1[out]"
// with one anullsrc gap per join.
func (s *Stitcher) concatFilter(n int) string {
	gapSec := float64(s.silenceBetweenMS) / 1000.0

	var b strings.Builder
	for i := 0; i < n-1; i++ {
		fmt.Fprintf(&b, "anullsrc=channel_layout=stereo:sample_rate=%d:d=%.3f[g%d];",
			outputSampleRate, gapSec, i)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%d:a]", i)
		if i < n-1 {
			fmt.Fprintf(&b, "[g%d]", i)
		}
	}
	fmt.Fprintf(&b, "concat=n=%d:v=0:a=1[out]", 2*n-1)
	return b.String()
}

// crossfadeFilter chains pairwise acrossfade joins. A nonzero silence gap is
// concatenated onto the running mix ahead of each join, so segment pacing
// matches the plain concat path.
func (s *Stitcher) crossfadeFilter(n int) string {
	gapSec := float64(s.silenceBetweenMS) / 1000.0
	fadeSec := float64(s.crossfadeMS) / 1000.0

	var b strings.Builder
	prev := "[0:a]"
	for i := 1; i < n; i++ {
		if s.silenceBetweenMS > 0 {
			fmt.Fprintf(&b, "anullsrc=channel_layout=stereo:sample_rate=%d:d=%.3f[g%d];",
				outputSampleRate, gapSec, i-1)
			fmt.Fprintf(&b, "%s[g%d]concat=n=2:v=0:a=1[p%d];", prev, i-1, i)
			prev = fmt.Sprintf("[p%d]", i)
		}
		label := "[out]"
		if i < n-1 {
			label = fmt.Sprintf("[x%d]", i)
		}
		fmt.Fprintf(&b, "%s[%d:a]acrossfade=d=%.3f%s", prev, i, fadeSec, label)
		if i < n-1 {
			b.WriteByte(';')
		}
		prev = label
	}
	return b.String()
}

// DurationMS probes an MP3 stream's play length with ffprobe.
func (s *Stitcher) DurationMS(ctx context.Context, audio []byte) (int64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"-i", "pipe:0",
	}
	out, err := s.exec.Run(ctx, s.bins.FFprobe, args, audio)
	if err != nil {
		return 0, apperr.AudioProcessing(fmt.Sprintf("ffprobe duration: %v", err))
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, apperr.AudioProcessing(fmt.Sprintf("unparsable ffprobe duration %q", strings.TrimSpace(string(out))))
	}
	return int64(seconds * 1000), nil
}
