package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/voxweave/voxweave/internal/apperr"
	"github.com/voxweave/voxweave/pkg/provider/tts"
)

// Retry policy for rate-limited synthesis calls. Only rate-limit errors are
// retried; anything else propagates immediately.
const (
	maxRetries     = 3
	initialBackoff = time.Second
)

// sleepFunc pauses for d or returns early when ctx is cancelled. Injectable
// so tests run without real waits.
type sleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// synthesizeWithRetry calls provider.Synthesize, retrying rate-limit errors
// with exponential backoff (1s, 2s, 4s). The final rate-limit error is
// returned unwrapped after maxRetries retries.
func synthesizeWithRetry(ctx context.Context, provider tts.Provider, text, voiceID string, speed float64, sleep sleepFunc) (*tts.SynthesisResult, error) {
	for attempt := 0; ; attempt++ {
		res, err := provider.Synthesize(ctx, text, voiceID, speed)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, apperr.RateLimit("")) || attempt == maxRetries {
			return nil, err
		}
		backoff := initialBackoff * (1 << attempt)
		if sleepErr := sleep(ctx, backoff); sleepErr != nil {
			return nil, sleepErr
		}
	}
}
