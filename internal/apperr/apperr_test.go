package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/voxweave/voxweave/internal/apperr"
)

func TestErrorCodesAndStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    *apperr.Error
		code   string
		status int
	}{
		{"validation", apperr.Validation("bad", nil), apperr.CodeValidation, http.StatusBadRequest},
		{"invalid provider", apperr.InvalidProvider("nope"), apperr.CodeInvalidProvider, http.StatusBadRequest},
		{"not configured", apperr.ProviderNotConfigured("google"), apperr.CodeProviderNotConfigured, http.StatusBadRequest},
		{"auth", apperr.Auth("openai", ""), apperr.CodeProviderAuth, http.StatusBadGateway},
		{"api", apperr.API("amazon", "boom"), apperr.CodeProviderAPI, http.StatusBadGateway},
		{"rate limit", apperr.RateLimit("elevenlabs"), apperr.CodeProviderRateLimit, http.StatusTooManyRequests},
		{"job not found", apperr.JobNotFound("j1"), apperr.CodeJobNotFound, http.StatusNotFound},
		{"job not completed", apperr.JobNotCompleted("j1", "pending"), apperr.CodeJobNotCompleted, http.StatusConflict},
		{"audio", apperr.AudioProcessing("bad mp3"), apperr.CodeAudioProcessing, http.StatusInternalServerError},
		{"internal", apperr.Internal(errors.New("oops")), apperr.CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if tc.err.Code != tc.code {
				t.Errorf("code = %q, want %q", tc.err.Code, tc.code)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Errorf("status = %d, want %d", tc.err.HTTPStatus, tc.status)
			}
		})
	}
}

func TestIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", apperr.RateLimit("openai"))
	if !errors.Is(err, apperr.RateLimit("")) {
		t.Error("expected errors.Is to match rate limit errors by code")
	}
	if errors.Is(err, apperr.Auth("", "")) {
		t.Error("rate limit error must not match auth errors")
	}
}

func TestInternalHidesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("pq: connection refused at 10.0.0.5")
	err := apperr.Internal(cause)
	if err.Message != "Internal server error" {
		t.Errorf("message = %q, want generic message", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to remain reachable via Unwrap")
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	t.Run("redacts key-like runs", func(t *testing.T) {
		t.Parallel()
		got := apperr.Sanitize("bad key sk_live_1234567890abcdefghij rejected")
		if strings.Contains(got, "sk_live") {
			t.Errorf("key leaked: %q", got)
		}
		if !strings.Contains(got, "[REDACTED]") {
			t.Errorf("expected [REDACTED] marker, got %q", got)
		}
	})

	t.Run("redacts URLs", func(t *testing.T) {
		t.Parallel()
		got := apperr.Sanitize("GET https://api.example.com/v1?key=abc failed")
		if strings.Contains(got, "api.example.com") {
			t.Errorf("URL leaked: %q", got)
		}
		if !strings.Contains(got, "[URL REDACTED]") {
			t.Errorf("expected [URL REDACTED] marker, got %q", got)
		}
	})

	t.Run("key and URL together", func(t *testing.T) {
		t.Parallel()
		got := apperr.Sanitize("bad key sk_live_1234567890abcdefghij at https://api.example.com/v1")
		if strings.Contains(got, "sk_live") || strings.Contains(got, "https://api.example.com") {
			t.Errorf("sensitive content leaked: %q", got)
		}
	})

	t.Run("short words untouched", func(t *testing.T) {
		t.Parallel()
		in := "voice not found"
		if got := apperr.Sanitize(in); got != in {
			t.Errorf("Sanitize(%q) = %q, want unchanged", in, got)
		}
	})
}

func TestProviderErrorMessagesAreSanitized(t *testing.T) {
	t.Parallel()

	err := apperr.API("google", "denied for key AIzaSyD1234567890abcdefghij")
	if strings.Contains(err.Message, "AIzaSy") {
		t.Errorf("constructor leaked key material: %q", err.Message)
	}
}
