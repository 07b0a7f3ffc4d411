// Package tts turns the reviewed script into a synthesis plan and speaks
// each unit through one of several provider backends. Providers return MP3
// so the assembler can concatenate buffers directly.
package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Synthesizer speaks one unit of text. voice is an opaque provider
// identifier; providers map the built-in role voices (shimmer, echo,
// fable) to native equivalents and pass anything else through.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
	Close() error
}

// Retry constants shared by all providers.
const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 1 * time.Second
	defaultBackoffMulti   = 2
	defaultMaxBackoff     = 10 * time.Second
)

// RetryableError signals that the synthesis call can be retried. RetryAfter
// carries the provider's requested delay when it sent one.
type RetryableError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// WithRetry executes fn with exponential backoff on RetryableError. A
// provider-supplied Retry-After overrides the computed backoff for that
// attempt.
func WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= defaultMaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}
		lastErr = err

		if attempt < defaultMaxAttempts {
			delay := backoff
			if re.RetryAfter > 0 {
				delay = re.RetryAfter
			}
			if delay > defaultMaxBackoff {
				delay = defaultMaxBackoff
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			backoff *= time.Duration(defaultBackoffMulti)
		}
	}

	return lastErr
}

// FromEnv builds the provider named by TTS_PROVIDER. Default is openai.
func FromEnv(ctx context.Context) (Synthesizer, error) {
	name := strings.ToLower(os.Getenv("TTS_PROVIDER"))
	switch name {
	case "", "openai":
		return NewOpenAI()
	case "google":
		return NewGoogle(ctx)
	case "polly":
		return NewPolly(ctx)
	case "elevenlabs":
		return NewElevenLabs()
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose openai, google, polly, or elevenlabs", name)
	}
}
