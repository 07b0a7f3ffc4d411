package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/apresai/newscast/internal/agent"
)

// OpenAISynthesizer is the default provider: tts-1 speech with native MP3
// output and a per-call speed parameter.
type OpenAISynthesizer struct {
	client openai.Client
	model  openai.SpeechModel
}

func NewOpenAI() (*OpenAISynthesizer, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, agent.E(agent.KindProviderAuth, "OPENAI_API_KEY not set")
	}
	return &OpenAISynthesizer{
		client: openai.NewClient(option.WithAPIKey(key)),
		model:  openai.SpeechModelTTS1,
	}, nil
}

func (s *OpenAISynthesizer) Name() string { return "openai" }

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          s.model,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		Input:          text,
		Speed:          openai.Float(speed),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			kind := agent.ClassifyStatus(apierr.StatusCode, apierr.Error())
			if kind == agent.KindRateLimit || kind == agent.KindTransientNetwork {
				return nil, &RetryableError{StatusCode: apierr.StatusCode, Body: apierr.Error()}
			}
			return nil, agent.WrapErr(kind, err, "openai speech")
		}
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	return data, nil
}

func (s *OpenAISynthesizer) Close() error { return nil }

var _ Synthesizer = (*OpenAISynthesizer)(nil)
