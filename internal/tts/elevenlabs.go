package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/apresai/newscast/internal/agent"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsModelID      = "eleven_flash_v2_5"
	elevenLabsOutputFormat = "mp3_44100_128"
)

// elevenLabsVoices maps the built-in role voices onto catalog equivalents:
// Sarah, George, Lily.
var elevenLabsVoices = map[string]string{
	"shimmer": "EXAVITQu4vr4xnSDxMaL",
	"echo":    "JBFqnCBsd6RMkjVDRZzb",
	"fable":   "pFZP5JQG7iQjIQuC4Bku",
}

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings *elevenLabsVoiceParams `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceParams struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed"`
}

// ElevenLabsSynthesizer speaks through the ElevenLabs HTTP API.
type ElevenLabsSynthesizer struct {
	apiKey     string
	httpClient *http.Client
}

func NewElevenLabs() (*ElevenLabsSynthesizer, error) {
	key := os.Getenv("ELEVENLABS_API_KEY")
	if key == "" {
		return nil, agent.E(agent.KindProviderAuth, "ELEVENLABS_API_KEY not set")
	}
	return &ElevenLabsSynthesizer{
		apiKey:     key,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (s *ElevenLabsSynthesizer) Name() string { return "elevenlabs" }

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	id := voice
	if mapped, ok := elevenLabsVoices[voice]; ok {
		id = mapped
	}

	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: elevenLabsModelID,
		VoiceSettings: &elevenLabsVoiceParams{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0.0,
			UseSpeakerBoost: true,
			Speed:           speed,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s?output_format=%s", elevenLabsBaseURL, id, elevenLabsOutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
		errBody, _ := io.ReadAll(res.Body)
		return nil, &RetryableError{
			StatusCode: res.StatusCode,
			Body:       string(errBody),
			RetryAfter: retryAfterHeader(res),
		}
	}
	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(res.Body)
		kind := agent.ClassifyStatus(res.StatusCode, string(errBody))
		return nil, agent.E(kind, "elevenlabs API error (status %d): %s", res.StatusCode, string(errBody))
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func (s *ElevenLabsSynthesizer) Close() error { return nil }

func retryAfterHeader(res *http.Response) time.Duration {
	ra := res.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	secs, err := strconv.Atoi(ra)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

var _ Synthesizer = (*ElevenLabsSynthesizer)(nil)
