package tts

import (
	"context"
	"fmt"
	"regexp"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"golang.org/x/oauth2/google"

	"github.com/apresai/newscast/internal/agent"
)

// googleVoices maps the built-in role voices onto Chirp 3 HD equivalents.
var googleVoices = map[string]string{
	"shimmer": "en-US-Chirp3-HD-Leda",
	"echo":    "en-US-Chirp3-HD-Charon",
	"fable":   "en-US-Chirp3-HD-Puck",
}

var googleLangRe = regexp.MustCompile(`^[a-z]{2,3}-[A-Z]{2}-`)

// GoogleSynthesizer speaks through Google Cloud TTS (Chirp 3 HD), MP3
// encoded.
type GoogleSynthesizer struct {
	client *texttospeech.Client
}

// NewGoogle checks Application Default Credentials before constructing the
// client so a missing login fails with a usable hint instead of a mid-run
// RPC error.
func NewGoogle(ctx context.Context) (*GoogleSynthesizer, error) {
	if _, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform"); err != nil {
		return nil, agent.WrapErr(agent.KindProviderAuth, err,
			"google credentials (hint: run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS)")
	}

	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}
	return &GoogleSynthesizer{client: client}, nil
}

func (s *GoogleSynthesizer) Name() string { return "google" }

func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	name := voice
	if mapped, ok := googleVoices[voice]; ok {
		name = mapped
	}
	lang := "en-US"
	if m := googleLangRe.FindString(name); m != "" {
		lang = m[:len(m)-1]
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: lang,
			Name:         name,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  speed,
		},
	}

	resp, err := s.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("google tts synthesize: %w", err)
	}
	return resp.AudioContent, nil
}

func (s *GoogleSynthesizer) Close() error { return s.client.Close() }

var _ Synthesizer = (*GoogleSynthesizer)(nil)
