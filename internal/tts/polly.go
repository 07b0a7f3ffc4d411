package tts

import (
	"context"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

// pollyVoices maps the built-in role voices onto generative-engine
// equivalents.
var pollyVoices = map[string]string{
	"shimmer": "Ruth",
	"echo":    "Matthew",
	"fable":   "Amy",
}

// pollyVoiceLang maps voice IDs to their language codes.
var pollyVoiceLang = map[string]types.LanguageCode{
	"Matthew":  types.LanguageCodeEnUs,
	"Ruth":     types.LanguageCodeEnUs,
	"Stephen":  types.LanguageCodeEnUs,
	"Danielle": types.LanguageCodeEnUs,
	"Amy":      types.LanguageCodeEnGb,
	"Olivia":   types.LanguageCodeEnAu,
	"Kajal":    types.LanguageCodeEnIn,
}

// PollySynthesizer speaks through AWS Polly's generative engine. The
// engine has no rate control, so the plan's speed is ignored here.
type PollySynthesizer struct {
	client *polly.Client
}

func NewPolly(ctx context.Context) (*PollySynthesizer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for Polly: %w", err)
	}
	return &PollySynthesizer{client: polly.NewFromConfig(awsCfg)}, nil
}

func (s *PollySynthesizer) Name() string { return "polly" }

func (s *PollySynthesizer) Synthesize(ctx context.Context, text, voice string, _ float64) ([]byte, error) {
	id := voice
	if mapped, ok := pollyVoices[voice]; ok {
		id = mapped
	}
	lang, ok := pollyVoiceLang[id]
	if !ok {
		lang = types.LanguageCodeEnUs
	}

	sampleRate := "24000"
	input := &polly.SynthesizeSpeechInput{
		Engine:       types.EngineGenerative,
		OutputFormat: types.OutputFormatMp3,
		SampleRate:   &sampleRate,
		Text:         &text,
		TextType:     types.TextTypeText,
		VoiceId:      types.VoiceId(id),
		LanguageCode: lang,
	}

	resp, err := s.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("polly synthesize: %w", err)
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("polly read audio: %w", err)
	}
	return data, nil
}

func (s *PollySynthesizer) Close() error { return nil }

var _ Synthesizer = (*PollySynthesizer)(nil)
