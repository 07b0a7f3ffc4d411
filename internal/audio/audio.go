// Package audio synthesizes the plan's units and assembles the episode
// MP3. Units are spoken concurrently in small batches but concatenated in
// plan order; MP3 frames are self-framed, so byte concatenation holds.
package audio

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/storage"
	"github.com/apresai/newscast/internal/tts"
)

const (
	maxConcurrent          = 2
	defaultInterBatchDelay = 500 * time.Millisecond

	// 128 kbps MP3 is 16 KB per second; duration is estimated, not decoded.
	bytesPerSecond = 16000

	introMusicKey = "music/intro.mp3"
	outroMusicKey = "music/outro.mp3"

	agentName = "Audio"
)

// Result is the assembled episode.
type Result struct {
	Data        []byte  `json:"-"`
	DurationSec float64 `json:"duration_sec"`
	Units       int     `json:"units"`
	Bytes       int     `json:"bytes"`
}

type Stage struct {
	synth  tts.Synthesizer
	st     storage.Storage
	rt     *agent.Runtime
	logger *slog.Logger

	// batch pause between pairs of synthesis calls, shortened in tests
	delay time.Duration
}

func New(synth tts.Synthesizer, st storage.Storage, rt *agent.Runtime, logger *slog.Logger) *Stage {
	return &Stage{
		synth:  synth,
		st:     st,
		rt:     rt,
		logger: logger,
		delay:  defaultInterBatchDelay,
	}
}

// Run speaks every unit, two at a time with a pause between batches to
// stay under provider rate limits, then assembles intro music, speech, and
// outro music into one buffer. Music is best effort; a missing or
// unreadable file never fails the run.
func (s *Stage) Run(ctx context.Context, runID string, plan *tts.Plan) (*Result, error) {
	if len(plan.Units) == 0 {
		return nil, agent.E(agent.KindEmptyResult, "no synthesis units to speak")
	}

	buffers := make([][]byte, len(plan.Units))
	for start := 0; start < len(plan.Units); start += maxConcurrent {
		end := start + maxConcurrent
		if end > len(plan.Units) {
			end = len(plan.Units)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				data, err := s.speakUnit(gctx, runID, plan.Units[i])
				if err != nil {
					return err
				}
				buffers[i] = data
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if end < len(plan.Units) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	var out bytes.Buffer
	if intro := s.musicBytes(ctx, introMusicKey); intro != nil {
		out.Write(intro)
	}
	for _, buf := range buffers {
		out.Write(buf)
	}
	if outro := s.musicBytes(ctx, outroMusicKey); outro != nil {
		out.Write(outro)
	}

	data := normalizeLoudness(out.Bytes())
	res := &Result{
		Data:        data,
		DurationSec: float64(len(data)) / bytesPerSecond,
		Units:       len(plan.Units),
		Bytes:       len(data),
	}
	s.logger.Info("Episode assembled",
		"run_id", runID, "units", res.Units, "bytes", res.Bytes, "duration_sec", res.DurationSec)
	return res, nil
}

func (s *Stage) speakUnit(ctx context.Context, runID string, u tts.Unit) ([]byte, error) {
	var data []byte
	err := tts.WithRetry(ctx, func() error {
		s.rt.RecordAPICall(runID, agentName)
		out, serr := s.synth.Synthesize(ctx, u.Text, u.Voice, u.Speed)
		if serr != nil {
			return serr
		}
		data = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, agent.E(agent.KindEmptyResult, "%s returned empty audio for unit %s", s.synth.Name(), u.ID)
	}
	s.logger.Debug("Unit spoken", "unit", u.ID, "voice", u.Voice, "bytes", len(data))
	return data, nil
}

// musicBytes fetches a music sting. Absence is normal; read failures are
// logged and skipped.
func (s *Stage) musicBytes(ctx context.Context, key string) []byte {
	data, err := s.st.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("No music file", "key", key)
		} else {
			s.logger.Warn("Music fetch failed, skipping", "key", key, "error", err)
		}
		return nil
	}
	return data
}

// normalizeLoudness is the mastering seam. It currently passes audio
// through unchanged.
func normalizeLoudness(data []byte) []byte { return data }
