// Package pipeline is the orchestrator: one Run produces one episode for
// one date. Stages execute strictly in order, each inside an agent
// envelope; the manifest compiled at the end binds picks, hashes, urls,
// and the per-stage report.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/audio"
	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/embed"
	"github.com/apresai/newscast/internal/ingest"
	"github.com/apresai/newscast/internal/llm"
	"github.com/apresai/newscast/internal/memory"
	"github.com/apresai/newscast/internal/outline"
	"github.com/apresai/newscast/internal/progress"
	"github.com/apresai/newscast/internal/publish"
	"github.com/apresai/newscast/internal/rank"
	"github.com/apresai/newscast/internal/runs"
	"github.com/apresai/newscast/internal/script"
	"github.com/apresai/newscast/internal/storage"
	"github.com/apresai/newscast/internal/tts"
)

// Options are the per-run inputs accepted by POST /run and the CLI.
type Options struct {
	// Date is the episode date (YYYY-MM-DD). Empty means today in the
	// configured timezone.
	Date string
	// ForceOverwrite regenerates the episode even when one already exists
	// for the date.
	ForceOverwrite bool
	// WindowHours overrides the configured ingestion window when > 0.
	WindowHours int
	// OnProgress receives phase events for live rendering. May be nil.
	OnProgress progress.Callback
}

// Result is what a run hands back: the manifest, and whether it came from
// the idempotency short-circuit instead of a fresh generation.
type Result struct {
	RunID    string         `json:"run_id"`
	Manifest *runs.Manifest `json:"manifest"`
	Reused   bool           `json:"reused"`
}

// Deps bundles the long-lived collaborators a Pipeline needs.
type Deps struct {
	Storage  storage.Storage
	Runtime  *agent.Runtime
	LLM      llm.Client
	Embedder embed.Embedder
	Synth    tts.Synthesizer
	Runs     *runs.Tracker
	Progress *progress.Tracker
	Logger   *slog.Logger
}

type Pipeline struct {
	st       storage.Storage
	rt       *agent.Runtime
	client   llm.Client
	embedder embed.Embedder
	synth    tts.Synthesizer
	runs     *runs.Tracker
	progress *progress.Tracker
	logger   *slog.Logger

	writer      *script.Writer
	factChecker *script.FactChecker
	safety      *script.Safety
	planner     *tts.Planner
	audio       *audio.Stage
	publisher   *publish.Stage
	memory      *memory.Stage

	scrapeFullText bool
}

func New(d Deps) *Pipeline {
	return &Pipeline{
		st:       d.Storage,
		rt:       d.Runtime,
		client:   d.LLM,
		embedder: d.Embedder,
		synth:    d.Synth,
		runs:     d.Runs,
		progress: d.Progress,
		logger:   d.Logger,

		writer:      script.NewWriter(d.LLM, d.Runtime, d.Logger),
		factChecker: script.NewFactChecker(d.LLM, d.Runtime, d.Logger),
		safety:      script.NewSafety(d.LLM, d.Runtime, d.Logger),
		planner:     tts.NewPlanner(d.Logger),
		audio:       audio.New(d.Synth, d.Storage, d.Runtime, d.Logger),
		publisher:   publish.New(d.Storage, d.Logger),
		memory:      memory.New(d.LLM, d.Storage, d.Runtime, d.Logger),

		scrapeFullText: envFlag("SCRAPE_FULL_TEXT"),
	}
}

// FromEnv wires a pipeline from environment configuration: the storage
// backend, LLM provider, embedder, and TTS provider.
func FromEnv(ctx context.Context, logger *slog.Logger) (*Pipeline, error) {
	st, err := storage.FromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	client, err := llm.FromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	embedder, err := embed.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	synth, err := tts.FromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("init tts provider: %w", err)
	}
	return New(Deps{
		Storage:  st,
		Runtime:  agent.NewRuntime(st, logger),
		LLM:      client,
		Embedder: embedder,
		Synth:    synth,
		Runs:     runs.NewTracker(st, logger),
		Progress: progress.NewTracker(),
		Logger:   logger,
	}), nil
}

// Progress exposes the live tracker for the HTTP surface.
func (p *Pipeline) Progress() *progress.Tracker { return p.progress }

// Runs exposes the runs index for the HTTP surface.
func (p *Pipeline) Runs() *runs.Tracker { return p.runs }

// Storage exposes the object store for the HTTP surface.
func (p *Pipeline) Storage() storage.Storage { return p.st }

// Publisher exposes the publication stage for feed rebuilds.
func (p *Pipeline) Publisher() *publish.Stage { return p.publisher }

// Run executes the full state machine for one date. With ForceOverwrite
// unset, an existing episode for the date returns its stored manifest
// without running any stage.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	cfg, err := config.Load(ctx, p.st)
	if err != nil {
		return nil, err
	}
	// Version 0 means nothing was ever saved; honor env overrides then.
	if cfg.Version == 0 {
		cfg = config.FromEnv()
	}

	date, err := resolveDate(opts.Date, cfg.Timezone)
	if err != nil {
		return nil, agent.WrapErr(agent.KindValidationError, err, "resolve date")
	}
	runID := date

	ctx, span := otel.Tracer("pipeline").Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	if opts.WindowHours > 0 {
		cfg.WindowHours = opts.WindowHours
	}
	if cfg.Podcast.BaseURL == "" {
		cfg.Podcast.BaseURL = os.Getenv("PODCAST_BASE_URL")
	}
	if len(cfg.EnabledTopics()) == 0 {
		return nil, agent.E(agent.KindValidationError, "no enabled topics: every topic weight is zero")
	}

	if !opts.ForceOverwrite {
		if exists, err := p.st.Exists(ctx, runs.EpisodeKey(runID)); err == nil && exists {
			if m, err := p.runs.GetManifest(ctx, runID); err == nil {
				p.logger.InfoContext(ctx, "Episode already published, skipping run",
					"run_id", runID, "mp3_url", m.MP3URL)
				span.SetAttributes(attribute.Bool("reused", true))
				return &Result{RunID: runID, Manifest: m, Reused: true}, nil
			}
			p.logger.WarnContext(ctx, "Episode exists but manifest unreadable, regenerating", "run_id", runID)
		}
	}

	if !p.runs.StartRun(ctx, runID, date) {
		return nil, agent.E(agent.KindValidationError, "run %s is already in progress", p.runs.ActiveRun())
	}

	r := &run{
		p:       p,
		id:      runID,
		date:    date,
		cfg:     cfg,
		emit:    opts.OnProgress,
		started: time.Now(),
		timings: make(map[string]int64),
	}
	if r.emit == nil {
		r.emit = progress.NopCallback
	}

	m, err := r.execute(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.progress.AddUpdate(runID, r.phase, "failed", err.Error(), nil)
		ev := progress.NewEvent(r.phase, err.Error(), r.started)
		ev.Error = err
		r.emit(ev)
		p.runs.FailRun(ctx, runID, err.Error())
		p.rt.ClearRun(runID)
		p.logger.ErrorContext(ctx, "Run failed",
			"run_id", runID, "phase", string(r.phase), "error", err,
			"elapsed", time.Since(r.started).Round(time.Millisecond))
		return nil, err
	}

	p.runs.CompleteRun(ctx, runID, m)
	p.rt.ClearRun(runID)
	p.logger.InfoContext(ctx, "Run complete",
		"run_id", runID, "mp3_url", m.MP3URL,
		"duration_sec", m.DurationSec, "words", m.WordCount,
		"elapsed", time.Since(r.started).Round(time.Millisecond))
	return &Result{RunID: runID, Manifest: m}, nil
}

// run carries the state of one execution through the stages.
type run struct {
	p       *Pipeline
	id      string
	date    string
	cfg     *config.DashboardConfig
	emit    progress.Callback
	started time.Time
	phase   progress.Phase
	timings map[string]int64
}

// begin marks a phase transition in the tracker and toward the renderer,
// returning the stage start time for timing.
func (r *run) begin(phase progress.Phase, msg string) time.Time {
	r.phase = phase
	r.p.progress.AddUpdate(r.id, phase, "in_progress", msg, nil)
	r.emit(progress.NewEvent(phase, msg, r.started))
	return time.Now()
}

// done records the stage timing and a completion update with details.
func (r *run) done(name, msg string, t0 time.Time, details map[string]any) {
	r.timings[name] = time.Since(t0).Milliseconds()
	r.p.progress.AddUpdate(r.id, r.phase, "completed", msg, details)
}

func (r *run) execute(ctx context.Context) (*runs.Manifest, error) {
	p := r.p
	r.begin(progress.PhaseStarting, "Run started")

	// INGEST
	t0 := r.begin(progress.PhaseIngestion, fmt.Sprintf("Scanning feeds (last %dh)", r.cfg.WindowHours))
	ingStage := ingest.New(p.logger, r.cfg.MinContentLength, r.cfg.MaxStoriesPerDomain, r.cfg.BannedDomains)
	cutoff := time.Now().Add(-time.Duration(r.cfg.WindowHours) * time.Hour)
	ing, err := agent.Execute(ctx, p.rt, "Ingestion", r.id,
		ingestIn{Topics: topicLabels(r.cfg.EnabledTopics()), WindowHours: r.cfg.WindowHours, Cutoff: cutoff},
		func(ctx context.Context, in ingestIn) (ingestOut, error) {
			stories, report, err := ingStage.Run(ctx, r.cfg.EnabledTopics(), in.Cutoff)
			if err != nil {
				return ingestOut{Report: report}, err
			}
			if len(stories) == 0 {
				return ingestOut{Report: report}, agent.E(agent.KindEmptyResult, "no stories survived ingestion filters")
			}
			return ingestOut{Stories: stories, Report: report}, nil
		})
	if err != nil {
		return nil, err
	}
	r.done("ingestion", fmt.Sprintf("%d stories accepted", len(ing.Stories)), t0,
		map[string]any{"accepted": len(ing.Stories), "filtered": len(ing.Report.Filtered), "sources_failed": ing.Report.SourcesFailed})

	// RANK
	target := storyTarget(r.cfg)
	t0 = r.begin(progress.PhaseRanking, fmt.Sprintf("Ranking %d stories, selecting %d", len(ing.Stories), target))
	rankStage := rank.New(countingEmbedder{inner: p.embedder, rt: p.rt, runID: r.id}, p.logger)
	rk, err := agent.Execute(ctx, p.rt, "Ranking", r.id,
		rankIn{Stories: len(ing.Stories), Target: target},
		func(ctx context.Context, in rankIn) (rankOut, error) {
			picks, report, err := rankStage.Run(ctx, ing.Stories, r.cfg.EnabledTopics(), in.Target)
			if err != nil {
				return rankOut{}, err
			}
			if len(picks) == 0 {
				return rankOut{Report: report}, agent.E(agent.KindEmptyResult, "ranking selected no stories")
			}
			return rankOut{Picks: picks, Report: report}, nil
		})
	if err != nil {
		return nil, err
	}
	picks := rk.Picks
	r.done("ranking", fmt.Sprintf("%d stories selected", len(picks)), t0,
		map[string]any{"selected": len(picks), "considered": rk.Report.Considered})

	// Full-text scrape hook: enrich only the picked stories, never fatal.
	if p.scrapeFullText {
		t0 = time.Now()
		_, _ = agent.Execute(ctx, p.rt, "Scraper", r.id, scrapeIn{Stories: len(picks)},
			func(ctx context.Context, in scrapeIn) (scrapeOut, error) {
				stories := make([]ingest.Story, len(picks))
				for i := range picks {
					stories[i] = picks[i].Story
				}
				enriched := ingStage.EnrichFullText(ctx, stories)
				n := 0
				for i := range picks {
					picks[i].Story = enriched[i]
					if enriched[i].FullText != "" {
						n++
					}
				}
				return scrapeOut{Enriched: n}, nil
			})
		r.timings["scrape"] = time.Since(t0).Milliseconds()
	}

	// OUTLINE
	t0 = r.begin(progress.PhaseOutline, "Structuring the episode")
	outlineStage := outline.New(p.client, p.rt, p.logger)
	o, err := agent.Execute(ctx, p.rt, "Outline", r.id, outlineIn{Picks: len(picks)},
		func(ctx context.Context, in outlineIn) (*outline.Outline, error) {
			return outlineStage.Run(ctx, r.id, picks, r.cfg)
		})
	if err != nil {
		return nil, err
	}
	r.done("outline", fmt.Sprintf("%d segments planned", len(o.Segments)), t0,
		map[string]any{"segments": len(o.Segments), "word_target": o.WordTarget})

	// SCRIPT
	t0 = r.begin(progress.PhaseScriptwriting, fmt.Sprintf("Writing ~%d words", o.WordTarget))
	draft, err := agent.Execute(ctx, p.rt, "Scriptwriter", r.id, scriptIn{Segments: len(o.Segments), WordTarget: o.WordTarget},
		func(ctx context.Context, in scriptIn) (*script.Script, error) {
			return p.writer.Run(ctx, r.id, o, picks, r.cfg)
		})
	if err != nil {
		return nil, err
	}
	r.done("script", fmt.Sprintf("%d words drafted", draft.WordCount), t0,
		map[string]any{"words": draft.WordCount, "sections": len(draft.Sections)})

	// FACTCHECK
	t0 = r.begin(progress.PhaseFactCheck, "Checking claims against sources")
	fc, err := agent.Execute(ctx, p.rt, "FactChecker", r.id, reviewIn{Sections: len(draft.Sections)},
		func(ctx context.Context, in reviewIn) (factcheckOut, error) {
			checked, edits, err := p.factChecker.Run(ctx, r.id, draft, picks)
			return factcheckOut{Script: checked, Edits: edits}, err
		})
	if err != nil {
		return nil, err
	}
	r.done("fact_check", fmt.Sprintf("%d edits", len(fc.Edits)), t0, map[string]any{"edits": len(fc.Edits)})

	// SAFETY
	t0 = r.begin(progress.PhaseSafety, "Reviewing for safety")
	sf, err := agent.Execute(ctx, p.rt, "SafetyReviewer", r.id, reviewIn{Sections: len(fc.Script.Sections)},
		func(ctx context.Context, in reviewIn) (safetyOut, error) {
			reviewed, edits, risk, err := p.safety.Run(ctx, r.id, fc.Script)
			return safetyOut{Script: reviewed, Edits: edits, Risk: risk}, err
		})
	if err != nil {
		return nil, err
	}
	final := sf.Script
	r.done("safety", fmt.Sprintf("risk %s, %d edits", sf.Risk, len(sf.Edits)), t0,
		map[string]any{"risk": sf.Risk, "edits": len(sf.Edits)})

	// TTS_PLAN
	t0 = r.begin(progress.PhaseTTS, "Planning synthesis")
	plan, err := agent.Execute(ctx, p.rt, "TTSPlanner", r.id, planIn{Sections: len(final.Sections)},
		func(ctx context.Context, in planIn) (*tts.Plan, error) {
			return p.planner.Build(final.Sections, r.cfg)
		})
	if err != nil {
		return nil, err
	}
	r.done("tts_plan", fmt.Sprintf("%d synthesis units", len(plan.Units)), t0,
		map[string]any{"units": len(plan.Units), "estimated_sec": plan.EstimatedSeconds()})

	// AUDIO
	t0 = r.begin(progress.PhaseAudio, fmt.Sprintf("Synthesizing %d units with %s", len(plan.Units), p.synth.Name()))
	audioRes, err := agent.Execute(ctx, p.rt, "Audio", r.id, audioIn{Units: len(plan.Units)},
		func(ctx context.Context, in audioIn) (*audio.Result, error) {
			return p.audio.Run(ctx, r.id, plan)
		})
	if err != nil {
		return nil, err
	}
	r.done("audio", fmt.Sprintf("%.1f minutes of audio", audioRes.DurationSec/60), t0,
		map[string]any{"bytes": audioRes.Bytes, "duration_sec": audioRes.DurationSec})

	// PUBLISH
	t0 = r.begin(progress.PhasePublishing, "Uploading episode and rebuilding feed")
	m := &runs.Manifest{
		Date:           r.date,
		RunID:          r.id,
		Picks:          manifestPicks(picks),
		OutlineHash:    contentHash(o),
		ScriptHash:     contentHash(final),
		AudioHash:      bytesHash(audioRes.Data),
		DurationSec:    audioRes.DurationSec,
		WordCount:      final.WordCount,
		StageTimingsMs: r.timings,
		PipelineReport: r.report(ing.Report, rk.Report, picks, o, final, fc.Edits, sf.Edits, sf.Risk),
		GeneratedAt:    time.Now().UTC(),
	}
	m, err = agent.Execute(ctx, p.rt, "Publisher", r.id, publishIn{Date: r.date, Bytes: audioRes.Bytes},
		func(ctx context.Context, in publishIn) (*runs.Manifest, error) {
			return p.publisher.Run(ctx, m, audioRes.Data, r.cfg.Podcast)
		})
	if err != nil {
		return nil, err
	}
	r.done("publish", "Episode published", t0, map[string]any{"mp3_url": m.MP3URL})

	// MEMORY: best effort, never fails the run.
	t0 = time.Now()
	if _, err := agent.Execute(ctx, p.rt, "Memory", r.id, memoryIn{Picks: len(picks)},
		func(ctx context.Context, in memoryIn) (*memory.Profile, error) {
			return p.memory.Run(ctx, r.id, picks)
		}); err != nil {
		p.logger.WarnContext(ctx, "Listener memory update failed", "run_id", r.id, "error", err)
	}
	r.timings["memory"] = time.Since(t0).Milliseconds()

	r.phase = progress.PhaseComplete
	p.progress.AddUpdate(r.id, progress.PhaseComplete, "completed", "Episode published",
		map[string]any{"mp3_url": m.MP3URL, "duration_sec": m.DurationSec})
	ev := progress.NewEvent(progress.PhaseComplete, "Episode published", r.started)
	ev.EpisodeURL = m.MP3URL
	ev.Duration = formatClock(m.DurationSec)
	ev.SizeMB = float64(audioRes.Bytes) / (1024 * 1024)
	r.emit(ev)

	return m, nil
}

// report compiles the manifest's pipeline report from the stage outputs.
// The API-call snapshot is taken here, before publication, so the stored
// manifest can describe the generation that produced it.
func (r *run) report(ing *ingest.Report, rk *rank.Report, picks []rank.Pick, o *outline.Outline, final *script.Script, factEdits, safetyEdits []string, risk string) *runs.PipelineReport {
	rep := &runs.PipelineReport{
		Ingestion: runs.IngestionSummary{
			SourcesScanned: len(ing.Sources),
			SourcesFailed:  ing.SourcesFailed,
			TotalItems:     ing.TotalItems,
			Accepted:       len(ing.Accepted),
			Filtered:       len(ing.Filtered),
			TopicBreakdown: ing.TopicBreakdown,
		},
		Ranking: runs.RankingSummary{
			Considered: rk.Considered,
			Selected:   rk.Selected,
			ByTopic:    rk.ByTopic,
		},
		OutlineSegments: len(o.Segments),
		OpeningHook:     o.OpeningHook,
		ScriptWords:     final.WordCount,
		FactCheckEdits:  factEdits,
		SafetyEdits:     safetyEdits,
		SafetyRisk:      risk,
		APICalls:        r.p.rt.Calls(r.id),
	}
	for i, p := range picks {
		if i == 5 {
			break
		}
		rep.Ranking.TopPicks = append(rep.Ranking.TopPicks, p.Story.Title)
	}
	for i, rej := range rk.Rejections {
		if i == 10 {
			break
		}
		rep.Ranking.Rejections = append(rep.Ranking.Rejections, fmt.Sprintf("%s (%s)", rej.Title, rej.Reason))
	}
	return rep
}

func manifestPicks(picks []rank.Pick) []runs.ManifestPick {
	out := make([]runs.ManifestPick, len(picks))
	for i, p := range picks {
		out[i] = runs.ManifestPick{
			StoryID:   p.Story.ID,
			Title:     p.Story.Title,
			URL:       p.Story.URL,
			Source:    p.Story.Source,
			Domain:    p.Story.Domain,
			Topic:     p.Story.Topic,
			Published: p.Story.Published,
			Score:     p.Score,
			Rationale: p.Rationale,
		}
	}
	return out
}

// storyTarget derives how many stories the episode covers: one per two
// minutes of target duration, clamped to the production bounds.
func storyTarget(cfg *config.DashboardConfig) int {
	n := cfg.TargetDurationSec / 120
	lo, hi := cfg.Production.MinStories, cfg.Production.MaxStories
	if lo <= 0 {
		lo = 5
	}
	if hi < lo {
		hi = lo
	}
	if n < lo {
		n = lo
	}
	if n > hi {
		n = hi
	}
	return n
}

// resolveDate validates an explicit date or derives today in the show's
// timezone. An unknown timezone falls back to UTC.
func resolveDate(input, tz string) (string, error) {
	if input != "" {
		if _, err := time.Parse("2006-01-02", input); err != nil {
			return "", fmt.Errorf("invalid date %q (want YYYY-MM-DD)", input)
		}
		return input, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format("2006-01-02"), nil
}

func topicLabels(topics []config.TopicConfig) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = t.Label
	}
	return out
}

func contentHash(v any) string {
	data, _ := json.Marshal(v)
	return bytesHash(data)
}

func bytesHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// formatClock renders seconds as M:SS for the completion event.
func formatClock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func envFlag(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}

// countingEmbedder reports each provider call into the runtime so the
// ranking envelope carries an accurate api_calls figure.
type countingEmbedder struct {
	inner embed.Embedder
	rt    *agent.Runtime
	runID string
}

var _ embed.Embedder = countingEmbedder{}

func (c countingEmbedder) Name() string { return c.inner.Name() }

func (c countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	c.rt.RecordAPICall(c.runID, "Ranking")
	return c.inner.Embed(ctx, texts)
}

// Envelope input/output shapes. Inputs stay small; outputs are the stage
// artifacts persisted under runs/<run_id>/agents/.

type ingestIn struct {
	Topics      []string  `json:"topics"`
	WindowHours int       `json:"window_hours"`
	Cutoff      time.Time `json:"cutoff"`
}

type ingestOut struct {
	Stories []ingest.Story `json:"stories"`
	Report  *ingest.Report `json:"report"`
}

type rankIn struct {
	Stories int `json:"stories"`
	Target  int `json:"target"`
}

type rankOut struct {
	Picks  []rank.Pick  `json:"picks"`
	Report *rank.Report `json:"report"`
}

type scrapeIn struct {
	Stories int `json:"stories"`
}

type scrapeOut struct {
	Enriched int `json:"enriched"`
}

type outlineIn struct {
	Picks int `json:"picks"`
}

type scriptIn struct {
	Segments   int `json:"segments"`
	WordTarget int `json:"word_target"`
}

type reviewIn struct {
	Sections int `json:"sections"`
}

type factcheckOut struct {
	Script *script.Script `json:"script"`
	Edits  []string       `json:"edits"`
}

type safetyOut struct {
	Script *script.Script `json:"script"`
	Edits  []string       `json:"edits"`
	Risk   string         `json:"risk"`
}

type planIn struct {
	Sections int `json:"sections"`
}

type audioIn struct {
	Units int `json:"units"`
}

type publishIn struct {
	Date  string `json:"date"`
	Bytes int    `json:"bytes"`
}

type memoryIn struct {
	Picks int `json:"picks"`
}
