package runs

import "time"

// ManifestPick is the flattened record of one selected story as persisted
// in the episode manifest.
type ManifestPick struct {
	StoryID   string    `json:"story_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	Domain    string    `json:"domain"`
	Topic     string    `json:"topic"`
	Published time.Time `json:"published"`
	Score     float64   `json:"score"`
	Rationale string    `json:"rationale"`
}

// IngestionSummary condenses the ingestion report for the manifest.
type IngestionSummary struct {
	SourcesScanned int            `json:"sources_scanned"`
	SourcesFailed  int            `json:"sources_failed"`
	TotalItems     int            `json:"total_items"`
	Accepted       int            `json:"accepted"`
	Filtered       int            `json:"filtered"`
	TopicBreakdown map[string]int `json:"topic_breakdown,omitempty"`
}

// RankingSummary condenses the ranking report for the manifest.
type RankingSummary struct {
	Considered int            `json:"considered"`
	Selected   int            `json:"selected"`
	TopPicks   []string       `json:"top_picks,omitempty"`
	Rejections []string       `json:"rejections,omitempty"`
	ByTopic    map[string]int `json:"by_topic,omitempty"`
}

// PipelineReport aggregates per-stage outcomes; it rides inside the
// manifest so the dashboard can explain an episode without re-reading
// every agent envelope.
type PipelineReport struct {
	Ingestion       IngestionSummary `json:"ingestion"`
	Ranking         RankingSummary   `json:"ranking"`
	OutlineSegments int              `json:"outline_segments"`
	OpeningHook     string           `json:"opening_hook,omitempty"`
	ScriptWords     int              `json:"script_words"`
	FactCheckEdits  []string         `json:"fact_check_edits,omitempty"`
	SafetyEdits     []string         `json:"safety_edits,omitempty"`
	SafetyRisk      string           `json:"safety_risk,omitempty"`
	APICalls        map[string]int   `json:"api_calls,omitempty"`
}

// Manifest is the per-run JSON record binding picks, hashes, urls,
// metrics, and the pipeline report. Stored at
// episodes/<run_id>_manifest.json.
type Manifest struct {
	Date           string           `json:"date"`
	RunID          string           `json:"run_id"`
	Picks          []ManifestPick   `json:"picks"`
	OutlineHash    string           `json:"outline_hash"`
	ScriptHash     string           `json:"script_hash"`
	AudioHash      string           `json:"audio_hash"`
	MP3URL         string           `json:"mp3_url"`
	DurationSec    float64          `json:"duration_sec"`
	WordCount      int              `json:"word_count"`
	StageTimingsMs map[string]int64 `json:"stage_timings_ms,omitempty"`
	PipelineReport *PipelineReport  `json:"pipeline_report,omitempty"`
	GeneratedAt    time.Time        `json:"generated_at"`
}
