// Package config owns the dashboard-editable run parameters persisted at
// config/config.json. The stored record is the single source of truth at
// run start; environment variables only back it up when the store read
// fails.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/apresai/newscast/internal/storage"
)

// Key is the object-store location of the dashboard config.
const Key = "config/config.json"

// weightTolerance is how far the enabled-topic weight sum may drift from 1
// before validation rejects the record.
const weightTolerance = 1e-3

// TopicConfig is one coverage topic: its label, proportional weight, the
// feeds scanned for it, and the keywords that qualify a story.
type TopicConfig struct {
	Label    string   `json:"label"`
	Weight   float64  `json:"weight"`
	Feeds    []string `json:"feeds"`
	Keywords []string `json:"keywords"`
}

// Podcast is the show-level metadata emitted into the RSS channel.
type Podcast struct {
	BaseURL     string `json:"base_url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Email       string `json:"email"`
	Language    string `json:"language"`
	Category    string `json:"category"`
}

// Production tunes pacing and story volume.
type Production struct {
	IntroPauseMs   int    `json:"intro_pause_ms"`
	SegmentPauseMs int    `json:"segment_pause_ms"`
	OutroPauseMs   int    `json:"outro_pause_ms"`
	MinStories     int    `json:"min_stories"`
	MaxStories     int    `json:"max_stories"`
	Style          string `json:"style"`
}

// DashboardConfig is the versioned record the dashboard edits and every
// run reads.
type DashboardConfig struct {
	Version               int               `json:"version"`
	UpdatedAt             time.Time         `json:"updated_at"`
	UpdatedBy             string            `json:"updated_by"`
	Topics                []TopicConfig     `json:"topics"`
	Timezone              string            `json:"timezone"`
	RumorFilter           bool              `json:"rumor_filter"`
	BannedDomains         []string          `json:"banned_domains"`
	MinContentLength      int               `json:"min_content_length"`
	MaxStoriesPerDomain   int               `json:"max_stories_per_domain"`
	Voices                map[string]string `json:"voices"`
	PronunciationGlossary map[string]string `json:"pronunciation_glossary"`
	Podcast               Podcast           `json:"podcast"`
	WindowHours           int               `json:"window_hours"`
	TargetDurationSec     int               `json:"target_duration_sec"`
	Production            Production        `json:"production"`
}

// Load reads the stored config, returning Default() when none exists yet.
func Load(ctx context.Context, st storage.Storage) (*DashboardConfig, error) {
	data, err := st.Get(ctx, Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Default(), nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}

	var cfg DashboardConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save validates, bumps the version, stamps the editor, normalizes topic
// weights to an exact sum of 1, and persists. The previous version on disk
// decides the bump so stale in-memory copies cannot roll the counter back.
func Save(ctx context.Context, st storage.Storage, cfg *DashboardConfig, user string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	prev, err := Load(ctx, st)
	if err == nil && prev.Version > cfg.Version {
		cfg.Version = prev.Version
	}
	cfg.Version++
	cfg.UpdatedAt = time.Now().UTC()
	cfg.UpdatedBy = user
	cfg.NormalizeWeights()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := st.Put(ctx, Key, data, "application/json"); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Validate checks the structural invariants the dashboard must honor.
func (c *DashboardConfig) Validate() error {
	if len(c.Topics) == 0 {
		return errors.New("config: at least one topic is required")
	}

	seen := make(map[string]bool, len(c.Topics))
	var sum float64
	var anyEnabled bool
	for _, t := range c.Topics {
		label := strings.ToLower(strings.TrimSpace(t.Label))
		if label == "" {
			return errors.New("config: topic label must not be empty")
		}
		if seen[label] {
			return fmt.Errorf("config: duplicate topic label %q", t.Label)
		}
		seen[label] = true

		if t.Weight < 0 || t.Weight > 1 {
			return fmt.Errorf("config: topic %q weight %.3f outside [0,1]", t.Label, t.Weight)
		}
		if t.Weight > 0 {
			anyEnabled = true
			sum += t.Weight
		}
	}

	if anyEnabled && math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("config: enabled topic weights sum to %.4f, want 1", sum)
	}
	if c.Timezone == "" {
		return errors.New("config: timezone is required")
	}
	if c.Podcast.BaseURL != "" && !strings.HasPrefix(c.Podcast.BaseURL, "http://") && !strings.HasPrefix(c.Podcast.BaseURL, "https://") {
		return fmt.Errorf("config: podcast base_url %q is not an http(s) url", c.Podcast.BaseURL)
	}
	return nil
}

// NormalizeWeights rescales enabled-topic weights to an exact sum of 1.
// When every topic weighs zero, all topics get equal weight.
func (c *DashboardConfig) NormalizeWeights() {
	var sum float64
	for _, t := range c.Topics {
		if t.Weight > 0 {
			sum += t.Weight
		}
	}

	if sum == 0 {
		if len(c.Topics) == 0 {
			return
		}
		equal := 1.0 / float64(len(c.Topics))
		for i := range c.Topics {
			c.Topics[i].Weight = equal
		}
		return
	}

	for i := range c.Topics {
		if c.Topics[i].Weight > 0 {
			c.Topics[i].Weight /= sum
		}
	}
}

// EnabledTopics returns the topics with weight > 0, in stored order.
func (c *DashboardConfig) EnabledTopics() []TopicConfig {
	out := make([]TopicConfig, 0, len(c.Topics))
	for _, t := range c.Topics {
		if t.Weight > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Voice returns the configured voice id for a role, falling back to the
// built-in map when the dashboard has no override.
func (c *DashboardConfig) Voice(role string) string {
	if v, ok := c.Voices[role]; ok && v != "" {
		return v
	}
	switch role {
	case "analyst":
		return "echo"
	case "stinger":
		return "fable"
	default:
		return "shimmer"
	}
}

// TotalPauseSeconds is the scripted-silence budget the outline deducts
// from the word target: one pause after the intro, one between each pair
// of segments, one before the outro.
func (c *DashboardConfig) TotalPauseSeconds(segments int) float64 {
	if segments < 1 {
		segments = 1
	}
	ms := c.Production.IntroPauseMs + c.Production.OutroPauseMs + c.Production.SegmentPauseMs*(segments-1)
	return float64(ms) / 1000
}
