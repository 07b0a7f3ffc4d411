// Package memory keeps the rolling listener profile updated after each
// published episode. The profile biases nothing yet; it is the record a
// future personalization pass will read.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/llm"
	"github.com/apresai/newscast/internal/rank"
	"github.com/apresai/newscast/internal/storage"
)

// ProfileKey is the object-store location of the listener profile.
const ProfileKey = "memory/listener_profile.json"

const maxRecentThemes = 8

// Profile is the rolling record of what the show has covered.
type Profile struct {
	UpdatedAt    time.Time      `json:"updated_at"`
	Episodes     int            `json:"episodes"`
	TopicCounts  map[string]int `json:"topic_counts"`
	RecentThemes []string       `json:"recent_themes,omitempty"`
	Summary      string         `json:"summary,omitempty"`
}

type profilePayload struct {
	Summary string   `json:"summary"`
	Themes  []string `json:"themes"`
}

type Stage struct {
	client llm.Client
	st     storage.Storage
	rt     *agent.Runtime
	logger *slog.Logger
}

func New(client llm.Client, st storage.Storage, rt *agent.Runtime, logger *slog.Logger) *Stage {
	return &Stage{client: client, st: st, rt: rt, logger: logger}
}

// Run folds the day's picks into the profile. Topic counts always update;
// the refreshed summary is best effort, so a model failure still leaves
// the counts persisted.
func (s *Stage) Run(ctx context.Context, runID string, picks []rank.Pick) (*Profile, error) {
	profile := s.load(ctx)

	profile.Episodes++
	if profile.TopicCounts == nil {
		profile.TopicCounts = make(map[string]int)
	}
	for _, p := range picks {
		profile.TopicCounts[strings.ToLower(p.Story.Topic)]++
	}

	if summary, themes, err := s.summarize(ctx, runID, profile, picks); err != nil {
		s.logger.Warn("Profile summary refresh failed, keeping counts only",
			"run_id", runID, "error", err)
	} else {
		profile.Summary = summary
		profile.RecentThemes = mergeThemes(profile.RecentThemes, themes)
	}

	profile.UpdatedAt = time.Now().UTC()
	if err := s.save(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.Info("Listener profile updated",
		"run_id", runID, "episodes", profile.Episodes, "topics", len(profile.TopicCounts))
	return profile, nil
}

func (s *Stage) summarize(ctx context.Context, runID string, profile *Profile, picks []rank.Pick) (string, []string, error) {
	raw, err := s.rt.LLMCall(ctx, runID, "Memory", func(ctx context.Context) (string, error) {
		return s.client.Complete(ctx, llm.Request{
			System:      memorySystemPrompt,
			Prompt:      buildMemoryPrompt(profile, picks),
			Temperature: 0.3,
			MaxTokens:   1024,
		})
	})
	if err != nil {
		return "", nil, err
	}

	var p profilePayload
	if err := llm.DecodeJSON(raw, &p); err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(p.Summary) == "" {
		return "", nil, agent.E(agent.KindParseError, "profile summary missing from completion")
	}
	return strings.TrimSpace(p.Summary), p.Themes, nil
}

// mergeThemes keeps the newest themes first, deduped case-insensitively.
func mergeThemes(old, fresh []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range append(append([]string(nil), fresh...), old...) {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if len(out) == maxRecentThemes {
			break
		}
	}
	return out
}

// load degrades to a fresh profile on any read or parse failure.
func (s *Stage) load(ctx context.Context) *Profile {
	data, err := s.st.Get(ctx, ProfileKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Listener profile unreadable, starting fresh", "error", err)
		}
		return &Profile{}
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("Listener profile corrupt, starting fresh", "error", err)
		return &Profile{}
	}
	return &p
}

func (s *Stage) save(ctx context.Context, p *Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal listener profile: %w", err)
	}
	if err := s.st.Put(ctx, ProfileKey, data, "application/json"); err != nil {
		return fmt.Errorf("save listener profile: %w", err)
	}
	return nil
}

const memorySystemPrompt = `You maintain the listener profile for a daily news podcast: a compact
record of what the show has covered lately and which threads recur.

TASK
Given the current profile and today's published stories, write an updated
two-or-three sentence coverage summary and list the recurring themes.

RULES
1. Themes are short noun phrases, at most five words each.
2. Prefer threads that span multiple days over one-off stories.
3. Never invent coverage; work only from the material given.

OUTPUT FORMAT
Return ONLY valid JSON matching this shape:
{"summary": "...", "themes": ["theme one", "theme two"]}

IMPORTANT: Output raw JSON only. No markdown code fences.`

func buildMemoryPrompt(profile *Profile, picks []rank.Pick) string {
	var b strings.Builder
	if profile.Summary != "" {
		fmt.Fprintf(&b, "CURRENT SUMMARY\n%s\n\n", profile.Summary)
	}
	if len(profile.RecentThemes) > 0 {
		fmt.Fprintf(&b, "CURRENT THEMES\n%s\n\n", strings.Join(profile.RecentThemes, "; "))
	}
	if len(profile.TopicCounts) > 0 {
		topics := make([]string, 0, len(profile.TopicCounts))
		for topic, n := range profile.TopicCounts {
			topics = append(topics, fmt.Sprintf("%s (%d)", topic, n))
		}
		sort.Strings(topics)
		fmt.Fprintf(&b, "ALL-TIME TOPIC COUNTS\n%s\n\n", strings.Join(topics, ", "))
	}

	b.WriteString("TODAY'S STORIES\n")
	for _, p := range picks {
		fmt.Fprintf(&b, "- [%s] %s\n", p.Story.Topic, p.Story.Title)
	}
	b.WriteString("\nUpdate the profile now.")
	return b.String()
}
