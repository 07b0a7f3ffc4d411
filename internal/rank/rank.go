// Package rank scores ingested stories against their topics and picks the
// episode's story list.
package rank

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/embed"
	"github.com/apresai/newscast/internal/ingest"
)

// diversityThreshold rejects near-duplicate stories within a topic.
const diversityThreshold = 0.85

// defaultTopicWeight applies when a story's topic is missing from the
// weight table.
const defaultTopicWeight = 0.3

type Pick struct {
	Story     ingest.Story `json:"story"`
	Score     float64      `json:"score"`
	Rationale string       `json:"rationale"`
}

type Rejection struct {
	Title  string  `json:"title"`
	Topic  string  `json:"topic"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

type Report struct {
	Considered int            `json:"considered"`
	Skipped    int            `json:"skipped_missing_embedding"`
	Selected   int            `json:"selected"`
	Targets    map[string]int `json:"targets"`
	ByTopic    map[string]int `json:"by_topic"`
	Rejections []Rejection    `json:"rejections"`
}

type scored struct {
	story      ingest.Story
	vec        []float64
	recency    float64
	topicScore float64
	authority  float64
	weight     float64
	bonus      float64
	final      float64
}

type Stage struct {
	embedder embed.Embedder
	logger   *slog.Logger

	// cache holds topic vectors keyed by keyword bundle, so reruns of the
	// same config skip the embedding call.
	cache map[string][]float64
}

func New(embedder embed.Embedder, logger *slog.Logger) *Stage {
	return &Stage{
		embedder: embedder,
		logger:   logger,
		cache:    make(map[string][]float64),
	}
}

// Run embeds stories and topics, scores every story, and fills each topic's
// quota in weight order. Picks come back sorted by topic weight then score,
// which is the order the outline prompt presents them in. No stories is not
// an error; the orchestrator decides whether an empty episode is viable.
func (s *Stage) Run(ctx context.Context, stories []ingest.Story, topics []config.TopicConfig, targetCount int) ([]Pick, *Report, error) {
	report := &Report{Targets: map[string]int{}, ByTopic: map[string]int{}}
	if len(stories) == 0 {
		return nil, report, nil
	}
	report.Considered = len(stories)

	texts := make([]string, len(stories))
	for i, st := range stories {
		texts[i] = st.Title + ". " + st.Summary
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, report, fmt.Errorf("embed stories: %w", err)
	}

	topicVecs, err := s.topicVectors(ctx, topics)
	if err != nil {
		return nil, report, fmt.Errorf("embed topics: %w", err)
	}

	weights := make(map[string]float64, len(topics))
	for _, tc := range topics {
		weights[strings.ToLower(tc.Label)] = tc.Weight
	}

	now := time.Now()
	byTopic := make(map[string][]scored)
	for i, st := range stories {
		if i >= len(vecs) || vecs[i] == nil {
			report.Skipped++
			s.logger.Warn("Missing embedding, story skipped", "title", st.Title)
			continue
		}
		sc := scoreStory(st, vecs[i], topicVecs, weights, now)
		byTopic[st.Topic] = append(byTopic[st.Topic], sc)
	}

	report.Targets = topicTargets(topics, targetCount)

	ordered := make([]config.TopicConfig, len(topics))
	copy(ordered, topics)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Weight > ordered[j].Weight })

	var picks []Pick
	for _, tc := range ordered {
		candidates := byTopic[tc.Label]
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].final > candidates[j].final })

		target := report.Targets[tc.Label]
		var accepted []scored
		for _, cand := range candidates {
			if len(accepted) >= target {
				report.Rejections = append(report.Rejections, Rejection{
					Title:  cand.story.Title,
					Topic:  tc.Label,
					Score:  cand.final,
					Reason: fmt.Sprintf("low score (topic quota %d filled)", target),
				})
				continue
			}
			if title, similar := tooSimilar(cand, accepted); similar {
				report.Rejections = append(report.Rejections, Rejection{
					Title:  cand.story.Title,
					Topic:  tc.Label,
					Score:  cand.final,
					Reason: fmt.Sprintf("diversity constraint (similar to %q)", title),
				})
				continue
			}
			accepted = append(accepted, cand)
		}
		if len(accepted) < target {
			s.logger.Warn("Topic under target", "topic", tc.Label, "want", target, "got", len(accepted))
		}
		for _, sc := range accepted {
			picks = append(picks, Pick{Story: sc.story, Score: sc.final, Rationale: rationale(sc)})
			report.ByTopic[tc.Label]++
		}
	}

	report.Selected = len(picks)
	s.logger.Info("Ranking complete",
		"considered", report.Considered,
		"selected", report.Selected,
		"skipped", report.Skipped)
	return picks, report, nil
}

// topicVectors embeds each topic's keyword bundle, reusing cached vectors
// from earlier runs of the same config.
func (s *Stage) topicVectors(ctx context.Context, topics []config.TopicConfig) (map[string][]float64, error) {
	vecs := make(map[string][]float64, len(topics))
	var missingTexts []string
	var missingLabels []string

	for _, tc := range topics {
		bundle := strings.Join(tc.Keywords, ", ")
		if bundle == "" {
			bundle = tc.Label
		}
		if v, ok := s.cache[bundle]; ok {
			vecs[tc.Label] = v
			continue
		}
		missingTexts = append(missingTexts, bundle)
		missingLabels = append(missingLabels, tc.Label)
	}

	if len(missingTexts) > 0 {
		out, err := s.embedder.Embed(ctx, missingTexts)
		if err != nil {
			return nil, err
		}
		for i, label := range missingLabels {
			if i < len(out) && out[i] != nil {
				s.cache[missingTexts[i]] = out[i]
				vecs[label] = out[i]
			}
		}
	}
	return vecs, nil
}

// scoreStory computes the blended score:
// 0.25 recency + 0.35 topic relevance x weight + 0.15 authority +
// 0.15 weight + 0.10 cross-topic bonus.
func scoreStory(story ingest.Story, vec []float64, topicVecs map[string][]float64, weights map[string]float64, now time.Time) scored {
	ageHours := now.Sub(story.Published).Hours()
	recency := 1 - ageHours/48
	if recency < 0 {
		recency = 0
	}

	weight, ok := weights[strings.ToLower(story.Topic)]
	if !ok {
		weight = defaultTopicWeight
	}

	topicScore := embed.Cosine(vec, topicVecs[story.Topic])

	var bonus float64
	for label, tv := range topicVecs {
		if label == story.Topic {
			continue
		}
		sim := embed.Cosine(vec, tv)
		if sim > 0.65 {
			bonus += weights[strings.ToLower(label)] * sim * 0.5
		}
	}
	if bonus > 1 {
		bonus = 1
	}

	authority := ingest.Authority(story.Domain)
	final := 0.25*recency + 0.35*topicScore*weight + 0.15*authority + 0.15*weight + 0.10*bonus

	return scored{
		story:      story,
		vec:        vec,
		recency:    recency,
		topicScore: topicScore,
		authority:  authority,
		weight:     weight,
		bonus:      bonus,
		final:      final,
	}
}

// topicTargets splits targetCount across topics in proportion to weight.
// Every topic keeps at least one slot; rounding slack lands on the heaviest
// topic.
func topicTargets(topics []config.TopicConfig, targetCount int) map[string]int {
	targets := make(map[string]int, len(topics))
	if targetCount <= 0 || len(topics) == 0 {
		return targets
	}

	sorted := make([]config.TopicConfig, len(topics))
	copy(sorted, topics)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })

	total := 0
	for _, tc := range sorted {
		n := int(math.Round(float64(targetCount) * tc.Weight))
		if n < 1 {
			n = 1
		}
		targets[tc.Label] = n
		total += n
	}

	if diff := targetCount - total; diff != 0 {
		top := sorted[0].Label
		targets[top] += diff
		if targets[top] < 1 {
			targets[top] = 1
		}
	}
	return targets
}

func tooSimilar(cand scored, accepted []scored) (string, bool) {
	for _, a := range accepted {
		if embed.Cosine(cand.vec, a.vec) > diversityThreshold {
			return a.story.Title, true
		}
	}
	return "", false
}

func rationale(sc scored) string {
	return fmt.Sprintf("score %.3f: recency %.2f, topic %.2f, authority %.2f, weight %.2f, bonus %.2f",
		sc.final, sc.recency, sc.topicScore, sc.authority, sc.weight, sc.bonus)
}
