// Package ingest fetches the configured RSS feeds and filters the items
// down to fresh, on-topic stories worth ranking.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/config"
)

const fetchTimeout = 15 * time.Second

type SourceResult struct {
	URL    string `json:"url"`
	Topic  string `json:"topic"`
	Items  int    `json:"items"`
	Status string `json:"status"`
}

type ItemRecord struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Topic  string `json:"topic"`
	Reason string `json:"reason,omitempty"`
}

// Report is the per-run audit trail: every source touched, every item
// rejected and why. It rides along in the agent envelope.
type Report struct {
	Sources        []SourceResult `json:"sources"`
	SourcesFailed  int            `json:"sources_failed"`
	TotalItems     int            `json:"total_items"`
	Accepted       []ItemRecord   `json:"accepted"`
	Filtered       []ItemRecord   `json:"filtered"`
	TopicBreakdown map[string]int `json:"topic_breakdown"`
}

type Stage struct {
	parser           *gofeed.Parser
	logger           *slog.Logger
	minContentLength int
	maxPerDomain     int
	banned           map[string]bool
}

func New(logger *slog.Logger, minContentLength, maxPerDomain int, bannedDomains []string) *Stage {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: fetchTimeout}
	parser.UserAgent = "newscast/1.0"
	if minContentLength <= 0 {
		minContentLength = 100
	}
	if maxPerDomain <= 0 {
		maxPerDomain = 2
	}
	banned := make(map[string]bool, len(bannedDomains))
	for _, d := range bannedDomains {
		banned[strings.ToLower(strings.TrimPrefix(d, "www."))] = true
	}
	return &Stage{
		parser:           parser,
		logger:           logger,
		minContentLength: minContentLength,
		maxPerDomain:     maxPerDomain,
		banned:           banned,
	}
}

// Run fetches every feed of every topic and returns the stories that
// survive filtering. A dead feed is recorded and skipped; the stage only
// fails when every feed failed.
func (s *Stage) Run(ctx context.Context, topics []config.TopicConfig, cutoff time.Time) ([]Story, *Report, error) {
	report := &Report{TopicBreakdown: make(map[string]int)}
	seen := make(map[string]bool)
	var stories []Story
	attempted := 0

	for _, topic := range topics {
		for _, feedURL := range topic.Feeds {
			attempted++
			feed, err := s.fetch(ctx, feedURL)
			if err != nil {
				report.SourcesFailed++
				report.Sources = append(report.Sources, SourceResult{URL: feedURL, Topic: topic.Label, Status: err.Error()})
				s.logger.Warn("Feed fetch failed", "url", feedURL, "topic", topic.Label, "error", err)
				continue
			}
			report.Sources = append(report.Sources, SourceResult{URL: feedURL, Topic: topic.Label, Items: len(feed.Items), Status: "ok"})

			googleFeed := strings.Contains(feedURL, googleNewsDomain)
			for _, item := range feed.Items {
				report.TotalItems++
				story, reject := normalize(item, feed, topic.Label, googleFeed)
				if reject == "" {
					reject = filterStory(&story, seen, topic.Keywords, cutoff, s.minContentLength, s.banned)
				}
				if reject != "" {
					report.Filtered = append(report.Filtered, ItemRecord{Title: item.Title, URL: item.Link, Topic: topic.Label, Reason: reject})
					continue
				}
				seen[story.URL] = true
				stories = append(stories, story)
			}
		}
	}

	if attempted > 0 && report.SourcesFailed == attempted {
		return nil, report, agent.E(agent.KindTransientNetwork, "all %d feeds failed", attempted)
	}

	stories = s.capPerDomain(stories, report)
	for _, st := range stories {
		report.Accepted = append(report.Accepted, ItemRecord{Title: st.Title, URL: st.URL, Topic: st.Topic})
		report.TopicBreakdown[st.Topic]++
	}

	s.logger.Info("Ingestion complete",
		"accepted", len(stories),
		"filtered", len(report.Filtered),
		"sources", attempted,
		"failed", report.SourcesFailed)
	return stories, report, nil
}

func (s *Stage) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	feed, err := s.parser.ParseURLWithContext(feedURL, fctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	return feed, nil
}

func normalize(item *gofeed.Item, feed *gofeed.Feed, topic string, googleFeed bool) (Story, string) {
	link := strings.TrimSpace(item.Link)
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return Story{}, "missing url or title"
	}

	summary := stripHTML(item.Description)
	if summary == "" {
		summary = stripHTML(item.Content)
	}

	published := time.Now()
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	domain := DomainOf(link)
	googleNews := googleFeed || domain == googleNewsDomain
	if domain == googleNewsDomain {
		if recovered := domainFromGoogleTitle(title); recovered != "" {
			domain = recovered
		}
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = domain
	}

	return Story{
		ID:         StoryID(link),
		Title:      title,
		URL:        link,
		Summary:    summary,
		Source:     source,
		Domain:     domain,
		Topic:      topic,
		Published:  published,
		GoogleNews: googleNews,
	}, ""
}

// filterStory applies the rejection rules in a fixed order so report
// reasons stay comparable across runs. Google News items are pre-curated
// and skip the quality and keyword checks.
func filterStory(story *Story, seen map[string]bool, keywords []string, cutoff time.Time, minContentLength int, banned map[string]bool) string {
	if seen[story.URL] {
		return "duplicate url"
	}
	if banned[strings.TrimPrefix(story.Domain, "www.")] {
		return fmt.Sprintf("domain banned by config (%s)", story.Domain)
	}
	if story.Published.Before(cutoff) {
		return fmt.Sprintf("outside window (%.0f hours old)", time.Since(story.Published).Hours())
	}
	if !story.GoogleNews {
		if reason := qualityReason(*story, minContentLength); reason != "" {
			return reason
		}
	}
	story.Tier = SourceTier(story.Domain)
	if story.Tier == 3 || story.Tier == 5 {
		return fmt.Sprintf("source tier %d excluded (%s)", story.Tier, story.Domain)
	}
	if !story.GoogleNews && !matchesKeywords(*story, keywords) {
		return "no topic keyword match"
	}
	return ""
}

// capPerDomain keeps the newest maxPerDomain stories per (domain, topic)
// pair so one outlet cannot own a whole segment.
func (s *Stage) capPerDomain(stories []Story, report *Report) []Story {
	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].Published.After(stories[j].Published)
	})

	counts := make(map[string]int)
	kept := stories[:0]
	for _, st := range stories {
		key := st.Domain + "|" + st.Topic
		if counts[key] >= s.maxPerDomain {
			report.Filtered = append(report.Filtered, ItemRecord{
				Title:  st.Title,
				URL:    st.URL,
				Topic:  st.Topic,
				Reason: fmt.Sprintf("over domain cap (%s)", st.Domain),
			})
			s.logger.Debug("Dropped over domain cap", "domain", st.Domain, "topic", st.Topic, "title", st.Title)
			continue
		}
		counts[key]++
		kept = append(kept, st)
	}
	return kept
}
