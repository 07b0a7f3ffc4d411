package config

import (
	"os"
	"strconv"
)

// Default returns the starter record a fresh install runs with before the
// dashboard ever saves. Topic seeds mirror the show's standing beats.
func Default() *DashboardConfig {
	return &DashboardConfig{
		Version: 0,
		Topics: []TopicConfig{
			{
				Label:  "AI",
				Weight: 0.5,
				Feeds: []string{
					"https://news.google.com/rss/search?q=artificial+intelligence&hl=en-US&gl=US&ceid=US:en",
					"https://techcrunch.com/category/artificial-intelligence/feed/",
				},
				Keywords: []string{"ai", "artificial intelligence", "machine learning", "llm", "openai", "anthropic"},
			},
			{
				Label:  "Verizon",
				Weight: 0.3,
				Feeds: []string{
					"https://news.google.com/rss/search?q=verizon&hl=en-US&gl=US&ceid=US:en",
				},
				Keywords: []string{"verizon", "5g", "fios", "telecom"},
			},
			{
				Label:  "Accenture",
				Weight: 0.2,
				Feeds: []string{
					"https://news.google.com/rss/search?q=accenture&hl=en-US&gl=US&ceid=US:en",
				},
				Keywords: []string{"accenture", "consulting", "systems integration"},
			},
		},
		Timezone:            "America/New_York",
		RumorFilter:         true,
		MinContentLength:    100,
		MaxStoriesPerDomain: 2,
		Voices: map[string]string{
			"host":    "shimmer",
			"analyst": "echo",
			"stinger": "fable",
		},
		PronunciationGlossary: map[string]string{},
		Podcast: Podcast{
			Title:       "Daily Rohit News",
			Description: "A daily audio briefing on AI, Verizon, and Accenture.",
			Author:      "Rohit",
			Email:       "rohit@example.com",
			Language:    "en-us",
			Category:    "News",
		},
		WindowHours:       36,
		TargetDurationSec: 900,
		Production: Production{
			IntroPauseMs:   500,
			SegmentPauseMs: 800,
			OutroPauseMs:   500,
			MinStories:     5,
			MaxStories:     8,
			Style:          "sharp, conversational, zero filler",
		},
	}
}

// FromEnv builds a config from defaults plus environment overrides. Used
// only when the stored record cannot be read.
func FromEnv() *DashboardConfig {
	cfg := Default()
	cfg.Timezone = EnvOr("TIMEZONE", cfg.Timezone)
	cfg.RumorFilter = envBool("RUMOR_FILTER", cfg.RumorFilter)
	cfg.MinContentLength = envInt("MIN_CONTENT_LENGTH", cfg.MinContentLength)
	cfg.MaxStoriesPerDomain = envInt("MAX_STORIES_PER_DOMAIN", cfg.MaxStoriesPerDomain)
	cfg.WindowHours = envInt("WINDOW_HOURS", cfg.WindowHours)
	cfg.TargetDurationSec = envInt("TARGET_DURATION_SECONDS", cfg.TargetDurationSec)

	cfg.Podcast.BaseURL = EnvOr("PODCAST_BASE_URL", cfg.Podcast.BaseURL)
	cfg.Podcast.Title = EnvOr("PODCAST_TITLE", cfg.Podcast.Title)
	cfg.Podcast.Description = EnvOr("PODCAST_DESCRIPTION", cfg.Podcast.Description)
	cfg.Podcast.Author = EnvOr("PODCAST_AUTHOR", cfg.Podcast.Author)
	cfg.Podcast.Email = EnvOr("PODCAST_EMAIL", cfg.Podcast.Email)
	cfg.Podcast.Language = EnvOr("PODCAST_LANGUAGE", cfg.Podcast.Language)
	cfg.Podcast.Category = EnvOr("PODCAST_CATEGORY", cfg.Podcast.Category)
	return cfg
}

// EnvOr returns the env value for key, or fallback when unset or empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
