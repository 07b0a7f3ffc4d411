// Package publish uploads the episode, persists its manifest, and rebuilds
// the podcast feed from the manifests already in the store.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/runs"
	"github.com/apresai/newscast/internal/storage"
)

// FeedKey is the object-store location of the podcast feed.
const FeedKey = "feed.xml"

// feedEpisodeCap bounds how many recent episodes the feed carries.
const feedEpisodeCap = 30

// FeedContentType is the content type the feed is stored and served with.
const FeedContentType = "application/rss+xml; charset=utf-8"

type Stage struct {
	st     storage.Storage
	logger *slog.Logger
}

func New(st storage.Storage, logger *slog.Logger) *Stage {
	return &Stage{st: st, logger: logger}
}

// Run uploads the mp3, fills in the manifest's public URL, writes the
// manifest, and rebuilds the feed. The manifest is returned with its final
// URL set.
func (s *Stage) Run(ctx context.Context, m *runs.Manifest, audio []byte, podcast config.Podcast) (*runs.Manifest, error) {
	episodeKey := runs.EpisodeKey(m.RunID)
	if err := s.st.Put(ctx, episodeKey, audio, "audio/mpeg"); err != nil {
		return nil, fmt.Errorf("upload episode: %w", err)
	}
	m.MP3URL = s.st.PublicURL(episodeKey)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := s.st.Put(ctx, runs.ManifestKey(m.RunID), data, "application/json"); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := s.RebuildFeed(ctx, podcast); err != nil {
		return nil, err
	}

	s.logger.Info("Episode published",
		"run_id", m.RunID, "url", m.MP3URL, "bytes", len(audio))
	return m, nil
}

// RebuildFeed regenerates feed.xml from the newest stored manifests.
func (s *Stage) RebuildFeed(ctx context.Context, podcast config.Podcast) error {
	manifests, err := s.loadManifests(ctx)
	if err != nil {
		return err
	}

	doc := BuildRSS(podcast, manifests, time.Now())
	if err := s.st.Put(ctx, FeedKey, doc, FeedContentType); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	s.logger.Info("Feed rebuilt", "episodes", len(manifests))
	return nil
}

// loadManifests lists every episode manifest, newest date first, capped.
// Unreadable manifests are skipped so one bad record cannot break the feed.
func (s *Stage) loadManifests(ctx context.Context) ([]*runs.Manifest, error) {
	keys, err := s.st.List(ctx, "episodes/")
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}

	var manifests []*runs.Manifest
	for _, key := range keys {
		if !strings.HasSuffix(key, "_manifest.json") {
			continue
		}
		data, err := s.st.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Manifest read failed, skipping", "key", key, "error", err)
			continue
		}
		var m runs.Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			s.logger.Warn("Manifest unreadable, skipping", "key", key, "error", err)
			continue
		}
		manifests = append(manifests, &m)
	}

	sort.SliceStable(manifests, func(i, j int) bool {
		if manifests[i].Date != manifests[j].Date {
			return manifests[i].Date > manifests[j].Date
		}
		return manifests[i].RunID > manifests[j].RunID
	})
	if len(manifests) > feedEpisodeCap {
		manifests = manifests[:feedEpisodeCap]
	}
	return manifests, nil
}
