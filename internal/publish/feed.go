package publish

import (
	"fmt"
	"strings"
	"time"

	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/runs"
)

// audioBytesPerSecond recovers the enclosure byte length from the stored
// duration estimate (128 kbps MP3).
const audioBytesPerSecond = 16000

// xmlEscaper covers the five entities podcast validators require in text
// nodes. URLs are emitted raw; escaping them breaks some players.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

func esc(s string) string { return xmlEscaper.Replace(s) }

// BuildRSS renders the canonical RSS 2.0 document with itunes and atom
// extensions. With no manifests it still emits a valid channel so podcast
// apps see an empty show rather than an error.
func BuildRSS(p config.Podcast, manifests []*runs.Manifest, now time.Time) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd" xmlns:atom="http://www.w3.org/2005/Atom">` + "\n")
	b.WriteString("  <channel>\n")

	fmt.Fprintf(&b, "    <title>%s</title>\n", esc(p.Title))
	fmt.Fprintf(&b, "    <link>%s</link>\n", p.BaseURL)
	fmt.Fprintf(&b, "    <description>%s</description>\n", esc(p.Description))
	fmt.Fprintf(&b, "    <language>%s</language>\n", esc(p.Language))
	fmt.Fprintf(&b, "    <lastBuildDate>%s</lastBuildDate>\n", now.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "    <atom:link href=\"%s/podcast/feed\" rel=\"self\" type=\"application/rss+xml\"/>\n", p.BaseURL)
	fmt.Fprintf(&b, "    <itunes:author>%s</itunes:author>\n", esc(p.Author))
	fmt.Fprintf(&b, "    <itunes:summary>%s</itunes:summary>\n", esc(p.Description))
	b.WriteString("    <itunes:owner>\n")
	fmt.Fprintf(&b, "      <itunes:name>%s</itunes:name>\n", esc(p.Author))
	fmt.Fprintf(&b, "      <itunes:email>%s</itunes:email>\n", esc(p.Email))
	b.WriteString("    </itunes:owner>\n")
	fmt.Fprintf(&b, "    <itunes:image href=\"%s/cover.jpg\"/>\n", p.BaseURL)
	fmt.Fprintf(&b, "    <itunes:category text=\"%s\"/>\n", esc(p.Category))
	b.WriteString("    <itunes:explicit>no</itunes:explicit>\n")

	for _, m := range manifests {
		writeItem(&b, p, m)
	}

	b.WriteString("  </channel>\n")
	b.WriteString("</rss>\n")
	return []byte(b.String())
}

func writeItem(b *strings.Builder, p config.Podcast, m *runs.Manifest) {
	b.WriteString("    <item>\n")
	fmt.Fprintf(b, "      <title>%s</title>\n", esc(episodeTitle(p, m)))
	fmt.Fprintf(b, "      <description>%s</description>\n", esc(episodeDescription(m)))
	fmt.Fprintf(b, "      <pubDate>%s</pubDate>\n", pubDate(m).Format(time.RFC1123))
	fmt.Fprintf(b, "      <enclosure url=\"%s\" length=\"%d\" type=\"audio/mpeg\"/>\n",
		m.MP3URL, int64(m.DurationSec*audioBytesPerSecond))
	fmt.Fprintf(b, "      <guid isPermaLink=\"false\">%s</guid>\n", esc(m.RunID))
	fmt.Fprintf(b, "      <itunes:duration>%s</itunes:duration>\n", formatDuration(int(m.DurationSec)))
	b.WriteString("    </item>\n")
}

func episodeTitle(p config.Podcast, m *runs.Manifest) string {
	if t, err := time.Parse("2006-01-02", m.Date); err == nil {
		return fmt.Sprintf("%s: %s", p.Title, t.Format("January 2, 2006"))
	}
	return fmt.Sprintf("%s: %s", p.Title, m.Date)
}

// episodeDescription summarizes the episode from its picks, capped so the
// feed stays skimmable.
func episodeDescription(m *runs.Manifest) string {
	if len(m.Picks) == 0 {
		return "Daily news episode."
	}
	titles := make([]string, 0, 5)
	for _, pick := range m.Picks {
		titles = append(titles, pick.Title)
		if len(titles) == 5 {
			break
		}
	}
	suffix := "."
	if len(m.Picks) > len(titles) {
		suffix = fmt.Sprintf(", and %d more.", len(m.Picks)-len(titles))
	}
	return "In this episode: " + strings.Join(titles, "; ") + suffix
}

// pubDate prefers the real generation instant; date-only manifests fall
// back to midnight UTC of the episode date.
func pubDate(m *runs.Manifest) time.Time {
	if !m.GeneratedAt.IsZero() {
		return m.GeneratedAt.UTC()
	}
	if t, err := time.Parse("2006-01-02", m.Date); err == nil {
		return t.UTC()
	}
	return time.Unix(0, 0).UTC()
}

func formatDuration(totalSec int) string {
	if totalSec < 0 {
		totalSec = 0
	}
	h := totalSec / 3600
	mSec := totalSec % 3600
	return fmt.Sprintf("%d:%02d:%02d", h, mSec/60, mSec%60)
}

// Synthesize builds a fallback feed straight from the runs index when no
// stored feed.xml exists. Only successful runs with an episode URL appear.
func Synthesize(p config.Podcast, summaries []runs.RunSummary, now time.Time) []byte {
	var manifests []*runs.Manifest
	for _, sum := range summaries {
		if sum.Status != runs.StatusSuccess || sum.EpisodeURL == "" {
			continue
		}
		m := &runs.Manifest{
			Date:   sum.Date,
			RunID:  sum.RunID,
			MP3URL: sum.EpisodeURL,
		}
		if sum.CompletedAt != nil {
			m.GeneratedAt = *sum.CompletedAt
		}
		manifests = append(manifests, m)
		if len(manifests) == feedEpisodeCap {
			break
		}
	}
	return BuildRSS(p, manifests, now)
}
