package ingest

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
)

var spamPhrases = []string{
	"click here",
	"you won't believe",
	"shocking",
	"one weird trick",
}

// qualityReason checks the clickbait and junk heuristics, returning "" for
// a clean story. The length check runs on the summary with the title as a
// fallback, matching what ends up in the script prompt.
func qualityReason(story Story, minContentLength int) string {
	body := story.Summary
	if body == "" {
		body = story.Title
	}
	if len(body) < minContentLength {
		return fmt.Sprintf("failed quality filter (content too short: %d chars)", len(body))
	}
	if phrase := spamPhrase(story.Title); phrase != "" {
		return fmt.Sprintf("failed quality filter (spam phrase %q)", phrase)
	}
	if nonASCIIRatio(body) > 0.3 {
		return "failed quality filter (mostly non-ascii)"
	}
	return ""
}

func spamPhrase(title string) string {
	t := strings.ToLower(title)
	for _, p := range spamPhrases {
		if strings.Contains(t, p) {
			return p
		}
	}
	return ""
}

func nonASCIIRatio(s string) float64 {
	if s == "" {
		return 0
	}
	total, high := 0, 0
	for _, r := range s {
		total++
		if r > unicode.MaxASCII {
			high++
		}
	}
	return float64(high) / float64(total)
}

// matchesKeywords reports whether any topic keyword appears in the story's
// title or summary. An empty keyword list matches everything.
func matchesKeywords(story Story, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(story.Title + " " + story.Summary)
	for _, k := range keywords {
		if strings.Contains(haystack, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// stripHTML flattens the markup RSS summaries arrive wrapped in.
func stripHTML(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
