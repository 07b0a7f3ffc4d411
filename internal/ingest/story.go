package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// Story is a normalized feed item. IDs are stable across runs so manifests
// and agent envelopes can refer to the same pick.
type Story struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Summary    string    `json:"summary"`
	FullText   string    `json:"full_text,omitempty"`
	Source     string    `json:"source"`
	Domain     string    `json:"domain"`
	Topic      string    `json:"topic"`
	Published  time.Time `json:"published"`
	Tier       int       `json:"tier"`
	GoogleNews bool      `json:"google_news"`
}

// StoryID is the first 16 hex characters of the URL's SHA-256.
func StoryID(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:16]
}

// DomainOf extracts the lowercased host without a www. prefix. An
// unparseable URL yields "".
func DomainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
}

// domainFromGoogleTitle recovers the publisher domain from the
// "Headline - Source" suffix Google News appends. A bare publisher name
// becomes name.com; anything already containing a dot is taken as a domain.
func domainFromGoogleTitle(title string) string {
	idx := strings.LastIndex(title, " - ")
	if idx < 0 {
		return ""
	}
	source := strings.ToLower(strings.TrimSpace(title[idx+3:]))
	source = strings.TrimPrefix(source, "www.")
	if source == "" {
		return ""
	}
	if strings.Contains(source, ".") {
		return source
	}
	return strings.ReplaceAll(source, " ", "") + ".com"
}
