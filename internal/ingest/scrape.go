package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

const (
	scrapeTimeout = 20 * time.Second

	// maxArticleBytes caps a fetched article body (25 MB).
	maxArticleBytes = 25 * 1024 * 1024

	// maxFullText is how much extracted text a story carries into the
	// script prompt.
	maxFullText = 4000
)

// EnrichFullText fetches article bodies for the accepted stories and
// attaches the readable text. Aggregator links are skipped (they bounce
// through consent pages) and per-story failures only cost that story its
// full text.
func (s *Stage) EnrichFullText(ctx context.Context, stories []Story) []Story {
	client := &http.Client{Timeout: scrapeTimeout}
	enriched := 0

	for i := range stories {
		if stories[i].GoogleNews {
			continue
		}
		text, err := fetchArticle(ctx, client, stories[i].URL)
		if err != nil {
			s.logger.Debug("Full-text fetch failed", "url", stories[i].URL, "error", err)
			continue
		}
		if len(text) > maxFullText {
			text = text[:maxFullText]
		}
		stories[i].FullText = text
		enriched++
	}

	s.logger.Info("Full-text enrichment complete", "enriched", enriched, "stories", len(stories))
	return stories
}

func fetchArticle(ctx context.Context, client *http.Client, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %s: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("could not fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArticleBytes))
	if err != nil {
		return "", fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	if isPDF(resp.Header.Get("Content-Type"), rawURL) {
		return pdfText(data)
	}

	article, err := readability.FromReader(bytes.NewReader(data), parsed)
	if err != nil {
		return "", fmt.Errorf("could not extract article from %s: %w", rawURL, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no readable content extracted from %s", rawURL)
	}
	return text, nil
}

func isPDF(contentType, rawURL string) bool {
	return strings.Contains(contentType, "application/pdf") ||
		strings.HasSuffix(strings.ToLower(rawURL), ".pdf")
}

// pdfText pulls plain text out of press releases and whitepapers that feeds
// occasionally link directly.
func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("could not read PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // Skip pages that fail to extract
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text in PDF, it may be scanned or image-based")
	}
	return text, nil
}
