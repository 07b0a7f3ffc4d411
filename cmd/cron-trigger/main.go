//go:build lambda.norpc

// Cron trigger: a Function URL Lambda fired by the EventBridge schedule
// each morning. It resolves today's date in the show timezone and invokes
// POST /run on the app, forwarding the shared X-Cron-Secret. The app's
// response body is passed back so the schedule's invocation log carries
// the run metrics.
package main

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

var (
	runURL     string
	cronSecret string
	loc        *time.Location
	httpClient *http.Client
	log        *slog.Logger
)

func init() {
	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	base := strings.TrimSuffix(os.Getenv("PODCAST_BASE_URL"), "/")
	if base == "" {
		log.Error("PODCAST_BASE_URL environment variable is required")
		os.Exit(1)
	}
	runURL = base + "/run"

	cronSecret = os.Getenv("CRON_SECRET")
	if cronSecret == "" {
		log.Warn("CRON_SECRET is not set; trigger and app are both unauthenticated")
	}

	tz := os.Getenv("TIMEZONE")
	if tz == "" {
		tz = "America/New_York"
	}
	var err error
	loc, err = time.LoadLocation(tz)
	if err != nil {
		log.Warn("Unknown TIMEZONE, using UTC", "timezone", tz)
		loc = time.UTC
	}

	// A full pipeline run takes several minutes; match the Lambda cap.
	httpClient = &http.Client{Timeout: 15 * time.Minute}
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	if req.RequestContext.HTTP.Method == "OPTIONS" {
		return events.LambdaFunctionURLResponse{StatusCode: 204}, nil
	}
	if req.RequestContext.HTTP.Method != "POST" {
		return respond(405, map[string]any{"success": false, "error": "method not allowed"}), nil
	}

	if cronSecret != "" {
		got := getHeader(req.Headers, "x-cron-secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(cronSecret)) != 1 {
			log.WarnContext(ctx, "Trigger rejected: bad X-Cron-Secret")
			return respond(401, map[string]any{"success": false, "error": "invalid or missing X-Cron-Secret"}), nil
		}
	}

	date := time.Now().In(loc).Format("2006-01-02")
	if override := req.QueryStringParameters["date"]; override != "" {
		if _, err := time.Parse("2006-01-02", override); err != nil {
			return respond(400, map[string]any{"success": false, "error": "date must be YYYY-MM-DD"}), nil
		}
		date = override
	}
	payload := map[string]any{"date": date}
	if force, err := strconv.ParseBool(req.QueryStringParameters["force"]); err == nil {
		payload["force_overwrite"] = force
	}

	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, runURL, bytes.NewReader(body))
	if err != nil {
		return respond(500, map[string]any{"success": false, "error": err.Error()}), nil
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if cronSecret != "" {
		httpReq.Header.Set("X-Cron-Secret", cronSecret)
	}

	log.InfoContext(ctx, "Triggering run", "date", date, "url", runURL)
	start := time.Now()

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		log.ErrorContext(ctx, "Run request failed", "date", date, "error", err)
		return respond(502, map[string]any{"success": false, "date": date, "error": err.Error()}), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.ErrorContext(ctx, "Failed to read run response", "date", date, "error", err)
		return respond(502, map[string]any{"success": false, "date": date, "error": err.Error()}), nil
	}

	elapsed := time.Since(start)
	if resp.StatusCode != http.StatusOK {
		log.ErrorContext(ctx, "Run failed", "date", date, "status", resp.StatusCode,
			"elapsed_ms", elapsed.Milliseconds(), "body", trim(respBody, 2000))
		return respond(502, map[string]any{
			"success": false,
			"date":    date,
			"status":  resp.StatusCode,
			"error":   trim(respBody, 2000),
		}), nil
	}

	log.InfoContext(ctx, "Run completed", "date", date, "elapsed_ms", elapsed.Milliseconds())
	return events.LambdaFunctionURLResponse{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(respBody),
	}, nil
}

func respond(status int, payload map[string]any) events.LambdaFunctionURLResponse {
	body, _ := json.Marshal(payload)
	return events.LambdaFunctionURLResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// getHeader does a case-insensitive header lookup. Function URL headers
// arrive lowercased, but we handle both cases.
func getHeader(headers map[string]string, key string) string {
	key = strings.ToLower(key)
	for k, v := range headers {
		if strings.ToLower(k) == key {
			return v
		}
	}
	return ""
}

func trim(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
