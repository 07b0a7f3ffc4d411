//go:build lambda.norpc

// Play beacon: a Function URL Lambda embedded as a 1x1 GIF by podcast
// players and the dashboard. Every hit records one play for the episode
// named in the query string. The beacon never fails visibly; bad input
// and storage errors are logged and the pixel is returned anyway.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/apresai/newscast/internal/plays"
)

// transparentGIF is a 1x1 transparent pixel, base64 of the raw GIF89a.
const transparentGIF = "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

var (
	store  *plays.Store
	origin string
	log    *slog.Logger
)

func init() {
	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	table := os.Getenv("PLAYS_TABLE")
	if table == "" {
		log.Error("PLAYS_TABLE environment variable is required")
		os.Exit(1)
	}
	origin = os.Getenv("DASHBOARD_ORIGIN")
	if origin == "" {
		origin = "*"
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	store = plays.New(dynamodb.NewFromConfig(cfg), table)
}

func main() {
	lambda.Start(handler)
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  origin,
		"Access-Control-Allow-Methods": "GET, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
}

func handler(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	method := req.RequestContext.HTTP.Method
	if method == "OPTIONS" {
		return events.LambdaFunctionURLResponse{StatusCode: 204, Headers: corsHeaders()}, nil
	}
	if method != "GET" {
		return events.LambdaFunctionURLResponse{StatusCode: 405, Headers: corsHeaders()}, nil
	}

	episode := req.QueryStringParameters["episode"]
	if _, err := time.Parse("2006-01-02", episode); err != nil {
		log.WarnContext(ctx, "Beacon hit with bad episode", "episode", episode)
		return pixel(), nil
	}

	if err := store.Record(ctx, episode, time.Now().UTC()); err != nil {
		log.ErrorContext(ctx, "Failed to record play", "episode", episode, "error", err)
		return pixel(), nil
	}

	log.InfoContext(ctx, "Play recorded", "episode", episode)
	return pixel(), nil
}

func pixel() events.LambdaFunctionURLResponse {
	headers := corsHeaders()
	headers["Content-Type"] = "image/gif"
	headers["Cache-Control"] = "no-store, max-age=0"
	return events.LambdaFunctionURLResponse{
		StatusCode:      200,
		Headers:         headers,
		Body:            transparentGIF,
		IsBase64Encoded: true,
	}
}
