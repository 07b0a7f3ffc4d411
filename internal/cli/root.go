// Package cli is the newscast command tree. Structured logs go to stderr
// (or are discarded) so the progress renderer owns the terminal; only the
// serve command logs to stdout.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/mcpserver"
	"github.com/apresai/newscast/internal/observability"
	"github.com/apresai/newscast/internal/pipeline"
	"github.com/apresai/newscast/internal/plays"
	"github.com/apresai/newscast/internal/progress"
	"github.com/apresai/newscast/internal/server"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "newscast",
	Short: "Produce and publish a daily AI-generated news podcast",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("newscast %s\n", Version)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate and publish an episode for a date (default today)",
	RunE:  runRun,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, podcast feed, and dashboard endpoints",
	RunE:  runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tool surface over stdio",
	RunE:  runMCP,
}

var (
	flagDate        string
	flagForce       bool
	flagWindowHours int
	flagVerbose     bool
	flagAddr        string
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	runCmd.Flags().StringVarP(&flagDate, "date", "d", "", "Episode date (YYYY-MM-DD, default today in the configured timezone)")
	runCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "Regenerate even when the date's episode already exists")
	runCmd.Flags().IntVarP(&flagWindowHours, "window-hours", "w", 0, "Override the ingestion lookback window")
	runCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log every pipeline step instead of drawing a progress bar")
	serveCmd.Flags().StringVarP(&flagAddr, "addr", "a", "", "Listen address (default :$PORT or :8080)")
}

// Execute runs the root command under the process signal context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func runRun(cmd *cobra.Command, args []string) error {
	if flagDate != "" {
		if _, err := time.Parse("2006-01-02", flagDate); err != nil {
			return fmt.Errorf("invalid date %q: must be YYYY-MM-DD", flagDate)
		}
	}
	if flagWindowHours < 0 {
		return fmt.Errorf("invalid window hours %d: must be positive", flagWindowHours)
	}

	var logOut io.Writer = io.Discard
	if flagVerbose {
		logOut = os.Stderr
	}
	logger := observability.NewLogger(logOut, "newscast")
	slog.SetDefault(logger)

	ctx := cmd.Context()
	pipe, err := pipeline.FromEnv(ctx, logger)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Date:           flagDate,
		ForceOverwrite: flagForce,
		WindowHours:    flagWindowHours,
	}

	// The renderer owns stdout when logs are quiet.
	if !flagVerbose {
		r := progress.NewBarRenderer(os.Stdout)
		defer r.Finish()
		opts.OnProgress = r.Handle
	}

	res, err := pipe.Run(ctx, opts)
	if err != nil {
		return err
	}
	// The idempotency short-circuit emits no progress events, so say what
	// happened explicitly.
	if res.Reused {
		fmt.Printf("Episode for %s already published: %s\n", res.RunID, res.Manifest.MP3URL)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := observability.NewLogger(os.Stdout, "newscast")
	slog.SetDefault(logger)

	if err := hydrateSecrets(ctx, logger); err != nil {
		logger.Warn("Secret hydration failed, continuing with environment", "error", err)
	}

	tp, err := observability.InitTracer(ctx, "newscast", Version)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	pipe, err := pipeline.FromEnv(ctx, logger)
	if err != nil {
		return err
	}
	playStore, err := plays.FromEnv(ctx)
	if err != nil {
		logger.Warn("Play tracking disabled", "error", err)
	}

	addr := flagAddr
	if addr == "" {
		addr = ":" + config.EnvOr("PORT", "8080")
	}

	srv := server.NewServer(pipe, playStore, logger)
	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	logger.Info("Server listening", "addr", addr)

	var mcpSrv *mcpserver.Server
	if on, _ := strconv.ParseBool(os.Getenv("MCP_HTTP")); on {
		mcpSrv = mcpserver.New(mcpserver.DefaultConfig(), pipe, logger, ctx)
		go func() {
			if err := mcpSrv.StartHTTP(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("mcp server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if mcpSrv != nil {
		if err := mcpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("MCP server shutdown failed", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	// The stdio transport owns stdout.
	logger := observability.NewLogger(os.Stderr, "newscast-mcp")
	slog.SetDefault(logger)

	if err := hydrateSecrets(ctx, logger); err != nil {
		logger.Warn("Secret hydration failed, continuing with environment", "error", err)
	}

	pipe, err := pipeline.FromEnv(ctx, logger)
	if err != nil {
		return err
	}
	return mcpserver.New(mcpserver.DefaultConfig(), pipe, logger, ctx).ServeStdio()
}

// hydrateSecrets exports the keys of a JSON Secrets Manager secret into the
// process environment. Keys already set win; an unset SECRETS_ARN is a no-op.
func hydrateSecrets(ctx context.Context, logger *slog.Logger) error {
	arn := os.Getenv("SECRETS_ARN")
	if arn == "" {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	result, err := secretsmanager.NewFromConfig(awsCfg).GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &arn,
	})
	if err != nil {
		return fmt.Errorf("get secret: %w", err)
	}
	if result.SecretString == nil {
		return fmt.Errorf("secret %s has no string value", arn)
	}

	var keys map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &keys); err != nil {
		return fmt.Errorf("parse secret: %w", err)
	}
	for key, value := range keys {
		if os.Getenv(key) != "" {
			continue
		}
		os.Setenv(key, value)
		logger.Info("Loaded secret", "key", key)
	}
	return nil
}
