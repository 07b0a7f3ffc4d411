package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/spf13/cobra"

	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/observability"
	"github.com/apresai/newscast/internal/plays"
	"github.com/apresai/newscast/internal/publish"
	"github.com/apresai/newscast/internal/runs"
	"github.com/apresai/newscast/internal/storage"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the stored show configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored configuration as JSON",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update one configuration field and save a new version",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect run history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run's summary and episode manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show episode play counts",
	RunE:  runStats,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print recent scheduler Lambda log events",
	RunE:  runLogs,
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Podcast feed maintenance",
}

var feedRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Regenerate feed.xml from the stored episode manifests",
	RunE:  runFeedRebuild,
}

var (
	flagRunsPage     int
	flagRunsSize     int
	flagStatsEpisode string
	flagLogsGroup    string
	flagLogsSince    time.Duration
	flagLogsLimit    int
)

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(feedCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	feedCmd.AddCommand(feedRebuildCmd)
	runsListCmd.Flags().IntVar(&flagRunsPage, "page", 1, "Page number")
	runsListCmd.Flags().IntVar(&flagRunsSize, "size", 20, "Runs per page")
	statsCmd.Flags().StringVarP(&flagStatsEpisode, "episode", "e", "", "Show the daily breakdown for one episode date")
	logsCmd.Flags().StringVar(&flagLogsGroup, "group", "", "CloudWatch log group (default $CRON_LOG_GROUP or /aws/lambda/newscast-cron-trigger)")
	logsCmd.Flags().DurationVar(&flagLogsSince, "since", time.Hour, "How far back to read")
	logsCmd.Flags().IntVar(&flagLogsLimit, "limit", 100, "Maximum events to print")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := storage.FromEnv(ctx)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	cfg, err := config.Load(ctx, st)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := storage.FromEnv(ctx)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	cfg, err := config.Load(ctx, st)
	if err != nil {
		return err
	}

	if err := applyConfigKey(cfg, args[0], args[1]); err != nil {
		return err
	}
	if err := config.Save(ctx, st, cfg, "cli"); err != nil {
		return err
	}
	fmt.Printf("Saved config version %d\n", cfg.Version)
	return nil
}

// applyConfigKey sets one scalar field addressed by a dotted key. Topics
// and weights are structured; they are edited through `config edit` or the
// dashboard instead.
func applyConfigKey(cfg *config.DashboardConfig, key, value string) error {
	posInt := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, value)
		}
		return n, nil
	}

	switch {
	case key == "timezone":
		if _, err := time.LoadLocation(value); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", value, err)
		}
		cfg.Timezone = value
	case key == "rumor_filter":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid rumor_filter %q: must be true or false", value)
		}
		cfg.RumorFilter = b
	case key == "window_hours":
		n, err := posInt()
		if err != nil {
			return err
		}
		cfg.WindowHours = n
	case key == "target_duration_sec":
		n, err := posInt()
		if err != nil {
			return err
		}
		cfg.TargetDurationSec = n
	case key == "min_content_length":
		n, err := posInt()
		if err != nil {
			return err
		}
		cfg.MinContentLength = n
	case key == "max_stories_per_domain":
		n, err := posInt()
		if err != nil {
			return err
		}
		cfg.MaxStoriesPerDomain = n
	case key == "podcast.base_url":
		cfg.Podcast.BaseURL = strings.TrimSuffix(value, "/")
	case key == "podcast.title":
		cfg.Podcast.Title = value
	case key == "production.style":
		cfg.Production.Style = value
	case key == "production.min_stories":
		n, err := posInt()
		if err != nil {
			return err
		}
		cfg.Production.MinStories = n
	case key == "production.max_stories":
		n, err := posInt()
		if err != nil {
			return err
		}
		cfg.Production.MaxStories = n
	case strings.HasPrefix(key, "voices."):
		role := strings.TrimPrefix(key, "voices.")
		if role == "" {
			return fmt.Errorf("invalid key %q: voices.<role> needs a role name", key)
		}
		if cfg.Voices == nil {
			cfg.Voices = map[string]string{}
		}
		cfg.Voices[role] = value
	default:
		return fmt.Errorf("unknown key %q: valid keys are timezone, rumor_filter, window_hours, target_duration_sec, min_content_length, max_stories_per_domain, podcast.base_url, podcast.title, production.style, production.min_stories, production.max_stories, voices.<role>", key)
	}
	return nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := storage.FromEnv(ctx)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	tracker := runs.NewTracker(st, observability.InitLogger("newscast"))

	list, total := tracker.List(ctx, flagRunsPage, flagRunsSize)
	if total == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-12s %-9s %-8s %-21s %s\n", "RUN", "STATUS", "STORIES", "STARTED", "EPISODE")
	for _, r := range list {
		stories := "-"
		if r.StoriesCount > 0 {
			stories = strconv.Itoa(r.StoriesCount)
		}
		detail := r.EpisodeURL
		if r.Status == runs.StatusFailed {
			detail = r.Error
		}
		fmt.Printf("%-12s %-9s %-8s %-21s %s\n",
			r.RunID, r.Status, stories, r.StartedAt.Format("2006-01-02 15:04:05"), detail)
	}
	fmt.Printf("\nShowing %d of %d runs (page %d)\n", len(list), total, flagRunsPage)
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := storage.FromEnv(ctx)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	tracker := runs.NewTracker(st, observability.InitLogger("newscast"))

	runID := args[0]
	summary, err := tracker.Get(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run:      %s\n", summary.RunID)
	fmt.Printf("Status:   %s\n", summary.Status)
	fmt.Printf("Started:  %s\n", summary.StartedAt.Format(time.RFC3339))
	if summary.CompletedAt != nil {
		elapsed := (time.Duration(summary.DurationMs) * time.Millisecond).Round(time.Second)
		fmt.Printf("Finished: %s (%s)\n", summary.CompletedAt.Format(time.RFC3339), elapsed)
	}
	if summary.Error != "" {
		fmt.Printf("Error:    %s\n", summary.Error)
	}
	if summary.Status != runs.StatusSuccess {
		return nil
	}

	manifest, err := tracker.GetManifest(ctx, runID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	fmt.Printf("\n%s\n", data)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := plays.FromEnv(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("play tracking is not configured: set PLAYS_TABLE")
	}

	if flagStatsEpisode != "" {
		days, err := store.EpisodeDays(ctx, flagStatsEpisode)
		if err != nil {
			return err
		}
		if len(days) == 0 {
			fmt.Printf("No plays recorded for %s.\n", flagStatsEpisode)
			return nil
		}
		total := 0
		fmt.Printf("%-12s %s\n", "DAY", "PLAYS")
		for _, d := range days {
			fmt.Printf("%-12s %d\n", d.Day, d.Plays)
			total += d.Plays
		}
		fmt.Printf("\nTotal: %d\n", total)
		return nil
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		fmt.Println("No plays recorded.")
		return nil
	}
	fmt.Printf("%-12s %s\n", "EPISODE", "PLAYS")
	for _, t := range totals {
		fmt.Printf("%-12s %d\n", t.Episode, t.Plays)
	}
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	group := flagLogsGroup
	if group == "" {
		group = config.EnvOr("CRON_LOG_GROUP", "/aws/lambda/newscast-cron-trigger")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	client := cloudwatchlogs.NewFromConfig(awsCfg)

	paginator := cloudwatchlogs.NewFilterLogEventsPaginator(client, &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(group),
		StartTime:    aws.Int64(time.Now().Add(-flagLogsSince).UnixMilli()),
	})

	printed := 0
	for paginator.HasMorePages() && printed < flagLogsLimit {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("read log group %s: %w", group, err)
		}
		for _, evt := range page.Events {
			if printed >= flagLogsLimit {
				break
			}
			ts := ""
			if evt.Timestamp != nil {
				ts = time.UnixMilli(*evt.Timestamp).UTC().Format(time.RFC3339)
			}
			msg := ""
			if evt.Message != nil {
				msg = strings.TrimRight(*evt.Message, "\n")
			}
			fmt.Printf("%s %s\n", ts, msg)
			printed++
		}
	}
	if printed == 0 {
		fmt.Printf("No events in %s within the last %s\n", group, flagLogsSince)
	}
	return nil
}

func runFeedRebuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := storage.FromEnv(ctx)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	cfg, err := config.Load(ctx, st)
	if err != nil {
		return err
	}
	if cfg.Podcast.BaseURL == "" {
		cfg.Podcast.BaseURL = config.EnvOr("PODCAST_BASE_URL", "")
	}

	stage := publish.New(st, observability.InitLogger("newscast"))
	if err := stage.RebuildFeed(ctx, cfg.Podcast); err != nil {
		return err
	}
	fmt.Println("Feed rebuilt from stored manifests.")
	return nil
}
