// Backfill the TOTAL rows of the play-count table from the per-day rows.
// Repairs totals that drifted when a beacon write partially failed, and
// creates TOTAL rows for episodes that only have daily counters.
//
// Usage:
//
//	go run ./scripts/backfill-plays --dry-run            # preview changes
//	go run ./scripts/backfill-plays                      # apply changes
//	go run ./scripts/backfill-plays --table my-table     # custom table name
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/apresai/newscast/internal/plays"
)

func main() {
	tableName := flag.String("table", "newscast-plays", "DynamoDB table name")
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing")
	flag.Parse()

	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	store := plays.New(dynamodb.NewFromConfig(cfg), *tableName)

	fmt.Printf("Table: %s | Dry run: %v\n", *tableName, *dryRun)

	sums, err := store.SumDays(ctx)
	if err != nil {
		log.Fatalf("sum daily rows: %v", err)
	}
	totals, err := store.Totals(ctx)
	if err != nil {
		log.Fatalf("read totals: %v", err)
	}
	stored := make(map[string]int, len(totals))
	for _, t := range totals {
		stored[t.Episode] = t.Plays
	}

	episodes := make([]string, 0, len(sums))
	for ep := range sums {
		episodes = append(episodes, ep)
	}
	sort.Strings(episodes)

	var updated, skipped int
	for _, ep := range episodes {
		want := sums[ep]
		have, ok := stored[ep]
		if ok && have == want {
			skipped++
			continue
		}

		action := "UPDATE"
		if *dryRun {
			action = "DRY-RUN"
		}
		fmt.Printf("[%s] %s: total %d -> %d\n", action, ep, have, want)

		if !*dryRun {
			if err := store.SetTotal(ctx, ep, want); err != nil {
				log.Printf("ERROR updating %s: %v", ep, err)
				continue
			}
		}
		updated++
	}

	fmt.Printf("\nDone. Episodes: %d, Updated: %d, Skipped (already correct): %d\n", len(episodes), updated, skipped)
	if *dryRun {
		fmt.Println("(dry run - no changes written)")
		os.Exit(0)
	}
}
