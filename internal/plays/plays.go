// Package plays tracks episode play counts in DynamoDB. The beacon Lambda
// increments a per-day row and a running total per episode; the stats
// surfaces read them back.
//
// Table layout (single table, on-demand):
//
//	PK                  SK               attributes
//	PLAY#<episode>      DAY#<yyyy-mm-dd> plays, updatedAt
//	PLAY#<episode>      TOTAL            plays, updatedAt
package plays

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

const (
	pkPrefix = "PLAY#"
	skDay    = "DAY#"
	skTotal  = "TOTAL"
)

// api is the slice of the DynamoDB client the store uses.
type api interface {
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store reads and writes play counters.
type Store struct {
	client api
	table  string
}

func New(client api, table string) *Store {
	return &Store{client: client, table: table}
}

// FromEnv builds a store from PLAYS_TABLE. An unset table disables play
// tracking: callers get (nil, nil) and treat the feature as off.
func FromEnv(ctx context.Context) (*Store, error) {
	table := os.Getenv("PLAYS_TABLE")
	if table == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return New(dynamodb.NewFromConfig(awsCfg), table), nil
}

type playRow struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Plays     int    `dynamodbav:"plays"`
	UpdatedAt string `dynamodbav:"updatedAt,omitempty"`
}

// EpisodeCount is one episode's aggregate play count.
type EpisodeCount struct {
	Episode string `json:"episode"`
	Plays   int    `json:"plays"`
}

// DayCount is one day's plays for a single episode.
type DayCount struct {
	Day   string `json:"day"`
	Plays int    `json:"plays"`
}

// Record counts one play: the episode's daily row and its total row each
// gain one. Both writes are upserts, so the first play of a day creates
// the row.
func (s *Store) Record(ctx context.Context, episode string, at time.Time) error {
	day := at.UTC().Format("2006-01-02")
	ts := at.UTC().Format(time.RFC3339)
	for _, sk := range []string{skDay + day, skTotal} {
		_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(s.table),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: pkPrefix + episode},
				"SK": &types.AttributeValueMemberS{Value: sk},
			},
			UpdateExpression: aws.String("ADD plays :one SET updatedAt = :ts"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one": &types.AttributeValueMemberN{Value: "1"},
				":ts":  &types.AttributeValueMemberS{Value: ts},
			},
		})
		if err != nil {
			return fmt.Errorf("record play for %s (%s): %w", episode, sk, err)
		}
	}
	return nil
}

// Totals returns every episode's aggregate count, newest episode first.
func (s *Store) Totals(ctx context.Context) ([]EpisodeCount, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("begins_with(PK, :p) AND SK = :total"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p":     &types.AttributeValueMemberS{Value: pkPrefix},
			":total": &types.AttributeValueMemberS{Value: skTotal},
		},
	})

	var out []EpisodeCount
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan play totals: %w", err)
		}
		for _, item := range page.Items {
			var row playRow
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				return nil, fmt.Errorf("unmarshal play row: %w", err)
			}
			out = append(out, EpisodeCount{
				Episode: strings.TrimPrefix(row.PK, pkPrefix),
				Plays:   row.Plays,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Episode > out[j].Episode })
	return out, nil
}

// EpisodeDays returns the daily breakdown for one episode, oldest day first.
func (s *Store) EpisodeDays(ctx context.Context, episode string) ([]DayCount, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :day)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":  &types.AttributeValueMemberS{Value: pkPrefix + episode},
			":day": &types.AttributeValueMemberS{Value: skDay},
		},
	})

	var out []DayCount
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query plays for %s: %w", episode, err)
		}
		for _, item := range page.Items {
			var row playRow
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				return nil, fmt.Errorf("unmarshal play row: %w", err)
			}
			out = append(out, DayCount{
				Day:   strings.TrimPrefix(row.SK, skDay),
				Plays: row.Plays,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

// SumDays folds every daily row into episode totals. The backfill script
// compares this against the stored TOTAL rows.
func (s *Store) SumDays(ctx context.Context) (map[string]int, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("begins_with(PK, :p) AND begins_with(SK, :day)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p":   &types.AttributeValueMemberS{Value: pkPrefix},
			":day": &types.AttributeValueMemberS{Value: skDay},
		},
	})

	sums := make(map[string]int)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan play days: %w", err)
		}
		for _, item := range page.Items {
			var row playRow
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				return nil, fmt.Errorf("unmarshal play row: %w", err)
			}
			sums[strings.TrimPrefix(row.PK, pkPrefix)] += row.Plays
		}
	}
	return sums, nil
}

// SetTotal overwrites an episode's TOTAL row with an absolute count.
func (s *Store) SetTotal(ctx context.Context, episode string, count int) error {
	item, err := attributevalue.MarshalMap(playRow{
		PK:        pkPrefix + episode,
		SK:        skTotal,
		Plays:     count,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal total row: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("set total for %s: %w", episode, err)
	}
	return nil
}
