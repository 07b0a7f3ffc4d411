package plays

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	updates  []*dynamodb.UpdateItemInput
	puts     []*dynamodb.PutItemInput
	queryOut *dynamodb.QueryOutput
	scanOut  *dynamodb.ScanOutput
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.queryOut, nil
}

func (f *fakeDynamo) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return f.scanOut, nil
}

func row(pk, sk string, plays string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":    &types.AttributeValueMemberS{Value: pk},
		"SK":    &types.AttributeValueMemberS{Value: sk},
		"plays": &types.AttributeValueMemberN{Value: plays},
	}
}

func keyString(in *dynamodb.UpdateItemInput, attr string) string {
	v, ok := in.Key[attr].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return v.Value
}

func TestRecordWritesDayAndTotal(t *testing.T) {
	fake := &fakeDynamo{}
	s := New(fake, "plays")

	at := time.Date(2026, 8, 24, 13, 30, 0, 0, time.UTC)
	require.NoError(t, s.Record(context.Background(), "2026-08-24", at))

	require.Len(t, fake.updates, 2)
	assert.Equal(t, "PLAY#2026-08-24", keyString(fake.updates[0], "PK"))
	assert.Equal(t, "DAY#2026-08-24", keyString(fake.updates[0], "SK"))
	assert.Equal(t, "TOTAL", keyString(fake.updates[1], "SK"))
	assert.Equal(t, "ADD plays :one SET updatedAt = :ts", *fake.updates[0].UpdateExpression)

	one, ok := fake.updates[0].ExpressionAttributeValues[":one"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "1", one.Value)
}

func TestTotalsNewestEpisodeFirst(t *testing.T) {
	fake := &fakeDynamo{scanOut: &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
		row("PLAY#2026-08-22", "TOTAL", "3"),
		row("PLAY#2026-08-24", "TOTAL", "11"),
		row("PLAY#2026-08-23", "TOTAL", "7"),
	}}}
	s := New(fake, "plays")

	got, err := s.Totals(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, EpisodeCount{Episode: "2026-08-24", Plays: 11}, got[0])
	assert.Equal(t, EpisodeCount{Episode: "2026-08-22", Plays: 3}, got[2])
}

func TestEpisodeDaysOldestFirst(t *testing.T) {
	fake := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		row("PLAY#2026-08-24", "DAY#2026-08-26", "2"),
		row("PLAY#2026-08-24", "DAY#2026-08-24", "5"),
	}}}
	s := New(fake, "plays")

	got, err := s.EpisodeDays(context.Background(), "2026-08-24")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, DayCount{Day: "2026-08-24", Plays: 5}, got[0])
	assert.Equal(t, DayCount{Day: "2026-08-26", Plays: 2}, got[1])
}

func TestSumDaysFoldsPerEpisode(t *testing.T) {
	fake := &fakeDynamo{scanOut: &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
		row("PLAY#2026-08-24", "DAY#2026-08-24", "5"),
		row("PLAY#2026-08-24", "DAY#2026-08-25", "4"),
		row("PLAY#2026-08-23", "DAY#2026-08-23", "1"),
	}}}
	s := New(fake, "plays")

	sums, err := s.SumDays(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2026-08-24": 9, "2026-08-23": 1}, sums)
}

func TestSetTotalWritesAbsoluteCount(t *testing.T) {
	fake := &fakeDynamo{}
	s := New(fake, "plays")

	require.NoError(t, s.SetTotal(context.Background(), "2026-08-24", 9))
	require.Len(t, fake.puts, 1)

	item := fake.puts[0].Item
	pk := item["PK"].(*types.AttributeValueMemberS)
	assert.Equal(t, "PLAY#2026-08-24", pk.Value)
	n := item["plays"].(*types.AttributeValueMemberN)
	assert.Equal(t, "9", n.Value)
}
