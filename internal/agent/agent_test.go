package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/newscast/internal/storage"
)

func testRuntime(t *testing.T) (*Runtime, storage.Storage) {
	t.Helper()
	st, err := storage.NewFS(t.TempDir(), "")
	require.NoError(t, err)
	rt := NewRuntime(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rt.initialDelay = time.Millisecond
	return rt, st
}

func TestExecutePersistsEnvelopeOnSuccess(t *testing.T) {
	rt, st := testRuntime(t)
	ctx := context.Background()

	out, err := Execute(ctx, rt, "Ingestion", "2026-08-24", []string{"feed-a"},
		func(_ context.Context, in []string) (int, error) {
			return len(in), nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	data, err := st.Get(ctx, "runs/2026-08-24/agents/Ingestion.json")
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "Ingestion", env.Agent)
	assert.Equal(t, "2026-08-24", env.RunID)
	assert.Empty(t, env.Errors)
	assert.JSONEq(t, `1`, string(env.Output))
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	rt, _ := testRuntime(t)

	calls := 0
	out, err := Execute(context.Background(), rt, "Outline", "2026-08-24", "in",
		func(_ context.Context, _ string) (string, error) {
			calls++
			if calls < 3 {
				return "", E(KindParseError, "bad json")
			}
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestExecutePersistsEnvelopeOnFailure(t *testing.T) {
	rt, st := testRuntime(t)
	ctx := context.Background()

	_, err := Execute(ctx, rt, "Script", "2026-08-24", "in",
		func(_ context.Context, _ string) (string, error) {
			return "", E(KindParseError, "unusable reply")
		})
	require.Error(t, err)
	assert.ErrorContains(t, err, "Script")

	data, err := st.Get(ctx, "runs/2026-08-24/agents/Script.json")
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.NotEmpty(t, env.Errors)
	assert.Contains(t, env.Errors[0], "unusable reply")
	assert.Empty(t, env.Output)
}

func TestExecuteDoesNotRetryAuthErrors(t *testing.T) {
	rt, _ := testRuntime(t)

	calls := 0
	_, err := Execute(context.Background(), rt, "Script", "2026-08-24", "in",
		func(_ context.Context, _ string) (string, error) {
			calls++
			return "", E(KindProviderAuth, "bad api key")
		})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestLLMCallRetriesTransientOnly(t *testing.T) {
	rt, _ := testRuntime(t)

	calls := 0
	out, err := rt.LLMCall(context.Background(), "2026-08-24", "Outline",
		func(_ context.Context) (string, error) {
			calls++
			if calls == 1 {
				return "", E(KindRateLimit, "429")
			}
			return "reply", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "reply", out)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, rt.Calls("2026-08-24")["Outline"])
}

func TestLLMCallSurfacesQuotaImmediately(t *testing.T) {
	rt, _ := testRuntime(t)

	calls := 0
	_, err := rt.LLMCall(context.Background(), "2026-08-24", "Outline",
		func(_ context.Context) (string, error) {
			calls++
			return "", E(KindProviderQuota, "daily quota exhausted")
		})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, KindProviderQuota, Classify(err))
}

func TestExecuteResetsCallCounter(t *testing.T) {
	rt, _ := testRuntime(t)
	ctx := context.Background()

	rt.RecordAPICall("2026-08-24", "Ranking")
	rt.RecordAPICall("2026-08-24", "Ranking")

	_, err := Execute(ctx, rt, "Ranking", "2026-08-24", "in",
		func(_ context.Context, _ string) (string, error) {
			rt.RecordAPICall("2026-08-24", "Ranking")
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, rt.Calls("2026-08-24")["Ranking"])
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindRateLimit, Classify(E(KindRateLimit, "x")))
	assert.Equal(t, KindProviderAuth, Classify(fmt.Errorf("wrap: %w", E(KindProviderAuth, "x"))))
	assert.Equal(t, KindTransientNetwork, Classify(context.DeadlineExceeded))
	assert.Equal(t, KindFatal, Classify(errors.New("anything else")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(E(KindTransientNetwork, "x")))
	assert.True(t, Retryable(E(KindRateLimit, "x")))
	assert.False(t, Retryable(E(KindProviderAuth, "x")))
	assert.False(t, Retryable(E(KindProviderQuota, "x")))
	assert.False(t, Retryable(E(KindParseError, "x")))
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"unauthorized", 401, "", KindProviderAuth},
		{"forbidden", 403, "", KindProviderAuth},
		{"rate limit", 429, "rate limit reached, retry shortly", KindRateLimit},
		{"quota", 429, "You exceeded your current quota", KindProviderQuota},
		{"quota code", 429, `{"error":{"code":"insufficient_quota"}}`, KindProviderQuota},
		{"credit balance", 429, "Your credit balance is too low", KindProviderQuota},
		{"server error", 500, "", KindTransientNetwork},
		{"overloaded", 529, "", KindTransientNetwork},
		{"bad request", 400, "", KindFatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyStatus(tc.status, tc.body))
		})
	}
}
