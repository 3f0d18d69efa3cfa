package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tokenimages/pkg/checkpoint"
	"tokenimages/pkg/config"
	"tokenimages/pkg/errors"
	"tokenimages/pkg/logger"
	"tokenimages/pkg/magiceden"
)

type fakePage struct {
	tokens []magiceden.TokenEntry
	cursor string
	err    error
}

// fakeFetcher serves canned pages in order
type fakeFetcher struct {
	mu         sync.Mutex
	pages      []fakePage
	queries    []magiceden.TokensQuery
	repeatLast bool
	onCall     func(n int)
}

func (f *fakeFetcher) FetchTokens(ctx context.Context, q magiceden.TokensQuery) (*magiceden.TokensResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	n := len(f.queries)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := n - 1
	if idx >= len(f.pages) {
		if !f.repeatLast || len(f.pages) == 0 {
			return &magiceden.TokensResponse{}, nil
		}
		idx = len(f.pages) - 1
	}

	p := f.pages[idx]
	if p.err != nil {
		return nil, p.err
	}
	resp := &magiceden.TokensResponse{Tokens: p.tokens}
	if p.cursor != "" {
		cursor := p.cursor
		resp.Continuation = &cursor
	}
	return resp, nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func tok(id, image string) magiceden.TokenEntry {
	return magiceden.TokenEntry{Token: &magiceden.Token{TokenID: magiceden.TokenID(id), Image: image}}
}

func testConfig(t *testing.T, expected int) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Collection.Contract = "0xabc"
	cfg.Collection.Chain = "base"
	cfg.Collection.TotalTokens = expected
	cfg.API.APIKey = "test-key"
	cfg.RateLimit.PageDelay = 0
	cfg.Output.Directory = filepath.Join(t.TempDir(), "output")
	return cfg
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestMaxAttempts(t *testing.T) {
	tests := []struct {
		expected, pageSize, want int
	}{
		{3332, 20, 177},
		{5, 20, 11},
		{40, 20, 12},
		{41, 20, 13},
		{40, 0, 12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxAttempts(tt.expected, tt.pageSize), "expected=%d pageSize=%d", tt.expected, tt.pageSize)
	}
}

func TestRunDeduplicatesAcrossPages(t *testing.T) {
	cfg := testConfig(t, 5)
	fetcher := &fakeFetcher{pages: []fakePage{
		{tokens: []magiceden.TokenEntry{tok("1", "a"), tok("2", "b")}, cursor: "c1"},
		{tokens: []magiceden.TokenEntry{tok("2", "b"), tok("3", "c")}},
	}}
	log := logger.NewTestLogger()

	c := New(cfg, fetcher, log)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Unique)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "tokenId,imageUrl\n1,a\n2,b\n3,c\n", readOutput(t, result.OutputPath))
	assert.Equal(t, filepath.Join(cfg.Output.Directory, "base_token_images.csv"), result.OutputPath)

	require.Len(t, fetcher.queries, 2)
	assert.Equal(t, "", fetcher.queries[0].Continuation)
	assert.Equal(t, "c1", fetcher.queries[1].Continuation)
	assert.Equal(t, "base", fetcher.queries[0].Chain)
	assert.Equal(t, "0xabc", fetcher.queries[0].Collection)
	assert.Equal(t, 20, fetcher.queries[0].Limit)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics().DuplicatesSkipped))
	assert.True(t, log.HasMessage("WARN", "fewer tokens than expected"), log.String())
}

func TestRunShortCollectionIsNotAnError(t *testing.T) {
	cfg := testConfig(t, 5)
	fetcher := &fakeFetcher{pages: []fakePage{
		{tokens: []magiceden.TokenEntry{tok("1", "a"), tok("2", "b")}, cursor: "c1"},
		{tokens: []magiceden.TokenEntry{tok("3", "c")}},
	}}
	log := logger.NewTestLogger()

	result, err := New(cfg, fetcher, log).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Unique)
	assert.False(t, result.Complete())

	warnings := log.GetMessagesByLevel("WARN")
	require.Len(t, warnings, 1)
	assert.Equal(t, 3, warnings[0].Fields["unique"])
	assert.Equal(t, 5, warnings[0].Fields["expected"])
}

func TestRunStopsWhenExpectedReached(t *testing.T) {
	cfg := testConfig(t, 3)
	fetcher := &fakeFetcher{pages: []fakePage{
		{tokens: []magiceden.TokenEntry{tok("1", "a"), tok("2", "b")}, cursor: "c1"},
		{tokens: []magiceden.TokenEntry{tok("3", "c"), tok("4", "d")}, cursor: "c2"},
		{tokens: []magiceden.TokenEntry{tok("5", "e")}, cursor: "c3"},
	}}
	log := logger.NewTestLogger()

	result, err := New(cfg, fetcher, log).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.calls())
	assert.Equal(t, 4, result.Unique)
	assert.True(t, result.Complete())
	assert.Empty(t, log.GetMessagesByLevel("WARN"))
}

func TestRunServerErrorEndsCollection(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(t, 20)
	cfg.API.BaseURL = server.URL

	result, err := NewFromConfig(cfg, logger.NewTestLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, result.Unique)
	assert.Equal(t, 1, result.Failures)
	assert.Equal(t, "tokenId,imageUrl\n", readOutput(t, result.OutputPath))
}

func TestRunAgainstHTTPServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/rtp/base/tokens/v6", r.URL.Path)
		switch r.URL.Query().Get("continuation") {
		case "":
			_, _ = w.Write([]byte(`{"tokens":[{"token":{"tokenId":"1","image":"https://i/1"}},{"token":{"tokenId":2,"image":"https://i/2"}}],"continuation":"c1"}`))
		case "c1":
			_, _ = w.Write([]byte(`{"tokens":[{"token":{"tokenId":"2","image":"https://i/2"}},{"token":{"tokenId":"3","image":"https://i/3"}}]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	cfg := testConfig(t, 5)
	cfg.API.BaseURL = server.URL

	result, err := NewFromConfig(cfg, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tokenId,imageUrl\n1,https://i/1\n2,https://i/2\n3,https://i/3\n", readOutput(t, result.OutputPath))
}

func TestRunFailureAfterSomePages(t *testing.T) {
	cfg := testConfig(t, 10)
	fetcher := &fakeFetcher{pages: []fakePage{
		{tokens: []magiceden.TokenEntry{tok("1", "a"), tok("2", "b")}, cursor: "c1"},
		{err: errors.New(errors.ErrorTypeNetwork, 0, "connection reset")},
		{tokens: []magiceden.TokenEntry{tok("3", "c")}},
	}}

	c := New(cfg, fetcher, logger.NewTestLogger())
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.calls())
	assert.Equal(t, 2, result.Unique)
	assert.Equal(t, 1, result.Failures)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics().PageFailures.WithLabelValues("network")))
}

func TestRunAttemptsAreBounded(t *testing.T) {
	cfg := testConfig(t, 40)
	fetcher := &fakeFetcher{
		pages:      []fakePage{{tokens: []magiceden.TokenEntry{tok("1", "a")}, cursor: "again"}},
		repeatLast: true,
	}

	result, err := New(cfg, fetcher, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, fetcher.calls())
	assert.Equal(t, 12, result.Attempts)
	assert.Equal(t, 1, result.Unique)
}

func TestRunSkipsIncompleteEntries(t *testing.T) {
	cfg := testConfig(t, 10)
	fetcher := &fakeFetcher{pages: []fakePage{{tokens: []magiceden.TokenEntry{
		{Token: nil},
		tok("", "https://i/x"),
		tok("7", ""),
		tok("8", "https://i/8"),
	}}}}

	c := New(cfg, fetcher, logger.NewNopLogger())
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Record{{TokenID: "8", ImageURL: "https://i/8"}}, result.Records)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Metrics().EntriesSkipped))
}

func TestRunEmptyCollectionWritesHeader(t *testing.T) {
	cfg := testConfig(t, 10)

	result, err := New(cfg, &fakeFetcher{}, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tokenId,imageUrl\n", readOutput(t, result.OutputPath))
}

func TestRunOutputHasNoDuplicateIDs(t *testing.T) {
	cfg := testConfig(t, 100)
	var pages []fakePage
	for i := 0; i < 6; i++ {
		var tokens []magiceden.TokenEntry
		for j := 0; j < 20; j++ {
			id := (i*15 + j) % 50
			tokens = append(tokens, tok(strconv.Itoa(id), "img"))
		}
		cursor := "next"
		if i == 5 {
			cursor = ""
		}
		pages = append(pages, fakePage{tokens: tokens, cursor: cursor})
	}

	result, err := New(cfg, &fakeFetcher{pages: pages}, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(readOutput(t, result.OutputPath)), "\n")
	seen := make(map[string]bool)
	for _, line := range lines[1:] {
		id := strings.SplitN(line, ",", 2)[0]
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, result.Unique, len(lines)-1)
}

func TestRunInterruptedWritesPartialOutput(t *testing.T) {
	cfg := testConfig(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &fakeFetcher{
		pages: []fakePage{
			{tokens: []magiceden.TokenEntry{tok("1", "a")}, cursor: "c1"},
			{tokens: []magiceden.TokenEntry{tok("2", "b")}, cursor: "c2"},
		},
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}

	result, err := New(cfg, fetcher, logger.NewNopLogger()).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)

	assert.True(t, result.Interrupted)
	assert.Equal(t, 0, result.Failures)
	assert.Equal(t, "tokenId,imageUrl\n1,a\n", readOutput(t, result.OutputPath))
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	cfg := testConfig(t, 10)
	cfg.Checkpoint.Enabled = true
	cfg.Checkpoint.Directory = filepath.Join(t.TempDir(), "checkpoints")

	first := &fakeFetcher{pages: []fakePage{
		{tokens: []magiceden.TokenEntry{tok("1", "a"), tok("2", "b")}, cursor: "c1"},
		{err: errors.New(errors.ErrorTypeServerError, 502, "bad gateway")},
	}}
	result, err := New(cfg, first, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Unique)
	assert.False(t, result.Resumed)

	second := &fakeFetcher{pages: []fakePage{
		{tokens: []magiceden.TokenEntry{tok("2", "b"), tok("3", "c")}},
	}}
	result, err = New(cfg, second, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, second.queries, 1)
	assert.Equal(t, "c1", second.queries[0].Continuation)
	assert.True(t, result.Resumed)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "tokenId,imageUrl\n1,a\n2,b\n3,c\n", readOutput(t, result.OutputPath))

	mgr, err := checkpoint.NewManager(cfg.Checkpoint.Directory, "base", "0xabc", logger.NewNopLogger())
	require.NoError(t, err)
	cp, err := mgr.Load()
	require.NoError(t, err)
	assert.True(t, cp.Done)
}

func TestRunCorruptCheckpointFails(t *testing.T) {
	cfg := testConfig(t, 10)
	cfg.Checkpoint.Enabled = true
	cfg.Checkpoint.Directory = t.TempDir()

	mgr, err := checkpoint.NewManager(cfg.Checkpoint.Directory, "base", "0xabc", logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mgr.Path(), []byte("garbage"), 0644))

	_, err = New(cfg, &fakeFetcher{}, logger.NewNopLogger()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load checkpoint")
	_, statErr := os.Stat(cfg.OutputPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunRetriesWhenEnabled(t *testing.T) {
	cfg := testConfig(t, 10)
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond

	fetcher := &fakeFetcher{pages: []fakePage{
		{err: errors.New(errors.ErrorTypeRateLimit, 429, "slow down")},
		{tokens: []magiceden.TokenEntry{tok("1", "a")}},
	}}

	result, err := New(cfg, fetcher, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.calls())
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 0, result.Failures)
	assert.Equal(t, 1, result.Unique)
}

type countingLimiter struct {
	waits int
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	return ctx.Err()
}

func (l *countingLimiter) Reset() {}

func TestRunWaitsBeforeEveryPage(t *testing.T) {
	cfg := testConfig(t, 10)
	fetcher := &fakeFetcher{pages: []fakePage{
		{tokens: []magiceden.TokenEntry{tok("1", "a")}, cursor: "c1"},
		{tokens: []magiceden.TokenEntry{tok("2", "b")}, cursor: "c2"},
		{tokens: []magiceden.TokenEntry{tok("3", "c")}},
	}}

	limiter := &countingLimiter{}
	c := New(cfg, fetcher, logger.NewNopLogger())
	c.SetLimiter(limiter)

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, limiter.waits)
}

func TestRunPageDelay(t *testing.T) {
	cfg := testConfig(t, 10)
	cfg.RateLimit.PageDelay = 30 * time.Millisecond
	fetcher := &fakeFetcher{pages: []fakePage{
		{tokens: []magiceden.TokenEntry{tok("1", "a")}, cursor: "c1"},
		{tokens: []magiceden.TokenEntry{tok("2", "b")}, cursor: "c2"},
		{tokens: []magiceden.TokenEntry{tok("3", "c")}},
	}}

	start := time.Now()
	_, err := New(cfg, fetcher, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

type recordingObserver struct {
	fetched []int
	failed  []int
}

func (o *recordingObserver) PageFetched(attempt, maxAttempts, added, unique int) {
	o.fetched = append(o.fetched, unique)
}

func (o *recordingObserver) PageFailed(attempt int, err error) {
	o.failed = append(o.failed, attempt)
}

func TestRunNotifiesObserver(t *testing.T) {
	cfg := testConfig(t, 10)
	fetcher := &fakeFetcher{pages: []fakePage{
		{tokens: []magiceden.TokenEntry{tok("1", "a"), tok("2", "b")}, cursor: "c1"},
		{err: errors.New(errors.ErrorTypeServerError, 500, "boom")},
	}}

	obs := &recordingObserver{}
	c := New(cfg, fetcher, logger.NewNopLogger())
	c.SetObserver(obs)

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{2}, obs.fetched)
	assert.Equal(t, []int{2}, obs.failed)
}

func TestRunWritesMetricsTextfile(t *testing.T) {
	cfg := testConfig(t, 10)
	cfg.Metrics.TextfilePath = filepath.Join(t.TempDir(), "metrics", "tokenimages.prom")
	fetcher := &fakeFetcher{pages: []fakePage{
		{tokens: []magiceden.TokenEntry{tok("1", "a"), tok("2", "b"), tok("3", "c")}},
	}}

	_, err := New(cfg, fetcher, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	text := readOutput(t, cfg.Metrics.TextfilePath)
	assert.Contains(t, text, "tokenimages_unique_tokens 3")
	assert.Contains(t, text, "tokenimages_pages_fetched_total 1")
}

func TestRunLogsEveryHundredTokens(t *testing.T) {
	cfg := testConfig(t, 250)
	cfg.Collection.PageSize = 100

	var pages []fakePage
	for p := 0; p < 3; p++ {
		var tokens []magiceden.TokenEntry
		for i := 0; i < 100; i++ {
			id := p*100 + i
			tokens = append(tokens, tok(strconv.Itoa(id), "img"))
		}
		pages = append(pages, fakePage{tokens: tokens, cursor: "more"})
	}

	log := logger.NewTestLogger()
	_, err := New(cfg, &fakeFetcher{pages: pages}, log).Run(context.Background())
	require.NoError(t, err)

	var marks []interface{}
	for _, m := range log.GetMessagesByLevel("INFO") {
		if m.Message == "Processed unique tokens" {
			marks = append(marks, m.Fields["unique"])
		}
	}
	assert.Equal(t, []interface{}{100, 200, 300}, marks)
}
