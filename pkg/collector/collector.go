package collector

import (
	"context"
	"fmt"
	"time"

	"tokenimages/pkg/checkpoint"
	"tokenimages/pkg/config"
	"tokenimages/pkg/errors"
	"tokenimages/pkg/logger"
	"tokenimages/pkg/magiceden"
	"tokenimages/pkg/metrics"
	"tokenimages/pkg/ratelimit"
	"tokenimages/pkg/retry"
	"tokenimages/pkg/storage"
)

// attemptBuffer is added to the page count the target needs, so a collection
// with a few short or failed pages still completes.
const attemptBuffer = 10

// progressEvery controls how often the unique count is logged
const progressEvery = 100

// Record is one row of the output file
type Record struct {
	TokenID  string
	ImageURL string
}

// Fields returns the record as CSV fields
func (r Record) Fields() []string {
	return []string{r.TokenID, r.ImageURL}
}

// Page is the outcome of fetching one page. A failed fetch yields an empty
// page with no cursor and Err set.
type Page struct {
	Tokens []magiceden.TokenEntry
	Cursor string
	Err    error
}

// Result summarizes a finished run
type Result struct {
	Records     []Record
	Attempts    int
	MaxAttempts int
	Unique      int
	Expected    int
	Failures    int
	OutputPath  string
	Resumed     bool
	Interrupted bool
}

// Complete reports whether the run collected the whole expected set
func (r *Result) Complete() bool {
	return r.Unique >= r.Expected
}

// MaxAttempts bounds the number of page fetches for a collection
func MaxAttempts(expected, pageSize int) int {
	if pageSize <= 0 {
		pageSize = config.DefaultPageSize
	}
	return (expected+pageSize-1)/pageSize + attemptBuffer
}

// Collector pages through a collection and writes its token images
type Collector struct {
	client   TokenFetcher
	cfg      *config.Config
	limiter  ratelimit.Limiter
	retry    *retry.Config
	metrics  *metrics.Metrics
	observer Observer
	logger   logger.Logger
}

// New creates a Collector using client for API access
func New(cfg *config.Config, client TokenFetcher, log logger.Logger) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithFields(map[string]interface{}{
		"chain":    cfg.Collection.Chain,
		"contract": cfg.Collection.Contract,
	})

	return &Collector{
		client:  client,
		cfg:     cfg,
		limiter: ratelimit.New(cfg.RateLimit.PageDelay, cfg.RateLimit.RequestsPerMinute),
		retry:   retry.FromConfig(cfg.Retry, log),
		metrics: metrics.New(),
		logger:  log,
	}
}

// NewFromConfig creates a Collector backed by the Magic Eden API
func NewFromConfig(cfg *config.Config, log logger.Logger) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}
	client := magiceden.NewClient(cfg.API.BaseURL, cfg.API.APIKey, cfg.API.Timeout, log)
	if cfg.API.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.API.UserAgent)
	}
	return New(cfg, client, log)
}

// SetObserver registers a progress observer
func (c *Collector) SetObserver(o Observer) {
	c.observer = o
}

// SetLimiter replaces the request pacing
func (c *Collector) SetLimiter(l ratelimit.Limiter) {
	c.limiter = l
}

// Metrics returns the run's metrics
func (c *Collector) Metrics() *metrics.Metrics {
	return c.metrics
}

// fetchPage fetches one page. Failures are logged and degrade to an empty
// page with no cursor.
func (c *Collector) fetchPage(ctx context.Context, cursor string) Page {
	q := magiceden.TokensQuery{
		Chain:        c.cfg.Collection.Chain,
		Collection:   c.cfg.Collection.Contract,
		Limit:        c.cfg.Collection.PageSize,
		Continuation: cursor,
	}

	start := time.Now()
	resp, err := retry.DoWithResult(ctx, func(ctx context.Context) (*magiceden.TokensResponse, error) {
		return c.client.FetchTokens(ctx, q)
	}, c.retry)
	duration := time.Since(start)

	if err != nil {
		errType := errors.TypeOf(err)
		c.metrics.ObservePage(duration, string(errType))
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"continuation": cursor,
			"error_type":   string(errType),
		}).Error("Error fetching tokens")
		return Page{Err: err}
	}
	c.metrics.ObservePage(duration, "")

	fields := map[string]interface{}{
		"tokens":   len(resp.Tokens),
		"duration": duration,
	}
	if first, last, ok := idRange(resp.Tokens); ok {
		fields["first_token_id"] = first
		fields["last_token_id"] = last
	}
	c.logger.InfoWithFields("Tokens received", fields)

	return Page{Tokens: resp.Tokens, Cursor: resp.NextCursor()}
}

// Run collects tokens until the cursor runs out, the expected count is
// reached or the attempt budget is spent, then writes the output file.
// When ctx is cancelled the rows collected so far are still written and
// ctx.Err() is returned with the result.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	expected := c.cfg.Collection.TotalTokens
	maxAttempts := MaxAttempts(expected, c.cfg.Collection.PageSize)
	state := newRunState()

	cpMgr, cp, err := c.openCheckpoint(state)
	if err != nil {
		return nil, err
	}

	c.metrics.ExpectedTokens.Set(float64(expected))
	c.logger.InfoWithFields("Starting token fetch", map[string]interface{}{
		"expected":     expected,
		"page_size":    c.cfg.Collection.PageSize,
		"max_attempts": maxAttempts,
		"resumed":      state.resumed,
	})

	var (
		interrupted bool
		failed      bool
		failures    int
	)

	for state.unique() < expected && state.attempts < maxAttempts {
		if err := c.limiter.Wait(ctx); err != nil {
			interrupted = true
			break
		}

		state.attempts++
		logger.LogCollectionProgress(c.logger, c.cfg.Collection.Chain, state.unique(), expected, state.attempts, maxAttempts)

		page := c.fetchPage(ctx, state.cursor)
		if page.Err != nil {
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			failed = true
			failures++
			if c.observer != nil {
				c.observer.PageFailed(state.attempts, page.Err)
			}
		}

		before := state.unique()
		added, duplicates, skipped := state.add(page.Tokens)
		c.metrics.TokensCollected.Add(float64(len(added)))
		c.metrics.DuplicatesSkipped.Add(float64(duplicates))
		c.metrics.EntriesSkipped.Add(float64(skipped))
		c.metrics.UniqueTokens.Set(float64(state.unique()))

		for n := (before/progressEvery + 1) * progressEvery; n <= state.unique(); n += progressEvery {
			c.logger.WithField("unique", n).Info("Processed unique tokens")
		}

		if page.Err == nil {
			if c.observer != nil {
				c.observer.PageFetched(state.attempts, maxAttempts, len(added), state.unique())
			}
			if cpMgr != nil {
				if err := cpMgr.UpdateProgress(cp, page.Cursor, state.attempts, toEntries(added)); err != nil {
					c.logger.WithError(err).Warn("Failed to update checkpoint progress")
				}
			}
		}

		if page.Cursor == "" {
			c.logger.Info("No more continuation token received, ending pagination")
			break
		}
		state.cursor = page.Cursor
	}

	path, err := c.writeOutput(state.records)
	if err != nil {
		return nil, err
	}

	if cpMgr != nil && !failed && !interrupted {
		if err := cpMgr.MarkDone(cp); err != nil {
			c.logger.WithError(err).Warn("Failed to mark checkpoint done")
		}
	}

	result := &Result{
		Records:     state.records,
		Attempts:    state.attempts,
		MaxAttempts: maxAttempts,
		Unique:      state.unique(),
		Expected:    expected,
		Failures:    failures,
		OutputPath:  path,
		Resumed:     state.resumed,
		Interrupted: interrupted,
	}

	c.logger.InfoWithFields("Data has been saved", map[string]interface{}{
		"path":     path,
		"unique":   result.Unique,
		"attempts": result.Attempts,
	})
	if !result.Complete() {
		c.logger.WarnWithFields("Fetched fewer tokens than expected", map[string]interface{}{
			"unique":   result.Unique,
			"expected": expected,
		})
	}

	c.exportMetrics()

	if interrupted {
		return result, fmt.Errorf("collection interrupted: %w", ctx.Err())
	}
	return result, nil
}

// openCheckpoint loads or creates the resume checkpoint when enabled
func (c *Collector) openCheckpoint(state *runState) (*checkpoint.Manager, *checkpoint.Checkpoint, error) {
	if !c.cfg.Checkpoint.Enabled {
		return nil, nil, nil
	}

	chain, contract := c.cfg.Collection.Chain, c.cfg.Collection.Contract
	mgr, err := checkpoint.NewManager(c.cfg.CheckpointDir(), chain, contract, c.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create checkpoint manager: %w", err)
	}

	cp, err := mgr.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if cp != nil && !cp.Done {
		state.restore(cp)
		c.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
			"collected": state.unique(),
			"attempts":  state.attempts,
			"cursor":    state.cursor,
		})
		return mgr, cp, nil
	}

	cp, err = mgr.Create(chain, contract)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create checkpoint: %w", err)
	}
	return mgr, cp, nil
}

// writeOutput saves records as CSV under the configured output directory
func (c *Collector) writeOutput(records []Record) (string, error) {
	manager, err := storage.NewManager(c.cfg.Output.Directory)
	if err != nil {
		return "", fmt.Errorf("failed to create storage manager: %w", err)
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Fields()
	}

	path, err := manager.SaveTokenImages(c.cfg.OutputFileName(), rows)
	if err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}
	return path, nil
}

func (c *Collector) exportMetrics() {
	path := c.cfg.Metrics.TextfilePath
	if path == "" {
		return
	}
	if err := c.metrics.WriteTextfile(path); err != nil {
		c.logger.WithError(err).Warn("Failed to write metrics textfile")
	}
}

// idRange returns the first and last tokenId present in entries
func idRange(entries []magiceden.TokenEntry) (first, last string, ok bool) {
	for _, e := range entries {
		if e.Token != nil && e.Token.TokenID.Defined() {
			if !ok {
				first = e.Token.TokenID.String()
				ok = true
			}
			last = e.Token.TokenID.String()
		}
	}
	return first, last, ok
}

func toEntries(records []Record) []checkpoint.Entry {
	entries := make([]checkpoint.Entry, len(records))
	for i, r := range records {
		entries[i] = checkpoint.Entry{TokenID: r.TokenID, ImageURL: r.ImageURL}
	}
	return entries
}
