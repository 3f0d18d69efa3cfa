// Package collector pages through a Magic Eden collection and writes one CSV
// row per unique token.
//
// A run keeps requesting pages until the continuation cursor runs out, the
// expected number of unique tokens has been seen, or the attempt budget of
// ceil(expected/pageSize)+10 fetches is spent. Tokens are deduplicated by
// tokenId in first-seen order. A failed page ends the run without failing
// it; whatever was collected is still written.
//
//	c := collector.NewFromConfig(cfg, log)
//	c.SetObserver(ui.NewProgressDisplay(cfg.Collection.Chain, cfg.Collection.TotalTokens, false))
//	result, err := c.Run(ctx)
package collector
