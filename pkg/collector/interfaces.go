package collector

import (
	"context"

	"tokenimages/pkg/magiceden"
)

// TokenFetcher fetches one page of a collection
type TokenFetcher interface {
	FetchTokens(ctx context.Context, q magiceden.TokensQuery) (*magiceden.TokensResponse, error)
}

// Observer is notified as pages are processed. ui.ProgressDisplay implements it.
type Observer interface {
	PageFetched(attempt, maxAttempts, added, unique int)
	PageFailed(attempt int, err error)
}
