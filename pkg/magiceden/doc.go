// Package magiceden is a small client for the Magic Eden tokens v6 API.
//
// Each call fetches one page of a collection, sorted by tokenId ascending.
// Pages are chained through the opaque continuation cursor:
//
//	client := magiceden.NewClient(magiceden.DefaultBaseURL, apiKey, 0, log)
//	page, err := client.FetchTokens(ctx, magiceden.TokensQuery{
//	    Chain:      "ethereum",
//	    Collection: contract,
//	    Limit:      magiceden.DefaultLimit,
//	})
//
// Failures come back as *errors.Error from tokenimages/pkg/errors so callers
// can tell a throttled request from a rejected key.
package magiceden
