package magiceden

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the Magic Eden mainnet API host
	DefaultBaseURL = "https://api-mainnet.magiceden.dev"

	// TokensEndpoint is the tokens v6 path; %s is the chain selector
	TokensEndpoint = "/v3/rtp/%s/tokens/v6"

	// DefaultLimit is the number of tokens requested per page
	DefaultLimit = 20

	// MaxLimit is the largest page the tokens endpoint accepts
	MaxLimit = 100

	sortBy        = "tokenId"
	sortDirection = "asc"
)

// TokensQuery describes one page request against the tokens endpoint
type TokensQuery struct {
	Chain        string
	Collection   string
	Limit        int
	Continuation string
}

// GetTokensURL builds the tokens URL for q rooted at baseURL.
// Parameters are emitted in a fixed order so identical queries produce
// identical URLs.
func GetTokensURL(baseURL string, q TokensQuery) string {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	} else if limit > MaxLimit {
		limit = MaxLimit
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	b.WriteString(fmt.Sprintf(TokensEndpoint, url.PathEscape(q.Chain)))
	b.WriteString("?collection=")
	b.WriteString(url.QueryEscape(q.Collection))
	b.WriteString(fmt.Sprintf("&limit=%d", limit))
	b.WriteString("&sortBy=" + sortBy)
	b.WriteString("&sortDirection=" + sortDirection)
	if q.Continuation != "" {
		b.WriteString("&continuation=")
		b.WriteString(url.QueryEscape(q.Continuation))
	}
	return b.String()
}
