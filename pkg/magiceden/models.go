package magiceden

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TokensResponse is the body returned by the tokens v6 endpoint
type TokensResponse struct {
	Tokens       []TokenEntry `json:"tokens"`
	Continuation *string      `json:"continuation"`
}

// NextCursor returns the continuation cursor, or "" when the collection is exhausted
func (r *TokensResponse) NextCursor() string {
	if r == nil || r.Continuation == nil {
		return ""
	}
	return *r.Continuation
}

// TokenEntry wraps a single token in the response list
type TokenEntry struct {
	Token *Token `json:"token"`
}

// Token holds the fields of a token that the collector reads
type Token struct {
	TokenID  TokenID `json:"tokenId"`
	Image    string  `json:"image"`
	Name     string  `json:"name,omitempty"`
	Contract string  `json:"contract,omitempty"`
}

// TokenID is a token identifier. The API sends it as a string, but older
// collections return a bare number; both decode to the same decimal text.
type TokenID string

// UnmarshalJSON accepts a JSON string, a JSON number or null
func (id *TokenID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TokenID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("tokenId must be a string or number: %w", err)
	}
	*id = TokenID(n.String())
	return nil
}

// Defined reports whether the identifier was present in the response
func (id TokenID) Defined() bool {
	return id != ""
}

func (id TokenID) String() string {
	return string(id)
}
