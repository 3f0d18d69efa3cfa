package magiceden

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tokenimages/pkg/errors"
	"tokenimages/pkg/logger"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics
const maxErrorBody = 512

// Client talks to the Magic Eden tokens API
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
}

// NewClient creates a client that authenticates with apiKey.
// A zero timeout leaves the transport default in place.
func NewClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"Authorization": "Bearer " + apiKey,
			"accept":        "application/json",
		},
		baseURL: baseURL,
		logger:  log.WithField("component", "magiceden"),
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// BaseURL returns the API host the client targets
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.New(errors.ErrorTypeNetwork, 0, "network error: %v", err)
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON response into target
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(errors.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(body, 200),
		})
		return errors.New(errors.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus turns any non-2xx response into a typed error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	errorType := errors.FromStatusCode(resp.StatusCode)

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
		"body":   preview(body, 200),
	}
	switch errorType {
	case errors.ErrorTypeServerError:
		c.logger.ErrorWithFields("server error", fields)
	case errors.ErrorTypeRateLimit:
		c.logger.WarnWithFields("rate limit exceeded", fields)
	case errors.ErrorTypeAuth:
		c.logger.WarnWithFields("authentication rejected", fields)
	default:
		c.logger.WarnWithFields("unexpected API status", fields)
	}

	return errors.New(errorType, resp.StatusCode, "unexpected status %d: %s",
		resp.StatusCode, preview(body, 200))
}

// FetchTokens fetches one page of tokens for a collection
func (c *Client) FetchTokens(ctx context.Context, q TokensQuery) (*TokensResponse, error) {
	url := GetTokensURL(c.baseURL, q)

	c.logger.DebugWithFields("fetching tokens", map[string]interface{}{
		"chain":        q.Chain,
		"collection":   q.Collection,
		"continuation": q.Continuation,
		"url":          url,
	})

	var response TokensResponse
	if err := c.GetJSON(ctx, url, &response); err != nil {
		return nil, fmt.Errorf("fetch tokens: %w", err)
	}

	return &response, nil
}

func preview(body []byte, n int) string {
	s := string(body)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
