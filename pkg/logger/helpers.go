package logger

import (
	"fmt"
	"time"
)

// LogRequest logs a completed HTTP request against the marketplace API
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	default:
		l.WarnWithFields("HTTP request client error", fields)
	}
}

// LogCollectionProgress logs how far a collection run has come
func LogCollectionProgress(l Logger, chain string, unique, target, attempt, maxAttempts int) {
	percentage := 0.0
	if target > 0 {
		percentage = float64(unique) / float64(target) * 100
	}

	l.WithFields(map[string]interface{}{
		"chain":        chain,
		"unique":       unique,
		"target":       target,
		"attempt":      attempt,
		"max_attempts": maxAttempts,
		"percentage":   fmt.Sprintf("%.1f%%", percentage),
	}).Info("Collection progress")
}

// LogRateLimit logs a throttling response from the API
func LogRateLimit(l Logger, endpoint string, backoff time.Duration) {
	l.WithFields(map[string]interface{}{
		"endpoint": endpoint,
		"backoff":  backoff,
		"action":   "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
