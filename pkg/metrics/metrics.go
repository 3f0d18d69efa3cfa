package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tokenimages"

// Metrics holds the counters for one collection run
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched      prometheus.Counter
	PageFailures      *prometheus.CounterVec
	TokensCollected   prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	EntriesSkipped    prometheus.Counter
	RequestDuration   prometheus.Histogram
	UniqueTokens      prometheus.Gauge
	ExpectedTokens    prometheus.Gauge
}

// New creates a Metrics set registered on its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages successfully fetched from the tokens API",
		}),
		PageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_failures_total",
			Help:      "Page fetches that failed, by error type",
		}, []string{"type"}),
		TokensCollected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_collected_total",
			Help:      "Unique tokens added to the output",
		}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      "Token entries dropped because their tokenId was already seen",
		}),
		EntriesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_skipped_total",
			Help:      "Token entries dropped for a missing tokenId or image",
		}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of page requests",
			Buckets:   prometheus.DefBuckets,
		}),
		UniqueTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unique_tokens",
			Help:      "Unique tokens collected so far",
		}),
		ExpectedTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expected_tokens",
			Help:      "Configured collection size",
		}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePage records the outcome of one page request
func (m *Metrics) ObservePage(duration time.Duration, errorType string) {
	m.RequestDuration.Observe(duration.Seconds())
	if errorType == "" {
		m.PagesFetched.Inc()
		return
	}
	m.PageFailures.WithLabelValues(errorType).Inc()
}

// WriteTextfile writes all metrics in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
