// Package metrics tracks Prometheus counters for a collection run.
//
// A batch job has no scrape endpoint, so the metrics are written once at the
// end of a run in the node_exporter textfile format when
// metrics.textfile_path is configured.
//
// Exported series:
//   - tokenimages_pages_fetched_total (Counter)
//   - tokenimages_page_failures_total{type} (Counter)
//   - tokenimages_tokens_collected_total (Counter)
//   - tokenimages_duplicates_skipped_total (Counter)
//   - tokenimages_entries_skipped_total (Counter)
//   - tokenimages_request_duration_seconds (Histogram)
//   - tokenimages_unique_tokens (Gauge)
//   - tokenimages_expected_tokens (Gauge)
package metrics
