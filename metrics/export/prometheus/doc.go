// Package prometheus exposes jwtgate engine metrics through
// prometheus/client_golang.
//
// [Collector] reads a fresh engine snapshot on every scrape and reports it as
// const metrics: one counter per engine counter, prefixed jwtgate_ and
// suffixed _total, plus the jwtgate_validate_latency_seconds histogram.
// Nothing is registered globally; use [Collector.Handler] or register the
// collector with a registry you own.
package prometheus
