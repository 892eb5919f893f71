// Package otel bridges jwtgate engine metrics into OpenTelemetry.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter
// and, for the validation latency histogram, one Int64ObservableGauge per
// cumulative bucket plus count and sum gauges. A single callback takes one
// engine snapshot per collection cycle. The caller owns the MeterProvider.
package otel
