// Package tracing is a thin wrapper around OpenTelemetry so the dispatch
// path can emit spans per executed action without importing the upstream
// packages directly. Applications that do not initialise an exporter get
// no-op spans.
package tracing
