// Package extension provides the run-time registries the execution runtime
// is assembled from: action services keyed by name, the Go types their
// inputs and outputs decode into, and optional capability plugins with an
// explicit initialization lifecycle.
package extension
