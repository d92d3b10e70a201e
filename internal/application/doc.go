// Package application wires the configuration backend, metrics, HTTP handlers
// and server together, and owns the lifecycle of the optional file watcher.
// It keeps the main package focused on CLI parsing and orchestration.
package application
