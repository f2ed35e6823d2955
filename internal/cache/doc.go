// Package cache holds the per-run clip arena. An arena lives for one
// assembly run and is discarded with it; nothing is shared across runs.
package cache
