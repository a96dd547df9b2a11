// SPDX-License-Identifier: MPL-2.0

// Package watch observes the module root and special module files and
// reports debounced batches of changed host paths. InvalidateCache turns
// those batches into Cache.Invalidate calls so long-running servers stop
// serving stale resolution records.
package watch
