// SPDX-License-Identifier: MPL-2.0

// Package serverbase holds the lifecycle state machine shared by long-running
// components such as the bundle HTTP server.
//
// A Base moves Created -> Starting -> Running -> Stopping -> Stopped, or to
// Failed from any non-terminal state. Reads are lock-free; transitions use
// compare-and-swap so concurrent Start/Stop calls resolve to one winner.
package serverbase
