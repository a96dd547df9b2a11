// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the modulebox CLI: the bundle server, one-shot bundle
// and graph commands, and configuration management.
package cmd
