// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown guidance
// rendered for the user when a command fails.
//
// An ActionableError names the operation and resource that failed and may
// point at a catalog entry by Id; the CLI renders that entry with glamour
// below the error line.
package issue
