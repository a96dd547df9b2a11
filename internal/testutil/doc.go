// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers that fail the test on error:
// filesystem fixtures on afero filesystems (WriteTree, MustChtimes) and
// resource cleanup (MustClose, MustStop).
package testutil
