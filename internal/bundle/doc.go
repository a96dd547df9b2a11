// SPDX-License-Identifier: MPL-2.0

// Package bundle streams the module document for one request.
//
// A Traversal resolves the requested identifiers through a box.Box, then
// drains a breadth-first queue of jobs, emitting each file's bytes between
// framing markers and finishing with the per-file dependency maps. Output is
// pulled chunk by chunk with Next, so the caller decides how to deliver it.
package bundle
