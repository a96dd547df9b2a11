// SPDX-License-Identifier: MPL-2.0

// Package box owns the resolution cache and the dependency scanner.
//
// A Box resolves batches of module identifiers against a directory, scans file
// content for the identifiers it requires, and computes a fingerprint over the
// transitive closure of a request when every file in that closure has already
// been read. The cache is an explicit value injected at construction, so
// independent roots can live in one process and tests stay isolated.
//
// Resolving an identifier to a file and extracting require calls from source
// text are delegated to the Localizer and Extractor collaborators.
package box
