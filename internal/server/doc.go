// SPDX-License-Identifier: MPL-2.0

// Package server exposes a box.Box over HTTP.
//
// GET and HEAD requests on the mount path carry the bundle request as
// JSON-encoded query parameters and receive the streamed module document.
// When the request's dependency closure is fully cached the response carries
// a weak ETag and Last-Modified, and matching conditional requests are
// answered with 304 Not Modified without reading any file.
package server
