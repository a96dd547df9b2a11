// SPDX-License-Identifier: MPL-2.0

// Package resolution holds the values that describe how a module identifier
// was resolved: either a concrete root-relative filepath or a client-safe
// ErrorDescriptor.
//
// Everything in this package may be serialized to an untrusted client, so
// descriptors carry only name, message and code. Stack traces and wrapped
// causes never cross this boundary.
package resolution
