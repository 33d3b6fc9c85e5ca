// SPDX-License-Identifier: MPL-2.0

// Package testutil provides fixtures shared by lodestone's tests: in-memory
// zip archives shaped like native bundles, and an HTTP file server that
// records requests and can be told to fail specific paths.
package testutil
