// SPDX-License-Identifier: MPL-2.0

// Package deps downloads the libraries of a version into a flat directory
// and unpacks the native bundles that match the target platform.
package deps
