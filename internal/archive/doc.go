// SPDX-License-Identifier: MPL-2.0

// Package archive extracts zip bundles (native library jars) into a
// directory, skipping signing metadata and rejecting entries that would land
// outside the destination.
package archive
