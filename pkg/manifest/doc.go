// SPDX-License-Identifier: MPL-2.0

// Package manifest holds the decoded form of a version manifest and of the
// asset index it points at.
//
// Both documents are JSON. DecodeVersion and DecodeAssetIndex validate a
// document against an embedded JSON schema before decoding it, so callers get
// one error that names the offending location instead of a half-filled struct.
// The types are read-only inputs to the installer; nothing in lodestone
// mutates them after decoding.
package manifest
