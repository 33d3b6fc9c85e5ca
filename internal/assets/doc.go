// SPDX-License-Identifier: MPL-2.0

// Package assets downloads the content-addressed asset catalog of a version.
// Objects are fetched by a bounded pool of workers; an object that fails is
// recorded and skipped, never aborting its siblings.
package assets
