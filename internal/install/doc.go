// SPDX-License-Identifier: MPL-2.0

// Package install turns a version manifest into a runnable installation:
// it lays out the directory tree, fetches the libraries and natives of the
// target platform, the client jar and the asset catalog, and cleans up the
// whole tree when a fatal step fails.
//
// Steps run in a fixed order, tracked by a small state machine:
//
//	Init -> DependenciesFetched -> ClientFetched -> AssetsFetched -> Done
//
// with Failed reachable from every non-terminal state.
package install
