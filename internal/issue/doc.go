// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors for the command line: what was
// being attempted, on which resource, why it failed and what the user can
// try next.
package issue
