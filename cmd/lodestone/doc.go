// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the lodestone command-line interface.
//
// Every command receives an *App, the composition root that owns the
// configuration provider, output streams and HTTP client. Commands print
// their own user-facing errors and return an *ExitError carrying the
// process exit code.
package cmd
