// SPDX-License-Identifier: MPL-2.0

// Package platform identifies the host platform an installation targets.
//
// A Platform is one of win32, win64, linux or osx. It is detected once per run
// from runtime.GOOS/GOARCH (or parsed from an explicit override) and never
// changes afterwards. The package also matches library rule constraints
// against a platform and rejects file names that Windows reserves for devices.
package platform
