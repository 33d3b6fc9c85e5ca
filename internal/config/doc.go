// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/lodestone/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/lodestone/config.cue on macOS, %APPDATA%\lodestone\config.cue
// on Windows) and validated against the embedded CUE schema (config_schema.cue). Every key
// can be overridden from the environment with the LODESTONE_ prefix, dots replaced by
// underscores: LODESTONE_ASSETS_WORKERS=16.
package config
