// SPDX-License-Identifier: MPL-2.0

package platform

import "strings"

// WindowsReservedNames are file names that Windows reserves for devices.
// They are reserved regardless of the extension that follows.
var WindowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// IsWindowsReservedName reports whether name would resolve to a device on
// Windows. Only the part before the first dot is significant, so "nul.jar"
// is reserved while "lib.nul.jar" is not.
func IsWindowsReservedName(name string) bool {
	stem, _, _ := strings.Cut(strings.ToUpper(name), ".")
	return WindowsReservedNames[stem]
}
