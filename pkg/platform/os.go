// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// OS name constants for runtime.GOOS comparisons.
const (
	GOOSWindows = "windows"
	GOOSDarwin  = "darwin"
	GOOSLinux   = "linux"
)

const (
	// Win32 is a 32-bit Windows host.
	Win32 Platform = "win32"
	// Win64 is a 64-bit Windows host.
	Win64 Platform = "win64"
	// Linux is a Linux host.
	Linux Platform = "linux"
	// OSX is a macOS host.
	OSX Platform = "osx"

	// Auto asks for detection instead of a fixed platform.
	Auto = "auto"

	// constraintWindows is the generic rule constraint that matches both
	// Windows platforms.
	constraintWindows = "windows"
)

var (
	// ErrUnsupportedPlatform is returned when the host OS has no Platform.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrInvalidPlatform is returned when a platform name cannot be parsed.
	ErrInvalidPlatform = errors.New("invalid platform")
)

// Platform names the operating system flavour a dependency may target.
type Platform string

// All returns every known platform in a stable order.
func All() []Platform {
	return []Platform{Win32, Win64, Linux, OSX}
}

// Detect returns the platform of the running process.
func Detect() (Platform, error) {
	return DetectFrom(runtime.GOOS, runtime.GOARCH)
}

// DetectFrom maps a GOOS/GOARCH pair to a Platform. Windows on 386 or 32-bit
// ARM is win32; every other Windows architecture is win64.
func DetectFrom(goos, goarch string) (Platform, error) {
	switch goos {
	case GOOSWindows:
		if goarch == "386" || goarch == "arm" {
			return Win32, nil
		}
		return Win64, nil
	case GOOSDarwin:
		return OSX, nil
	case GOOSLinux:
		return Linux, nil
	default:
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
}

// Parse converts a platform name into a Platform. The empty string and "auto"
// detect the host platform.
func Parse(name string) (Platform, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == Auto {
		return Detect()
	}
	for _, p := range All() {
		if string(p) == n {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q (expected one of auto, win32, win64, linux, osx)", ErrInvalidPlatform, name)
}

// String returns the platform name.
func (p Platform) String() string {
	return string(p)
}

// IsWindows reports whether p is either Windows platform.
func (p Platform) IsWindows() bool {
	return p == Win32 || p == Win64
}

// Matches reports whether a rule's OS constraint name applies to p.
// "windows" matches both win32 and win64, every other name only matches the
// platform of the same name. Unknown names never match.
func (p Platform) Matches(name string) bool {
	if name == constraintWindows {
		return p.IsWindows()
	}
	return name != "" && Platform(name) == p
}
