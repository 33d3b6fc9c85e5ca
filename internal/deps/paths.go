// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lodestone/lodestone/pkg/manifest"
	"github.com/lodestone/lodestone/pkg/platform"
)

// ErrInvalidPath is returned for artifact paths that cannot be stored safely.
var ErrInvalidPath = errors.New("invalid artifact path")

// FlattenPath turns a nested artifact path into a single file name by
// replacing every "/" with ".", so "org/lwjgl/lwjgl-3.jar" becomes
// "org.lwjgl.lwjgl-3.jar". Two distinct paths can flatten to the same name;
// the later download then overwrites the earlier one.
func FlattenPath(rel string) (string, error) {
	switch {
	case rel == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	case strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) || strings.Contains(rel, `\`):
		return "", fmt.Errorf("%w: %q is not a relative slash path", ErrInvalidPath, rel)
	}
	for seg := range strings.SplitSeq(rel, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q climbs out of its directory", ErrInvalidPath, rel)
		}
	}

	flat := strings.ReplaceAll(rel, "/", ".")
	if platform.IsWindowsReservedName(flat) {
		return "", fmt.Errorf("%w: %q is a reserved Windows name", ErrInvalidPath, flat)
	}
	return flat, nil
}

// SelectNatives returns the native bundles of c to install on p, most
// specific first. Windows platforms take the bitness-specific bundle and the
// generic Windows bundle when both exist.
func SelectNatives(c *manifest.Classifiers, p platform.Platform) []manifest.Artifact {
	if c == nil {
		return nil
	}

	var candidates []*manifest.Artifact
	switch p {
	case platform.Win64:
		candidates = []*manifest.Artifact{c.NativesWindows64, c.NativesWindows}
	case platform.Win32:
		candidates = []*manifest.Artifact{c.NativesWindows32, c.NativesWindows}
	case platform.Linux:
		candidates = []*manifest.Artifact{c.NativesLinux}
	case platform.OSX:
		candidates = []*manifest.Artifact{c.NativesOSX}
	}

	var out []manifest.Artifact
	for _, a := range candidates {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}
