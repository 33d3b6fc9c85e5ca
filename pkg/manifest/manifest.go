// SPDX-License-Identifier: MPL-2.0

package manifest

const (
	// ActionAllow permits a library when its rule applies.
	ActionAllow RuleAction = "allow"
	// ActionDeny excludes a library when its rule applies.
	ActionDeny RuleAction = "deny"
)

type (
	// RuleAction is the action of a library rule. Anything other than
	// ActionAllow is treated as a deny.
	RuleAction string

	// VersionManifest is a decoded version document.
	VersionManifest struct {
		ID         string        `json:"id"`
		Type       string        `json:"type,omitempty"`
		Libraries  []Library     `json:"libraries"`
		Downloads  Downloads     `json:"downloads"`
		AssetIndex AssetIndexRef `json:"assetIndex"`
	}

	// Downloads lists the top-level artifacts of a version.
	Downloads struct {
		Client *Artifact `json:"client,omitempty"`
	}

	// AssetIndexRef points at the asset index document of a version.
	AssetIndexRef struct {
		ID        string `json:"id"`
		URL       string `json:"url"`
		SHA1      string `json:"sha1,omitempty"`
		Size      int64  `json:"size,omitempty"`
		TotalSize int64  `json:"totalSize,omitempty"`
	}

	// Library is a dependency the runtime needs, optionally restricted by
	// rules and optionally carrying platform-native bundles.
	Library struct {
		Name      string           `json:"name"`
		Downloads LibraryDownloads `json:"downloads"`
		Rules     []Rule           `json:"rules,omitempty"`
	}

	// LibraryDownloads holds the primary artifact and the native bundles.
	LibraryDownloads struct {
		Artifact    *Artifact    `json:"artifact,omitempty"`
		Classifiers *Classifiers `json:"classifiers,omitempty"`
	}

	// Artifact is a remote file and the relative path it is stored under.
	Artifact struct {
		Path string `json:"path,omitempty"`
		URL  string `json:"url"`
		SHA1 string `json:"sha1,omitempty"`
		Size int64  `json:"size,omitempty"`
	}

	// Classifiers are the native bundles of a library, keyed by platform
	// variant. NativesWindows applies to both Windows platforms.
	Classifiers struct {
		NativesWindows32 *Artifact `json:"natives-windows-32,omitempty"`
		NativesWindows64 *Artifact `json:"natives-windows-64,omitempty"`
		NativesWindows   *Artifact `json:"natives-windows,omitempty"`
		NativesLinux     *Artifact `json:"natives-linux,omitempty"`
		NativesOSX       *Artifact `json:"natives-osx,omitempty"`
	}

	// Rule allows or denies a library, optionally only on one OS.
	Rule struct {
		Action RuleAction    `json:"action"`
		OS     *OSConstraint `json:"os,omitempty"`
	}

	// OSConstraint scopes a rule to a platform name such as "windows",
	// "linux" or "osx".
	OSConstraint struct {
		Name string `json:"name"`
	}

	// AssetIndex is the decoded asset catalog: logical name to object.
	AssetIndex struct {
		Objects        map[string]AssetObject `json:"objects"`
		Virtual        bool                   `json:"virtual,omitempty"`
		MapToResources bool                   `json:"map_to_resources,omitempty"`
	}

	// AssetObject is one content-addressed asset.
	AssetObject struct {
		Hash string `json:"hash"`
		Size int64  `json:"size"`
	}
)

// Allows reports whether the rule's action is allow.
func (r Rule) Allows() bool {
	return r.Action == ActionAllow
}

// Constrained reports whether the rule carries an os object. A constraint
// without a name matches no platform.
func (r Rule) Constrained() bool {
	return r.OS != nil
}

// HasNatives reports whether the library declares any native bundle.
func (l Library) HasNatives() bool {
	c := l.Downloads.Classifiers
	if c == nil {
		return false
	}
	return c.NativesWindows32 != nil || c.NativesWindows64 != nil || c.NativesWindows != nil ||
		c.NativesLinux != nil || c.NativesOSX != nil
}
