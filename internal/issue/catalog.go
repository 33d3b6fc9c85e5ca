// SPDX-License-Identifier: MPL-2.0

package issue

import "slices"

// Id identifies a catalogued issue.
type Id int

const (
	ManifestNotFoundId Id = iota + 1
	ManifestInvalidId
	ConfigInvalidId
	DownloadFailedId
	ExtractionFailedId
	AssetsIncompleteId
	PlatformUnsupportedId
)

// Issue is a known failure with the remediation steps shown to users.
type Issue struct {
	id          Id
	title       string
	suggestions []string
}

// Id returns the lookup key of the issue.
func (i *Issue) Id() Id {
	return i.id
}

// Title returns a one-line summary.
func (i *Issue) Title() string {
	return i.title
}

// Suggestions returns a copy of the remediation steps.
func (i *Issue) Suggestions() []string {
	return slices.Clone(i.suggestions)
}

var issues = map[Id]*Issue{
	ManifestNotFoundId: {
		id:    ManifestNotFoundId,
		title: "version manifest not found",
		suggestions: []string{
			"Check the path or URL of the version manifest",
			"Local files are read as is; http(s) URLs are downloaded first",
		},
	},
	ManifestInvalidId: {
		id:    ManifestInvalidId,
		title: "version manifest is invalid",
		suggestions: []string{
			"Make sure the file is a version JSON document, not the version list",
			"Re-download the manifest; a truncated file fails validation",
		},
	},
	ConfigInvalidId: {
		id:    ConfigInvalidId,
		title: "configuration is invalid",
		suggestions: []string{
			"Run 'lodestone config dump' to see the effective configuration",
			"Run 'lodestone config init' to write a default configuration file",
		},
	},
	DownloadFailedId: {
		id:    DownloadFailedId,
		title: "download failed",
		suggestions: []string{
			"Check your network connection and proxy settings",
			"Re-run the installation; the partial output has been removed",
		},
	},
	ExtractionFailedId: {
		id:    ExtractionFailedId,
		title: "native bundle could not be unpacked",
		suggestions: []string{
			"The bundle may be truncated or corrupt; re-run the installation",
		},
	},
	AssetsIncompleteId: {
		id:    AssetsIncompleteId,
		title: "some assets are missing",
		suggestions: []string{
			"Re-run the installation to fetch the missing objects",
			"Use --report to list the missing hashes",
		},
	},
	PlatformUnsupportedId: {
		id:    PlatformUnsupportedId,
		title: "platform is not supported",
		suggestions: []string{
			"Pass --platform with one of win32, win64, linux or osx",
			"Or set install.platform in the configuration file",
		},
	},
}

// Get returns the issue registered under id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}

// Values returns every catalogued issue ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}
