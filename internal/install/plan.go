// SPDX-License-Identifier: MPL-2.0

package install

import (
	"github.com/lodestone/lodestone/internal/deps"
	"github.com/lodestone/lodestone/internal/rules"
	"github.com/lodestone/lodestone/pkg/manifest"
	"github.com/lodestone/lodestone/pkg/platform"
)

type (
	// Plan is what Install would fetch for a manifest on a platform.
	Plan struct {
		Version    string
		Platform   platform.Platform
		Libraries  []PlannedLibrary
		Excluded   []string
		ClientURL  string
		AssetIndex manifest.AssetIndexRef
	}

	// PlannedLibrary is one library that passed its rules.
	PlannedLibrary struct {
		Name string
		// Artifact is the flattened file name under libraries/, or empty.
		Artifact string
		// Natives are the flattened bundle names to extract, in order.
		Natives []string
		// Problems lists paths that Install would reject.
		Problems []string
	}
)

// NewPlan computes the plan of m on p without any network access.
func NewPlan(m *manifest.VersionManifest, p platform.Platform) Plan {
	plan := Plan{
		Version:    m.ID,
		Platform:   p,
		AssetIndex: m.AssetIndex,
	}
	if m.Downloads.Client != nil {
		plan.ClientURL = m.Downloads.Client.URL
	}

	for _, lib := range m.Libraries {
		if !rules.Applies(lib, p) {
			plan.Excluded = append(plan.Excluded, lib.Name)
			continue
		}

		pl := PlannedLibrary{Name: lib.Name}
		if a := lib.Downloads.Artifact; a != nil {
			if name, err := deps.FlattenPath(a.Path); err != nil {
				pl.Problems = append(pl.Problems, err.Error())
			} else {
				pl.Artifact = name
			}
		}
		for _, native := range deps.SelectNatives(lib.Downloads.Classifiers, p) {
			if name, err := deps.FlattenPath(native.Path); err != nil {
				pl.Problems = append(pl.Problems, err.Error())
			} else {
				pl.Natives = append(pl.Natives, name)
			}
		}
		plan.Libraries = append(plan.Libraries, pl)
	}
	return plan
}

// NativeCount returns the number of bundles the plan extracts.
func (p Plan) NativeCount() int {
	n := 0
	for _, lib := range p.Libraries {
		n += len(lib.Natives)
	}
	return n
}
