// SPDX-License-Identifier: MPL-2.0

// Package rules decides which libraries of a version apply to a platform.
package rules

import (
	"github.com/lodestone/lodestone/pkg/manifest"
	"github.com/lodestone/lodestone/pkg/platform"
)

const (
	// Undecided means no rule has expressed an outcome yet.
	Undecided Decision = iota
	// Allow includes the library.
	Allow
	// Deny excludes the library.
	Deny
)

// Decision is the outcome of evaluating a rule list.
type Decision int

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Undecided:
		return "undecided"
	}
	return "unknown"
}

func decisionOf(r manifest.Rule) Decision {
	if r.Allows() {
		return Allow
	}
	return Deny
}

// Evaluate walks rules in order. An unconstrained rule sets the fallback
// outcome and evaluation continues; the first rule whose OS constraint matches
// p decides immediately and later rules are not consulted. When no
// constrained rule matches, the last unconstrained rule wins, and a list
// without one denies. An empty list allows.
func Evaluate(rules []manifest.Rule, p platform.Platform) Decision {
	if len(rules) == 0 {
		return Allow
	}

	fallback := Undecided
	for _, r := range rules {
		if !r.Constrained() {
			fallback = decisionOf(r)
			continue
		}
		if p.Matches(r.OS.Name) {
			return decisionOf(r)
		}
	}

	if fallback == Undecided {
		return Deny
	}
	return fallback
}

// Applies reports whether lib is needed on p.
func Applies(lib manifest.Library, p platform.Platform) bool {
	return Evaluate(lib.Rules, p) == Allow
}

// Filter returns the libraries that apply to p, in their original order.
// libs is not modified.
func Filter(libs []manifest.Library, p platform.Platform) []manifest.Library {
	out := make([]manifest.Library, 0, len(libs))
	for _, lib := range libs {
		if Applies(lib, p) {
			out = append(out, lib)
		}
	}
	return out
}
