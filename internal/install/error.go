// SPDX-License-Identifier: MPL-2.0

package install

import (
	"errors"
	"fmt"

	"github.com/lodestone/lodestone/internal/archive"
)

// Phase names the step of an installation that failed.
type Phase string

const (
	PhaseSetup        Phase = "setup"
	PhaseDependencies Phase = "dependencies"
	PhaseClient       Phase = "client"
	PhaseAssets       Phase = "assets"
)

// Kind classifies an installation failure.
type Kind int

const (
	// KindConnection is any I/O failure while downloading or writing files.
	KindConnection Kind = iota
	// KindExtraction is a native bundle that could not be unpacked.
	KindExtraction
)

var (
	// ErrNoClient is returned when the manifest has no client download.
	ErrNoClient = errors.New("manifest has no client download")

	// ErrNoManifest is returned when Install is called without a manifest.
	ErrNoManifest = errors.New("no version manifest")
)

// Error is a fatal installation failure. The output directory has already
// been removed when it is returned.
type Error struct {
	Phase Phase
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Phase {
	case PhaseSetup:
		return fmt.Sprintf("error preparing installation directory: %v", e.Err)
	case PhaseDependencies:
		return fmt.Sprintf("error downloading dependencies: %v", e.Err)
	case PhaseClient:
		return fmt.Sprintf("error downloading client: %v", e.Err)
	case PhaseAssets:
		return fmt.Sprintf("error downloading assets: %v", e.Err)
	default:
		return fmt.Sprintf("error during %s: %v", e.Phase, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Kind reports whether the cause is an extraction failure or a connection
// failure.
func (e *Error) Kind() Kind {
	var extractErr *archive.ExtractionError
	if errors.As(e.Err, &extractErr) {
		return KindExtraction
	}
	return KindConnection
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if k == KindExtraction {
		return "extraction"
	}
	return "connection"
}
