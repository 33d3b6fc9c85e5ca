// SPDX-License-Identifier: MPL-2.0

package install

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/lodestone/lodestone/internal/assets"
	"github.com/lodestone/lodestone/pkg/platform"
)

// Report describes a finished installation.
type Report struct {
	RunID       uuid.UUID
	Version     string
	Platform    platform.Platform
	Destination string
	// Libraries and Natives count downloaded artifacts and extracted bundles.
	Libraries int
	Natives   int
	Assets    assets.Result
	// Bytes is the total written, excluding extracted native files.
	Bytes    int64
	Duration time.Duration
}

// reportDocument is the TOML shape of a Report.
type reportDocument struct {
	RunID       string        `toml:"run_id"`
	Version     string        `toml:"version"`
	Platform    string        `toml:"platform"`
	Destination string        `toml:"destination"`
	Libraries   int           `toml:"libraries"`
	Natives     int           `toml:"natives"`
	Bytes       int64         `toml:"bytes"`
	Duration    string        `toml:"duration"`
	Complete    bool          `toml:"complete"`
	Assets      assets.Result `toml:"assets"`
}

// MissingAssets returns the number of asset objects that were not stored.
func (r *Report) MissingAssets() int {
	return len(r.Assets.Failed)
}

// Complete reports whether nothing is missing from the installation.
func (r *Report) Complete() bool {
	return r.Assets.Complete()
}

// MarshalTOML encodes the report as a TOML document.
func (r *Report) MarshalTOML() ([]byte, error) {
	doc := reportDocument{
		RunID:       r.RunID.String(),
		Version:     r.Version,
		Platform:    r.Platform.String(),
		Destination: r.Destination,
		Libraries:   r.Libraries,
		Natives:     r.Natives,
		Bytes:       r.Bytes,
		Duration:    r.Duration.Round(time.Millisecond).String(),
		Complete:    r.Complete(),
		Assets:      r.Assets,
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return data, nil
}

// WriteTOML writes the report to path.
func (r *Report) WriteTOML(path string) error {
	data, err := r.MarshalTOML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
