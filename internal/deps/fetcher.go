// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/lodestone/lodestone/internal/archive"
	"github.com/lodestone/lodestone/internal/fetch"
	"github.com/lodestone/lodestone/internal/metrics"
	"github.com/lodestone/lodestone/pkg/manifest"
	"github.com/lodestone/lodestone/pkg/platform"
)

type (
	// Stats counts what a fetch wrote.
	Stats struct {
		Artifacts int
		Natives   int
		Bytes     int64
	}

	// Fetcher downloads libraries sequentially.
	Fetcher struct {
		fetcher   fetch.Fetcher
		extractor *archive.Extractor
		logger    *log.Logger
		metrics   metrics.Metrics
	}

	// Option configures a Fetcher.
	Option func(*Fetcher)
)

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Artifacts += o.Artifacts
	s.Natives += o.Natives
	s.Bytes += o.Bytes
}

// WithLogger sets the logger for per-download debug output.
func WithLogger(l *log.Logger) Option {
	return func(d *Fetcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(d *Fetcher) {
		d.metrics = metrics.OrNoop(m)
	}
}

// New creates a Fetcher that downloads with f and unpacks natives with x.
// A nil x uses an Extractor with default settings.
func New(f fetch.Fetcher, x *archive.Extractor, opts ...Option) *Fetcher {
	if x == nil {
		x = archive.NewExtractor()
	}
	d := &Fetcher{
		fetcher:   f,
		extractor: x,
		logger:    log.NewWithOptions(io.Discard, log.Options{}),
		metrics:   metrics.Noop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FetchAll fetches libs one after another and stops at the first failure.
// The returned Stats cover the libraries completed before the failure.
func (d *Fetcher) FetchAll(ctx context.Context, libs []manifest.Library, p platform.Platform, librariesDir, nativesDir string) (Stats, error) {
	var total Stats
	for _, lib := range libs {
		s, err := d.Fetch(ctx, lib, p, librariesDir, nativesDir)
		total.Add(s)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Fetch downloads the primary artifact of lib into librariesDir and every
// native bundle selected for p into nativesDir, where it is extracted and
// then removed. A library with neither is a no-op.
func (d *Fetcher) Fetch(ctx context.Context, lib manifest.Library, p platform.Platform, librariesDir, nativesDir string) (Stats, error) {
	var s Stats

	if a := lib.Downloads.Artifact; a != nil {
		n, err := d.download(ctx, *a, librariesDir, metrics.KindLibrary)
		if err != nil {
			return s, fmt.Errorf("library %s: %w", lib.Name, err)
		}
		s.Artifacts++
		s.Bytes += n
	}

	for _, native := range SelectNatives(lib.Downloads.Classifiers, p) {
		n, err := d.download(ctx, native, nativesDir, metrics.KindNative)
		if err != nil {
			return s, fmt.Errorf("natives of %s: %w", lib.Name, err)
		}
		s.Bytes += n

		bundle, _ := FlattenPath(native.Path) // validated by download
		res, err := d.extractor.Extract(filepath.Join(nativesDir, bundle), nativesDir)
		if err != nil {
			return s, fmt.Errorf("natives of %s: %w", lib.Name, err)
		}
		d.metrics.IncExtractions()
		d.logger.Debug("extracted natives", "library", lib.Name, "bundle", bundle, "files", len(res.Extracted))
		s.Natives++
	}
	return s, nil
}

func (d *Fetcher) download(ctx context.Context, a manifest.Artifact, dir, kind string) (int64, error) {
	name, err := FlattenPath(a.Path)
	if err != nil {
		d.metrics.IncDownloadFailures(kind)
		return 0, err
	}
	dest := filepath.Join(dir, name)

	d.logger.Debug("downloading", "kind", kind, "url", fetch.RedactURL(a.URL), "path", dest)
	n, err := fetch.DownloadFile(ctx, d.fetcher, a.URL, dest)
	if err != nil {
		d.metrics.IncDownloadFailures(kind)
		return 0, err
	}
	d.metrics.IncDownloads(kind)
	d.metrics.AddDownloadedBytes(kind, n)
	return n, nil
}
