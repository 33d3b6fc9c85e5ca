// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/lodestone/lodestone/internal/archive"
	"github.com/lodestone/lodestone/internal/assets"
	"github.com/lodestone/lodestone/internal/deps"
	"github.com/lodestone/lodestone/internal/fetch"
	"github.com/lodestone/lodestone/internal/metrics"
	"github.com/lodestone/lodestone/internal/rules"
	"github.com/lodestone/lodestone/pkg/manifest"
	"github.com/lodestone/lodestone/pkg/platform"
)

// Outcome labels for the installs counter.
const (
	outcomeOK         = "ok"
	outcomeIncomplete = "incomplete"
	outcomeFailed     = "failed"
)

type (
	// Installer builds installations. It is safe to reuse for several
	// sequential installs.
	Installer struct {
		fetcher     fetch.Fetcher
		platform    platform.Platform
		logger      *log.Logger
		metrics     metrics.Metrics
		assetHost   string
		workers     int
		observer    func(State)
		deps        *deps.Fetcher
		assets      *assets.Fetcher
		platformErr error
	}

	// Option configures an Installer.
	Option func(*Installer)
)

// WithPlatform sets the target platform instead of detecting the host.
func WithPlatform(p platform.Platform) Option {
	return func(i *Installer) {
		if p != "" {
			i.platform = p
			i.platformErr = nil
		}
	}
}

// WithLogger sets the logger shared by every step.
func WithLogger(l *log.Logger) Option {
	return func(i *Installer) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithMetrics sets the metrics sink shared by every step.
func WithMetrics(m metrics.Metrics) Option {
	return func(i *Installer) {
		i.metrics = metrics.OrNoop(m)
	}
}

// WithAssetHost overrides assets.DefaultHost.
func WithAssetHost(host string) Option {
	return func(i *Installer) {
		i.assetHost = host
	}
}

// WithAssetWorkers overrides assets.DefaultWorkers.
func WithAssetWorkers(n int) Option {
	return func(i *Installer) {
		i.workers = n
	}
}

// WithStateObserver registers fn to be called, on the installing goroutine,
// after every state transition including the initial state.
func WithStateObserver(fn func(State)) Option {
	return func(i *Installer) {
		i.observer = fn
	}
}

// New creates an Installer that downloads with f. Without WithPlatform the
// host platform is detected; an unsupported host makes Install fail.
func New(f fetch.Fetcher, opts ...Option) *Installer {
	i := &Installer{
		fetcher: f,
		logger:  log.NewWithOptions(io.Discard, log.Options{}),
		metrics: metrics.Noop{},
		workers: assets.DefaultWorkers,
	}
	i.platform, i.platformErr = platform.Detect()
	for _, opt := range opts {
		opt(i)
	}

	i.deps = deps.New(f,
		archive.NewExtractor(archive.WithLogger(i.logger.WithPrefix("natives"))),
		deps.WithLogger(i.logger.WithPrefix("deps")),
		deps.WithMetrics(i.metrics),
	)
	i.assets = assets.New(f,
		assets.WithHost(i.assetHost),
		assets.WithWorkers(i.workers),
		assets.WithLogger(i.logger.WithPrefix("assets")),
		assets.WithMetrics(i.metrics),
	)
	return i
}

// Platform returns the target platform.
func (i *Installer) Platform() platform.Platform {
	return i.platform
}

// Install builds the installation of m under dest. A failure of the
// dependency, client or asset-index step removes dest and returns an
// *Error. Individual assets that cannot be fetched do not fail the
// installation; they are listed in Report.Assets.Failed.
func (i *Installer) Install(ctx context.Context, dest string, m *manifest.VersionManifest) (*Report, error) {
	if m == nil {
		return nil, ErrNoManifest
	}
	if i.platformErr != nil {
		return nil, i.platformErr
	}

	start := time.Now()
	report := &Report{
		RunID:       uuid.New(),
		Version:     m.ID,
		Platform:    i.platform,
		Destination: dest,
	}
	logger := i.logger.With("run", report.RunID.String())
	sm := newMachine(i.observer)

	fail := func(phase Phase, err error) (*Report, error) {
		_ = sm.advance(StateFailed)
		i.metrics.IncInstalls(outcomeFailed)
		logger.Error("installation failed", "phase", phase, "err", err)
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			logger.Warn("removing incomplete installation", "path", dest, "err", rmErr)
		}
		return nil, &Error{Phase: phase, Err: err}
	}

	layout := NewLayout(dest)
	if err := layout.Create(); err != nil {
		return fail(PhaseSetup, err)
	}

	libs := rules.Filter(m.Libraries, i.platform)
	logger.Info("installing", "version", m.ID, "platform", i.platform, "libraries", len(libs), "excluded", len(m.Libraries)-len(libs))

	// Dependencies.
	stats, err := timed(i, PhaseDependencies, func() (deps.Stats, error) {
		return i.deps.FetchAll(ctx, libs, i.platform, layout.Libraries, layout.Natives)
	})
	if err != nil {
		return fail(PhaseDependencies, err)
	}
	report.Libraries, report.Natives, report.Bytes = stats.Artifacts, stats.Natives, stats.Bytes
	logger.Info("dependencies fetched", "artifacts", stats.Artifacts, "natives", stats.Natives, "size", humanize.Bytes(uint64(stats.Bytes)))
	if err := sm.advance(StateDependenciesFetched); err != nil {
		return fail(PhaseDependencies, err)
	}

	// Client.
	clientBytes, err := timed(i, PhaseClient, func() (int64, error) {
		return i.fetchClient(ctx, m, layout.ClientPath())
	})
	if err != nil {
		return fail(PhaseClient, err)
	}
	report.Bytes += clientBytes
	logger.Info("client fetched", "path", layout.ClientPath(), "size", humanize.Bytes(uint64(clientBytes)))
	if err := sm.advance(StateClientFetched); err != nil {
		return fail(PhaseClient, err)
	}

	// Assets.
	res, err := timed(i, PhaseAssets, func() (assets.Result, error) {
		return i.assets.Fetch(ctx, m.AssetIndex.URL, m.AssetIndex.ID, layout.Assets)
	})
	if err != nil {
		return fail(PhaseAssets, err)
	}
	report.Assets = res
	report.Bytes += res.Bytes
	if err := sm.advance(StateAssetsFetched); err != nil {
		return fail(PhaseAssets, err)
	}

	report.Duration = time.Since(start)
	_ = sm.advance(StateDone)

	if res.Complete() {
		i.metrics.IncInstalls(outcomeOK)
		logger.Info("installation complete", "path", dest, "size", humanize.Bytes(uint64(report.Bytes)), "elapsed", report.Duration.Round(time.Millisecond))
	} else {
		i.metrics.IncInstalls(outcomeIncomplete)
		logger.Warn("installation complete with missing assets", "path", dest, "missing", report.MissingAssets(), "elapsed", report.Duration.Round(time.Millisecond))
	}
	return report, nil
}

func (i *Installer) fetchClient(ctx context.Context, m *manifest.VersionManifest, dest string) (int64, error) {
	client := m.Downloads.Client
	if client == nil || client.URL == "" {
		return 0, ErrNoClient
	}
	i.logger.Debug("downloading client", "url", fetch.RedactURL(client.URL), "path", dest)
	n, err := fetch.DownloadFile(ctx, i.fetcher, client.URL, dest)
	if err != nil {
		i.metrics.IncDownloadFailures(metrics.KindClient)
		return 0, err
	}
	i.metrics.IncDownloads(metrics.KindClient)
	i.metrics.AddDownloadedBytes(metrics.KindClient, n)
	return n, nil
}

// timed runs fn and records its duration under phase.
func timed[T any](i *Installer, phase Phase, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	i.metrics.ObservePhaseDuration(string(phase), time.Since(start).Seconds())
	return v, err
}
