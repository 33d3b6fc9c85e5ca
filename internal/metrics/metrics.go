// SPDX-License-Identifier: MPL-2.0

// Package metrics defines the installation counters and their Prometheus
// implementation. Collectors are registered on a caller-supplied registry so
// a one-shot CLI run can dump them to a node_exporter textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Download kinds used as the "kind" label.
const (
	KindLibrary = "library"
	KindNative  = "native"
	KindClient  = "client"
	KindAsset   = "asset"
	KindIndex   = "index"
)

// Metrics collects installation counters. Implementations must be safe for
// concurrent use; the asset pool reports from many goroutines.
type Metrics interface {
	IncDownloads(kind string)
	AddDownloadedBytes(kind string, n int64)
	IncDownloadFailures(kind string)
	IncExtractions()
	ObservePhaseDuration(phase string, seconds float64)
	IncInstalls(status string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncDownloads(string)                  {}
func (Noop) AddDownloadedBytes(string, int64)     {}
func (Noop) IncDownloadFailures(string)           {}
func (Noop) IncExtractions()                      {}
func (Noop) ObservePhaseDuration(string, float64) {}
func (Noop) IncInstalls(string)                   {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	downloads     *prometheus.CounterVec
	bytes         *prometheus.CounterVec
	failures      *prometheus.CounterVec
	extractions   prometheus.Counter
	phaseDuration *prometheus.HistogramVec
	installs      *prometheus.CounterVec
}

// NewProm creates the collectors under namespace and registers them on reg.
// A nil reg means prometheus.DefaultRegisterer.
func NewProm(namespace string, reg prometheus.Registerer) (*Prom, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prom{
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Completed downloads by kind",
		}, []string{"kind"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written to disk by kind",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_failures_total",
			Help:      "Failed downloads by kind",
		}, []string{"kind"}),
		extractions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Native bundles extracted",
		}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Installation phase duration by phase",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"phase"}),
		installs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installs_total",
			Help:      "Installations by outcome",
		}, []string{"status"}),
	}
	for _, c := range []prometheus.Collector{p.downloads, p.bytes, p.failures, p.extractions, p.phaseDuration, p.installs} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}
	return p, nil
}

func (p *Prom) IncDownloads(kind string) {
	p.downloads.WithLabelValues(kind).Inc()
}

func (p *Prom) AddDownloadedBytes(kind string, n int64) {
	if n > 0 {
		p.bytes.WithLabelValues(kind).Add(float64(n))
	}
}

func (p *Prom) IncDownloadFailures(kind string) {
	p.failures.WithLabelValues(kind).Inc()
}

func (p *Prom) IncExtractions() {
	p.extractions.Inc()
}

func (p *Prom) ObservePhaseDuration(phase string, seconds float64) {
	p.phaseDuration.WithLabelValues(phase).Observe(seconds)
}

func (p *Prom) IncInstalls(status string) {
	p.installs.WithLabelValues(status).Inc()
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, atomically, for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// OrNoop returns m, or Noop when m is nil.
func OrNoop(m Metrics) Metrics {
	if m == nil {
		return Noop{}
	}
	return m
}
