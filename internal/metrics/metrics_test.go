// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNoopMetrics(t *testing.T) {
	t.Parallel()

	var m Metrics = Noop{}
	m.IncDownloads(KindLibrary)
	m.AddDownloadedBytes(KindLibrary, 10)
	m.IncDownloadFailures(KindAsset)
	m.IncExtractions()
	m.ObservePhaseDuration("assets", 1)
	m.IncInstalls("ok")
}

func TestOrNoop(t *testing.T) {
	t.Parallel()

	if _, ok := OrNoop(nil).(Noop); !ok {
		t.Error("OrNoop(nil) should return Noop")
	}
	reg := prometheus.NewRegistry()
	p, err := NewProm("lodestone", reg)
	if err != nil {
		t.Fatal(err)
	}
	if OrNoop(p) != Metrics(p) {
		t.Error("OrNoop should return a non-nil value unchanged")
	}
}

func TestPromMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewProm("lodestone", reg)
	if err != nil {
		t.Fatalf("NewProm: %v", err)
	}
	m.IncDownloads(KindAsset)
	m.IncDownloads(KindAsset)
	m.AddDownloadedBytes(KindAsset, 512)
	m.AddDownloadedBytes(KindAsset, 0)
	m.IncDownloadFailures(KindAsset)
	m.IncExtractions()
	m.ObservePhaseDuration("dependencies", 0.5)
	m.IncInstalls("ok")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got := counterValue(families, "lodestone_downloads_total", map[string]string{"kind": "asset"}); got != 2 {
		t.Errorf("downloads_total = %v, want 2", got)
	}
	if got := counterValue(families, "lodestone_downloaded_bytes_total", map[string]string{"kind": "asset"}); got != 512 {
		t.Errorf("downloaded_bytes_total = %v, want 512", got)
	}
	if got := counterValue(families, "lodestone_download_failures_total", map[string]string{"kind": "asset"}); got != 1 {
		t.Errorf("download_failures_total = %v, want 1", got)
	}
	if got := counterValue(families, "lodestone_extractions_total", nil); got != 1 {
		t.Errorf("extractions_total = %v, want 1", got)
	}
	if got := counterValue(families, "lodestone_installs_total", map[string]string{"status": "ok"}); got != 1 {
		t.Errorf("installs_total = %v, want 1", got)
	}
	if !hasMetric(families, "lodestone_phase_duration_seconds", map[string]string{"phase": "dependencies"}) {
		t.Error("expected phase_duration_seconds metric")
	}
}

func TestNewProm_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	if _, err := NewProm("lodestone", reg); err != nil {
		t.Fatalf("first NewProm: %v", err)
	}
	if _, err := NewProm("lodestone", reg); err == nil {
		t.Error("registering the same collectors twice should fail")
	}
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewProm("lodestone", reg)
	if err != nil {
		t.Fatal(err)
	}
	m.IncInstalls("ok")

	path := filepath.Join(t.TempDir(), "lodestone.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `lodestone_installs_total{status="ok"} 1`) {
		t.Errorf("textfile missing installs counter:\n%s", data)
	}
}

func findMetric(families []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if labelsMatch(metric.GetLabel(), labels) {
				return metric
			}
		}
	}
	return nil
}

func hasMetric(families []*dto.MetricFamily, name string, labels map[string]string) bool {
	return findMetric(families, name, labels) != nil
}

func counterValue(families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	metric := findMetric(families, name, labels)
	if metric == nil {
		return -1
	}
	return metric.GetCounter().GetValue()
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, pair := range pairs {
		if want[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}
