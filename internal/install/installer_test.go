// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"crypto/sha1" //nolint:gosec // asset objects are addressed by SHA-1
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lodestone/lodestone/internal/fetch"
	"github.com/lodestone/lodestone/internal/metrics"
	"github.com/lodestone/lodestone/internal/testutil"
	"github.com/lodestone/lodestone/pkg/manifest"
	"github.com/lodestone/lodestone/pkg/platform"
)

// fixture is a served version: one plain library, one linux-only native
// library, one osx-only library, a client and two assets.
type fixture struct {
	srv       *testutil.Server
	manifest  *manifest.VersionManifest
	assetHash []string
}

func hashOf(body string) string {
	sum := sha1.Sum([]byte(body)) //nolint:gosec // test fixture addressing
	return hex.EncodeToString(sum[:])
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := testutil.NewServer(t)
	f := &fixture{srv: srv}

	objects := map[string]manifest.AssetObject{}
	for _, body := range []string{"sound", "texture"} {
		h := hashOf(body)
		srv.Handle("/objects/"+h[:2]+"/"+h, []byte(body))
		objects["minecraft/"+body] = manifest.AssetObject{Hash: h, Size: int64(len(body))}
		f.assetHash = append(f.assetHash, h)
	}
	index, err := json.Marshal(manifest.AssetIndex{Objects: objects})
	if err != nil {
		t.Fatal(err)
	}

	f.manifest = &manifest.VersionManifest{
		ID: "1.12.2",
		Libraries: []manifest.Library{
			{
				Name: "com.mojang:patchy:1.1",
				Downloads: manifest.LibraryDownloads{Artifact: &manifest.Artifact{
					Path: "com/mojang/patchy/1.1/patchy-1.1.jar",
					URL:  srv.Handle("/libs/patchy.jar", []byte("patchy")),
				}},
			},
			{
				Name: "org.lwjgl:lwjgl-platform:2.9.4",
				Downloads: manifest.LibraryDownloads{Classifiers: &manifest.Classifiers{
					NativesLinux: &manifest.Artifact{
						Path: "org/lwjgl/lwjgl-platform-natives-linux.jar",
						URL:  srv.Handle("/libs/natives-linux.jar", testutil.NativeBundle(t, "liblwjgl.so", "so")),
					},
				}},
			},
			{
				Name:  "ca.weblite:java-objc-bridge:1.0.0",
				Rules: []manifest.Rule{{Action: manifest.ActionAllow, OS: &manifest.OSConstraint{Name: "osx"}}},
				Downloads: manifest.LibraryDownloads{Artifact: &manifest.Artifact{
					Path: "ca/weblite/java-objc-bridge-1.0.0.jar",
					URL:  srv.Handle("/libs/objc.jar", []byte("objc")),
				}},
			},
		},
		Downloads: manifest.Downloads{Client: &manifest.Artifact{URL: srv.Handle("/client.jar", []byte("client"))}},
		AssetIndex: manifest.AssetIndexRef{
			ID:  "1.12",
			URL: srv.Handle("/indexes/1.12.json", index),
		},
	}
	return f
}

func (f *fixture) installer(opts ...Option) *Installer {
	base := []Option{WithPlatform(platform.Linux), WithAssetHost(f.srv.URL + "/objects"), WithAssetWorkers(4)}
	return New(fetch.NewClient(), append(base, opts...)...)
}

func recordStates(states *[]State) Option {
	return WithStateObserver(func(s State) { *states = append(*states, s) })
}

func TestInstall_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dest := filepath.Join(t.TempDir(), "1.12.2")
	var states []State

	report, err := f.installer(recordStates(&states)).Install(context.Background(), dest, f.manifest)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	wantStates := []State{StateInit, StateDependenciesFetched, StateClientFetched, StateAssetsFetched, StateDone}
	if !slices.Equal(states, wantStates) {
		t.Errorf("states = %v, want %v", states, wantStates)
	}

	for _, rel := range []string{
		"libraries/com.mojang.patchy.1.1.patchy-1.1.jar",
		"natives/liblwjgl.so",
		"client.jar",
		"assets/indexes/1.12.json",
		"assets/objects/" + f.assetHash[0][:2] + "/" + f.assetHash[0],
		"assets/objects/" + f.assetHash[1][:2] + "/" + f.assetHash[1],
	} {
		if _, err := os.Stat(filepath.Join(dest, filepath.FromSlash(rel))); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}
	if info, err := os.Stat(filepath.Join(dest, ".minecraft")); err != nil || !info.IsDir() {
		t.Errorf(".minecraft should be an empty directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "natives", "META-INF")); !os.IsNotExist(err) {
		t.Error("META-INF must not be extracted")
	}
	if _, err := os.Stat(filepath.Join(dest, "libraries", "ca.weblite.java-objc-bridge-1.0.0.jar")); !os.IsNotExist(err) {
		t.Error("osx-only library must not be installed on linux")
	}
	if f.srv.Hits("/libs/objc.jar") != 0 {
		t.Error("osx-only library must not be requested on linux")
	}

	if report.Version != "1.12.2" || report.Platform != platform.Linux || report.Destination != dest {
		t.Errorf("report header = %+v", report)
	}
	if report.Libraries != 1 || report.Natives != 1 {
		t.Errorf("Libraries = %d, Natives = %d, want 1 and 1", report.Libraries, report.Natives)
	}
	if !report.Complete() || report.MissingAssets() != 0 {
		t.Errorf("report should be complete: %+v", report.Assets)
	}
	if report.Assets.Fetched != 2 {
		t.Errorf("Assets.Fetched = %d, want 2", report.Assets.Fetched)
	}
	if report.Duration <= 0 {
		t.Error("Duration should be positive")
	}
}

func TestInstall_DependencyFailureRemovesDestination(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.srv.Fail("/libs/patchy.jar", http.StatusNotFound)
	dest := filepath.Join(t.TempDir(), "out")
	var states []State

	report, err := f.installer(recordStates(&states)).Install(context.Background(), dest, f.manifest)
	if report != nil {
		t.Error("no report expected on failure")
	}

	var installErr *Error
	if !errors.As(err, &installErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if installErr.Phase != PhaseDependencies || installErr.Kind() != KindConnection {
		t.Errorf("Phase = %s, Kind = %s", installErr.Phase, installErr.Kind())
	}
	if !strings.HasPrefix(err.Error(), "error downloading dependencies") {
		t.Errorf("message = %q", err.Error())
	}
	if !errors.Is(err, fetch.ErrConnection) {
		t.Error("cause should be a connection error")
	}

	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination must be removed after a failure")
	}
	if f.srv.Hits("/client.jar") != 0 || f.srv.Hits("/indexes/1.12.json") != 0 {
		t.Error("later steps must not run after a dependency failure")
	}
	if !slices.Equal(states, []State{StateInit, StateFailed}) {
		t.Errorf("states = %v", states)
	}
}

func TestInstall_CorruptNativesIsExtractionError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.srv.Handle("/libs/natives-linux.jar", []byte("not a zip"))
	dest := filepath.Join(t.TempDir(), "out")

	_, err := f.installer().Install(context.Background(), dest, f.manifest)
	var installErr *Error
	if !errors.As(err, &installErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if installErr.Kind() != KindExtraction {
		t.Errorf("Kind = %s, want extraction", installErr.Kind())
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination must be removed after a failure")
	}
}

func TestInstall_ClientFailures(t *testing.T) {
	t.Parallel()

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.srv.Fail("/client.jar", http.StatusForbidden)
		dest := filepath.Join(t.TempDir(), "out")
		var states []State

		_, err := f.installer(recordStates(&states)).Install(context.Background(), dest, f.manifest)
		var installErr *Error
		if !errors.As(err, &installErr) || installErr.Phase != PhaseClient {
			t.Fatalf("expected client-phase error, got %v", err)
		}
		if !strings.HasPrefix(err.Error(), "error downloading client") {
			t.Errorf("message = %q", err.Error())
		}
		if !slices.Equal(states, []State{StateInit, StateDependenciesFetched, StateFailed}) {
			t.Errorf("states = %v", states)
		}
		if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
			t.Error("destination must be removed after a failure")
		}
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.manifest.Downloads.Client = nil

		_, err := f.installer().Install(context.Background(), filepath.Join(t.TempDir(), "out"), f.manifest)
		if !errors.Is(err, ErrNoClient) {
			t.Fatalf("expected ErrNoClient, got %v", err)
		}
	})
}

func TestInstall_AssetIndexFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.srv.Fail("/indexes/1.12.json", http.StatusInternalServerError)
	dest := filepath.Join(t.TempDir(), "out")

	_, err := f.installer().Install(context.Background(), dest, f.manifest)
	var installErr *Error
	if !errors.As(err, &installErr) || installErr.Phase != PhaseAssets {
		t.Fatalf("expected assets-phase error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "error downloading assets") {
		t.Errorf("message = %q", err.Error())
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination must be removed after a failure")
	}
}

func TestInstall_MissingAssetIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	missing := f.assetHash[0]
	f.srv.Fail("/objects/"+missing[:2]+"/"+missing, http.StatusNotFound)
	dest := filepath.Join(t.TempDir(), "out")
	var states []State

	report, err := f.installer(recordStates(&states)).Install(context.Background(), dest, f.manifest)
	if err != nil {
		t.Fatalf("a missing asset must not fail the installation: %v", err)
	}
	if report.MissingAssets() != 1 || report.Complete() {
		t.Errorf("MissingAssets = %d, Complete = %v", report.MissingAssets(), report.Complete())
	}
	if report.Assets.Failed[0].Hash != missing {
		t.Errorf("Failed = %+v", report.Assets.Failed)
	}
	if states[len(states)-1] != StateDone {
		t.Errorf("final state = %s, want done", states[len(states)-1])
	}
	if _, err := os.Stat(filepath.Join(dest, "client.jar")); err != nil {
		t.Errorf("installation must be kept: %v", err)
	}
}

func TestInstall_CanceledDuringAssetsRemovesDestination(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dest := filepath.Join(t.TempDir(), "out")
	var states []State

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := fetch.NewClient()
	cancelOnAsset := fetch.FetcherFunc(func(ctx context.Context, rawURL string) (io.ReadCloser, error) {
		if strings.Contains(rawURL, "/objects/") {
			cancel()
		}
		return client.Fetch(ctx, rawURL)
	})
	installer := New(cancelOnAsset,
		WithPlatform(platform.Linux),
		WithAssetHost(f.srv.URL+"/objects"),
		WithAssetWorkers(1),
		recordStates(&states),
	)

	report, err := installer.Install(ctx, dest, f.manifest)
	if report != nil {
		t.Errorf("report = %+v, want nil", report)
	}
	var installErr *Error
	if !errors.As(err, &installErr) || installErr.Phase != PhaseAssets {
		t.Fatalf("expected assets-phase error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error does not wrap context.Canceled: %v", err)
	}
	if states[len(states)-1] != StateFailed {
		t.Errorf("final state = %s, want failed", states[len(states)-1])
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination must be removed after an interrupted install")
	}
}

func TestInstall_NilManifest(t *testing.T) {
	t.Parallel()

	_, err := New(fetch.NewClient(), WithPlatform(platform.Linux)).Install(context.Background(), t.TempDir(), nil)
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("expected ErrNoManifest, got %v", err)
	}
}

func TestInstall_RecordsMetrics(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	reg := prometheus.NewRegistry()
	m, err := metrics.NewProm("lodestone", reg)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.installer(WithMetrics(m)).Install(context.Background(), filepath.Join(t.TempDir(), "out"), f.manifest); err != nil {
		t.Fatalf("Install: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{
		"lodestone_downloads_total":        false,
		"lodestone_extractions_total":      false,
		"lodestone_installs_total":         false,
		"lodestone_phase_duration_seconds": false,
	}
	for _, fam := range families {
		if _, ok := want[fam.GetName()]; ok {
			want[fam.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric %s not recorded", name)
		}
	}
}

func TestState(t *testing.T) {
	t.Parallel()

	names := map[State]string{
		StateInit:                "init",
		StateDependenciesFetched: "dependencies-fetched",
		StateClientFetched:       "client-fetched",
		StateAssetsFetched:       "assets-fetched",
		StateDone:                "done",
		StateFailed:              "failed",
		State(42):                "state(42)",
	}
	for s, want := range names {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}

	if allowedTransition(StateInit, StateClientFetched) {
		t.Error("steps cannot be skipped")
	}
	if allowedTransition(StateDone, StateFailed) || allowedTransition(StateFailed, StateInit) {
		t.Error("terminal states have no transitions")
	}
	for _, s := range []State{StateInit, StateDependenciesFetched, StateClientFetched, StateAssetsFetched} {
		if !allowedTransition(s, StateFailed) {
			t.Errorf("%s -> failed should be allowed", s)
		}
	}
}

func TestLayout(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "game")
	l := NewLayout(root)
	if err := l.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, dir := range []string{"libraries", "natives", ".minecraft", "assets", filepath.Join("assets", "objects"), filepath.Join("assets", "indexes")} {
		if info, err := os.Stat(filepath.Join(root, dir)); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
	if l.ClientPath() != filepath.Join(root, "client.jar") {
		t.Errorf("ClientPath = %s", l.ClientPath())
	}
}
