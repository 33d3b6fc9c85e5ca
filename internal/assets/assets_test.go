// SPDX-License-Identifier: MPL-2.0

package assets

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
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lodestone/lodestone/internal/fetch"
	"github.com/lodestone/lodestone/internal/testutil"
	"github.com/lodestone/lodestone/pkg/manifest"
)

func hashOf(body string) string {
	sum := sha1.Sum([]byte(body)) //nolint:gosec // test fixture addressing
	return hex.EncodeToString(sum[:])
}

// catalog serves objects and an index listing them under the given names.
type catalog struct {
	srv     *testutil.Server
	objects map[string]manifest.AssetObject
}

func newCatalog(t *testing.T) *catalog {
	t.Helper()
	return &catalog{srv: testutil.NewServer(t), objects: make(map[string]manifest.AssetObject)}
}

// add serves body and lists it under name.
func (c *catalog) add(name, body string) string {
	h := hashOf(body)
	c.srv.Handle("/"+h[:2]+"/"+h, []byte(body))
	c.objects[name] = manifest.AssetObject{Hash: h, Size: int64(len(body))}
	return h
}

// list lists hash under name without serving it.
func (c *catalog) list(name, hash string) {
	c.objects[name] = manifest.AssetObject{Hash: hash, Size: 1}
}

func (c *catalog) indexURL(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(manifest.AssetIndex{Objects: c.objects})
	if err != nil {
		t.Fatal(err)
	}
	return c.srv.Handle("/indexes/test.json", data)
}

func (c *catalog) fetcher(opts ...Option) *Fetcher {
	return New(fetch.NewClient(), append([]Option{WithHost(c.srv.URL)}, opts...)...)
}

func readPersistedIndex(t *testing.T, root, id string) *manifest.AssetIndex {
	t.Helper()
	f, err := os.Open(filepath.Join(root, "indexes", id+".json"))
	if err != nil {
		t.Fatalf("persisted index: %v", err)
	}
	defer func() { _ = f.Close() }()
	idx, err := manifest.DecodeAssetIndex(f)
	if err != nil {
		t.Fatalf("decoding persisted index: %v", err)
	}
	return idx
}

func TestFetch_StoresObjectsAndIndex(t *testing.T) {
	t.Parallel()

	c := newCatalog(t)
	sound := c.add("minecraft/sounds/a.ogg", "sound-a")
	lang := c.add("minecraft/lang/en_us.json", "{}")
	root := t.TempDir()

	res, err := c.fetcher().Fetch(context.Background(), c.indexURL(t), "test", root)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !res.Complete() || res.Total != 2 || res.Unique != 2 || res.Fetched != 2 {
		t.Errorf("Result = %+v", res)
	}
	if res.Bytes != int64(len("sound-a")+len("{}")) {
		t.Errorf("Bytes = %d", res.Bytes)
	}

	for hash, body := range map[string]string{sound: "sound-a", lang: "{}"} {
		got, err := os.ReadFile(ObjectPath(filepath.Join(root, "objects"), hash))
		if err != nil {
			t.Fatalf("object %s: %v", hash, err)
		}
		if string(got) != body {
			t.Errorf("object %s = %q, want %q", hash, got, body)
		}
	}

	if idx := readPersistedIndex(t, root, "test"); len(idx.Objects) != 2 {
		t.Errorf("persisted index has %d objects, want 2", len(idx.Objects))
	}
}

func TestFetch_SharedHashDownloadedOnce(t *testing.T) {
	t.Parallel()

	c := newCatalog(t)
	h := c.add("a/one.png", "same")
	c.add("b/two.png", "same")
	c.add("c/three.png", "same")
	root := t.TempDir()

	res, err := c.fetcher().Fetch(context.Background(), c.indexURL(t), "test", root)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Total != 3 || res.Unique != 1 || res.Fetched != 1 {
		t.Errorf("Result = %+v", res)
	}
	if hits := c.srv.Hits("/" + h[:2] + "/" + h); hits != 1 {
		t.Errorf("object requested %d times, want 1", hits)
	}
	if idx := readPersistedIndex(t, root, "test"); len(idx.Objects) != 3 {
		t.Errorf("persisted index has %d objects, want 3", len(idx.Objects))
	}
}

func TestFetch_PartialFailureIsRecorded(t *testing.T) {
	t.Parallel()

	c := newCatalog(t)
	c.add("ok.ogg", "fine")
	missing := hashOf("never served")
	c.list("gone.ogg", missing)
	c.list("alias.ogg", missing)
	c.srv.Fail("/"+missing[:2]+"/"+missing, http.StatusNotFound)
	root := t.TempDir()

	res, err := c.fetcher().Fetch(context.Background(), c.indexURL(t), "test", root)
	if err != nil {
		t.Fatalf("a failed object must not fail the fetch: %v", err)
	}
	if res.Complete() {
		t.Fatal("Result should be incomplete")
	}
	if res.Fetched != 1 || len(res.Failed) != 1 {
		t.Fatalf("Result = %+v", res)
	}

	f := res.Failed[0]
	if f.Hash != missing {
		t.Errorf("Failed hash = %s, want %s", f.Hash, missing)
	}
	if strings.Join(f.Names, ",") != "alias.ogg,gone.ogg" {
		t.Errorf("Failed names = %v", f.Names)
	}
	if !errors.Is(f, fetch.ErrConnection) {
		t.Errorf("failure cause should be a connection error: %v", f.Err)
	}
	if f.Reason == "" {
		t.Error("Reason should describe the failure")
	}

	if idx := readPersistedIndex(t, root, "test"); len(idx.Objects) != 3 {
		t.Errorf("index must be written despite failures, has %d objects", len(idx.Objects))
	}
}

func TestFetch_InvalidHashIsIsolated(t *testing.T) {
	t.Parallel()

	c := newCatalog(t)
	c.add("good.txt", "good")
	c.list("bad.txt", "ZZ-not-hex")
	root := t.TempDir()

	res, err := c.fetcher().Fetch(context.Background(), c.indexURL(t), "test", root)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Fetched != 1 || len(res.Failed) != 1 {
		t.Fatalf("Result = %+v", res)
	}
	if !errors.Is(res.Failed[0], ErrInvalidHash) {
		t.Errorf("expected ErrInvalidHash, got %v", res.Failed[0].Err)
	}
}

func TestFetch_UppercaseHashIsFetched(t *testing.T) {
	t.Parallel()

	c := newCatalog(t)
	upper := strings.ToUpper(hashOf("loud"))
	c.srv.Handle("/"+upper[:2]+"/"+upper, []byte("loud"))
	c.list("loud.ogg", upper)
	root := t.TempDir()

	res, err := c.fetcher().Fetch(context.Background(), c.indexURL(t), "test", root)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Fetched != 1 || len(res.Failed) != 0 {
		t.Fatalf("Result = %+v", res)
	}
	if _, err := os.Stat(ObjectPath(filepath.Join(root, "objects"), upper)); err != nil {
		t.Errorf("object not stored under its hash: %v", err)
	}
}

func TestFetch_InvalidIndexID(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", ".", "..", "../escape", `a\b`, "nested/id"} {
		c := newCatalog(t)
		_, err := c.fetcher().Fetch(context.Background(), c.srv.URL+"/index.json", id, t.TempDir())
		if !errors.Is(err, ErrInvalidIndexID) {
			t.Errorf("id %q: expected ErrInvalidIndexID, got %v", id, err)
		}
		if c.srv.TotalHits() != 0 {
			t.Errorf("id %q: no request expected before validation", id)
		}
	}
}

func TestFetch_IndexUnavailable(t *testing.T) {
	t.Parallel()

	c := newCatalog(t)
	root := t.TempDir()

	_, err := c.fetcher().Fetch(context.Background(), c.srv.Fail("/index.json", http.StatusBadGateway), "test", root)
	if !errors.Is(err, fetch.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(root, "indexes", "test.json")); !os.IsNotExist(statErr) {
		t.Error("no index should be written when it cannot be read")
	}
}

func TestFetch_IndexMalformed(t *testing.T) {
	t.Parallel()

	c := newCatalog(t)
	_, err := c.fetcher().Fetch(context.Background(), c.srv.Handle("/index.json", []byte(`{"objects": 3}`)), "test", t.TempDir())
	if !errors.Is(err, manifest.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestFetch_IndexWrittenAfterAllDownloads(t *testing.T) {
	t.Parallel()

	c := newCatalog(t)
	for i := range 16 {
		c.add("obj"+string(rune('a'+i)), "body-"+string(rune('a'+i)))
	}
	indexURL := c.indexURL(t)
	root := t.TempDir()
	indexPath := filepath.Join(root, "indexes", "test.json")

	var early atomic.Bool
	client := fetch.NewClient()
	spy := fetch.FetcherFunc(func(ctx context.Context, rawURL string) (io.ReadCloser, error) {
		if rawURL != indexURL {
			if _, err := os.Stat(indexPath); err == nil {
				early.Store(true)
			}
		}
		return client.Fetch(ctx, rawURL)
	})

	res, err := New(spy, WithHost(c.srv.URL), WithWorkers(4)).Fetch(context.Background(), indexURL, "test", root)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Fetched != 16 {
		t.Errorf("Fetched = %d, want 16", res.Fetched)
	}
	if early.Load() {
		t.Error("index was persisted before all downloads finished")
	}
	if _, err := os.Stat(indexPath); err != nil {
		t.Errorf("index not persisted: %v", err)
	}
}

func TestFetch_CanceledRunIsFatal(t *testing.T) {
	t.Parallel()

	c := newCatalog(t)
	for i := range 8 {
		c.add("c"+string(rune('a'+i)), "canceled-"+string(rune('a'+i)))
	}
	indexURL := c.indexURL(t)
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := fetch.NewClient()
	cancelOnObject := fetch.FetcherFunc(func(ctx context.Context, rawURL string) (io.ReadCloser, error) {
		if rawURL != indexURL {
			cancel()
		}
		return client.Fetch(ctx, rawURL)
	})

	_, err := New(cancelOnObject, WithHost(c.srv.URL), WithWorkers(2)).Fetch(ctx, indexURL, "test", root)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if _, statErr := os.Stat(filepath.Join(root, "indexes", "test.json")); !os.IsNotExist(statErr) {
		t.Errorf("index persisted for a canceled run: %v", statErr)
	}
}

func TestFetch_RespectsWorkerLimit(t *testing.T) {
	t.Parallel()

	c := newCatalog(t)
	for i := range 12 {
		c.add("n"+string(rune('a'+i)), "v"+string(rune('a'+i)))
	}
	indexURL := c.indexURL(t)

	var inFlight, peak atomic.Int32
	client := fetch.NewClient()
	spy := fetch.FetcherFunc(func(ctx context.Context, rawURL string) (io.ReadCloser, error) {
		if rawURL == indexURL {
			return client.Fetch(ctx, rawURL)
		}
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return client.Fetch(ctx, rawURL)
	})

	res, err := New(spy, WithHost(c.srv.URL), WithWorkers(3)).Fetch(context.Background(), indexURL, "test", t.TempDir())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Fetched != 12 {
		t.Errorf("Fetched = %d, want 12", res.Fetched)
	}
	if p := peak.Load(); p > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", p)
	}
}

func TestValidHash(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"ab":               true,
		"0123456789abcdef": true,
		hashOf("x"):        true,
		"AB":               true,
		"0123456789ABCDEF": true,
		"a":                false,
		"":                 false,
		"g0":               false,
		"../../etc/passwd": false,
	}
	for in, want := range tests {
		if got := ValidHash(in); got != want {
			t.Errorf("ValidHash(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestObjectURLAndPath(t *testing.T) {
	t.Parallel()

	h := "bdf48ef6b5d0d23bbb02e17d04865216179f510a"
	if got, want := ObjectURL(DefaultHost, h), DefaultHost+"/bd/"+h; got != want {
		t.Errorf("ObjectURL = %s, want %s", got, want)
	}
	if got, want := ObjectPath("objects", h), filepath.Join("objects", "bd", h); got != want {
		t.Errorf("ObjectPath = %s, want %s", got, want)
	}
}

func TestWithHost_TrimsSlash(t *testing.T) {
	t.Parallel()

	if got := New(nil, WithHost("https://cdn.example/")).host; got != "https://cdn.example" {
		t.Errorf("host = %s", got)
	}
	if got := New(nil, WithHost("")).host; got != DefaultHost {
		t.Errorf("empty host should keep default, got %s", got)
	}
}
