// SPDX-License-Identifier: MPL-2.0

package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lodestone/lodestone/internal/fetch"
	"github.com/lodestone/lodestone/internal/metrics"
	"github.com/lodestone/lodestone/pkg/manifest"
)

const (
	// DefaultHost serves asset objects.
	DefaultHost = "https://resources.download.minecraft.net"

	// DefaultWorkers bounds concurrent object downloads.
	DefaultWorkers = 64

	// maxIndexBytes bounds the asset index document (64 MB).
	maxIndexBytes = 64 << 20
)

var (
	// ErrInvalidHash is recorded for objects whose hash is not hex
	// of at least two characters.
	ErrInvalidHash = errors.New("invalid asset hash")

	// ErrInvalidIndexID is returned when the index ID cannot be used as a
	// file name.
	ErrInvalidIndexID = errors.New("invalid asset index id")
)

type (
	// Failure is one object that could not be stored.
	Failure struct {
		Hash string `toml:"hash"`
		// Names are the logical asset names sharing the hash, sorted.
		Names []string `toml:"names"`
		// Reason is Err rendered as text for reports.
		Reason string `toml:"reason"`
		Err    error  `toml:"-"`
	}

	// Result summarizes an asset fetch.
	Result struct {
		IndexID string `toml:"index_id"`
		// Total is the number of logical names in the index.
		Total int `toml:"total"`
		// Unique is the number of distinct hashes, i.e. download tasks.
		Unique  int       `toml:"unique"`
		Fetched int       `toml:"fetched"`
		Bytes   int64     `toml:"bytes"`
		Failed  []Failure `toml:"failed,omitempty"`
	}

	// Fetcher downloads asset catalogs.
	Fetcher struct {
		fetcher fetch.Fetcher
		host    string
		workers int
		logger  *log.Logger
		metrics metrics.Metrics
	}

	// Option configures a Fetcher.
	Option func(*Fetcher)

	// task is one distinct object to download.
	task struct {
		hash  string
		names []string
	}
)

// Complete reports whether every object was stored.
func (r Result) Complete() bool {
	return len(r.Failed) == 0
}

// Error implements the error interface.
func (f Failure) Error() string {
	return fmt.Sprintf("asset %s (%s): %v", f.Hash, strings.Join(f.Names, ", "), f.Err)
}

// Unwrap returns the underlying cause.
func (f Failure) Unwrap() error {
	return f.Err
}

// WithHost sets the object host. A trailing slash is ignored.
func WithHost(host string) Option {
	return func(a *Fetcher) {
		if host = strings.TrimRight(host, "/"); host != "" {
			a.host = host
		}
	}
}

// WithWorkers sets the number of concurrent downloads. Values < 1 are ignored.
func WithWorkers(n int) Option {
	return func(a *Fetcher) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Fetcher) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(a *Fetcher) {
		a.metrics = metrics.OrNoop(m)
	}
}

// New creates a Fetcher using DefaultHost and DefaultWorkers unless
// configured otherwise.
func New(f fetch.Fetcher, opts ...Option) *Fetcher {
	a := &Fetcher{
		fetcher: f,
		host:    DefaultHost,
		workers: DefaultWorkers,
		logger:  log.NewWithOptions(io.Discard, log.Options{}),
		metrics: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ValidHash reports whether hash is at least two hex characters of either case.
func ValidHash(hash string) bool {
	if len(hash) < 2 {
		return false
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// ObjectURL returns the download URL of the object with the given hash.
func ObjectURL(host, hash string) string {
	return host + "/" + hash[:2] + "/" + hash
}

// ObjectPath returns where the object with the given hash is stored.
func ObjectPath(objectsDir, hash string) string {
	return filepath.Join(objectsDir, hash[:2], hash)
}

// Fetch downloads the index at indexURL, stores every object it lists under
// assetsRoot/objects and, once all downloads have finished, writes the index
// to assetsRoot/indexes/<indexID>.json. Reading or decoding the index is
// fatal, as is ctx being canceled before the barrier; an object that fails
// is recorded in Result.Failed instead.
func (a *Fetcher) Fetch(ctx context.Context, indexURL, indexID, assetsRoot string) (Result, error) {
	res := Result{IndexID: indexID}
	if err := checkIndexID(indexID); err != nil {
		return res, err
	}

	idx, err := a.readIndex(ctx, indexURL)
	if err != nil {
		return res, err
	}
	tasks := dedupe(idx)
	res.Total = len(idx.Objects)
	res.Unique = len(tasks)

	objectsDir := filepath.Join(assetsRoot, "objects")
	a.logger.Info("fetching assets", "index", indexID, "objects", res.Total, "unique", res.Unique, "workers", a.workers)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(a.workers)
	for _, t := range tasks {
		g.Go(func() error {
			n, err := a.fetchObject(ctx, objectsDir, t.hash)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.metrics.IncDownloadFailures(metrics.KindAsset)
				a.logger.Warn("asset download failed", "hash", t.hash, "names", t.names, "err", err)
				res.Failed = append(res.Failed, Failure{Hash: t.hash, Names: t.names, Reason: err.Error(), Err: err})
				return nil
			}
			a.metrics.IncDownloads(metrics.KindAsset)
			a.metrics.AddDownloadedBytes(metrics.KindAsset, n)
			res.Fetched++
			res.Bytes += n
			return nil
		})
	}
	// Tasks never return an error; Wait is the join barrier.
	_ = g.Wait()

	slices.SortFunc(res.Failed, func(x, y Failure) int { return strings.Compare(x.Hash, y.Hash) })

	// Tasks of a canceled run fail one by one; the run itself is fatal and
	// leaves no index behind.
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("asset fetch interrupted: %w", err)
	}

	if err := writeIndex(filepath.Join(assetsRoot, "indexes"), indexID, idx); err != nil {
		return res, err
	}
	return res, nil
}

func (a *Fetcher) readIndex(ctx context.Context, indexURL string) (*manifest.AssetIndex, error) {
	a.logger.Debug("downloading asset index", "url", fetch.RedactURL(indexURL))
	data, err := fetch.ReadAll(ctx, a.fetcher, indexURL, maxIndexBytes)
	if err != nil {
		a.metrics.IncDownloadFailures(metrics.KindIndex)
		return nil, err
	}
	a.metrics.IncDownloads(metrics.KindIndex)
	a.metrics.AddDownloadedBytes(metrics.KindIndex, int64(len(data)))

	idx, err := manifest.DecodeAssetIndex(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("asset index: %w", err)
	}
	return idx, nil
}

func (a *Fetcher) fetchObject(ctx context.Context, objectsDir, hash string) (int64, error) {
	if !ValidHash(hash) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	dest := ObjectPath(objectsDir, hash)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("creating object directory: %w", err)
	}
	u := ObjectURL(a.host, hash)
	a.logger.Debug("downloading asset", "hash", hash, "url", u)
	return fetch.DownloadFile(ctx, a.fetcher, u, dest)
}

// dedupe groups the index by hash so every object is downloaded once, in
// hash order.
func dedupe(idx *manifest.AssetIndex) []task {
	byHash := make(map[string][]string, len(idx.Objects))
	for name, obj := range idx.Objects {
		byHash[obj.Hash] = append(byHash[obj.Hash], name)
	}

	tasks := make([]task, 0, len(byHash))
	for hash, names := range byHash {
		slices.Sort(names)
		tasks = append(tasks, task{hash: hash, names: names})
	}
	slices.SortFunc(tasks, func(x, y task) int { return strings.Compare(x.hash, y.hash) })
	return tasks
}

func checkIndexID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidIndexID, id)
	}
	return nil
}

func writeIndex(indexesDir, id string, idx *manifest.AssetIndex) error {
	data, err := idx.MarshalIndent()
	if err != nil {
		return fmt.Errorf("encoding asset index: %w", err)
	}
	if err := os.MkdirAll(indexesDir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	path := filepath.Join(indexesDir, id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing asset index: %w", err)
	}
	return nil
}
