// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"
)

const (
	// DefaultSkipSegment names the directory of jar signing metadata.
	DefaultSkipSegment = "META-INF"

	// DefaultMaxEntryBytes bounds a single extracted entry (512 MiB).
	DefaultMaxEntryBytes int64 = 512 << 20
)

var (
	// ErrExtraction is matched by every ExtractionError.
	ErrExtraction = errors.New("extraction failed")

	// ErrUnsafePath is returned for entries that would be written outside
	// the destination directory.
	ErrUnsafePath = errors.New("entry escapes destination directory")

	// ErrEntryTooLarge is returned when an entry exceeds the configured limit.
	ErrEntryTooLarge = errors.New("entry exceeds size limit")
)

type (
	// ExtractionError reports a bundle that could not be unpacked.
	ExtractionError struct {
		// Archive is the base name of the bundle.
		Archive string
		Err     error
	}

	// Result summarizes one extraction.
	Result struct {
		// Extracted lists the written files, relative to the destination, in
		// archive order.
		Extracted []string
		// Skipped counts entries dropped by the skip segments, directories included.
		Skipped int
	}

	// Extractor unpacks zip bundles. It holds no per-call state and may be
	// shared between goroutines.
	Extractor struct {
		logger        *log.Logger
		skipSegments  map[string]struct{}
		maxEntryBytes int64
	}

	// Option configures an Extractor.
	Option func(*Extractor)
)

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Archive, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrExtraction.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// WithLogger sets the logger used for per-entry debug output.
func WithLogger(l *log.Logger) Option {
	return func(x *Extractor) {
		if l != nil {
			x.logger = l
		}
	}
}

// WithSkipSegments replaces the set of path segments whose entries are never
// written. Passing no segments disables skipping.
func WithSkipSegments(segments ...string) Option {
	return func(x *Extractor) {
		x.skipSegments = make(map[string]struct{}, len(segments))
		for _, s := range segments {
			x.skipSegments[s] = struct{}{}
		}
	}
}

// WithMaxEntryBytes sets the per-entry size limit. Values <= 0 are ignored.
func WithMaxEntryBytes(n int64) Option {
	return func(x *Extractor) {
		if n > 0 {
			x.maxEntryBytes = n
		}
	}
}

// NewExtractor returns an Extractor that skips META-INF and limits entries
// to DefaultMaxEntryBytes unless configured otherwise.
func NewExtractor(opts ...Option) *Extractor {
	x := &Extractor{
		logger:        log.NewWithOptions(io.Discard, log.Options{}),
		skipSegments:  map[string]struct{}{DefaultSkipSegment: {}},
		maxEntryBytes: DefaultMaxEntryBytes,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Extract unpacks archivePath into destDir, overwriting existing files, and
// deletes the archive once every entry has been handled. On failure the
// archive is left in place and files extracted so far are not rolled back.
func (x *Extractor) Extract(archivePath, destDir string) (Result, error) {
	name := filepath.Base(archivePath)
	fail := func(err error) (Result, error) {
		return Result{}, &ExtractionError{Archive: name, Err: err}
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		if r != nil {
			_ = r.Close()
		}
		return fail(err)
	}
	res, err := x.extractAll(&r.Reader, destDir)
	// Close before removing; Windows cannot delete an open file.
	if closeErr := r.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fail(err)
	}

	if err := os.Remove(archivePath); err != nil {
		return fail(fmt.Errorf("removing archive: %w", err))
	}
	x.logger.Debug("extracted bundle", "archive", name, "files", len(res.Extracted), "skipped", res.Skipped)
	return res, nil
}

func (x *Extractor) extractAll(r *zip.Reader, destDir string) (Result, error) {
	var res Result
	for _, f := range r.File {
		if x.skipped(f.Name) {
			res.Skipped++
			continue
		}

		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return res, err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return res, fmt.Errorf("creating directory %s: %w", f.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return res, fmt.Errorf("creating parent of %s: %w", f.Name, err)
		}
		if err := x.extractFile(f, target); err != nil {
			return res, fmt.Errorf("writing %s: %w", f.Name, err)
		}
		x.logger.Debug("extracted entry", "entry", f.Name, "path", target)
		res.Extracted = append(res.Extracted, filepath.ToSlash(strings.TrimPrefix(f.Name, "./")))
	}
	return res, nil
}

func (x *Extractor) extractFile(f *zip.File, target string) (err error) {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	// One extra byte tells an entry of exactly the limit from a larger one.
	n, err := io.Copy(out, io.LimitReader(rc, x.maxEntryBytes+1))
	if err != nil {
		return err
	}
	if n > x.maxEntryBytes {
		return fmt.Errorf("%w (%d bytes)", ErrEntryTooLarge, x.maxEntryBytes)
	}

	// OpenFile keeps the mode of a file that already existed.
	return out.Chmod(perm)
}

// skipped reports whether any slash-separated segment of name is a skip segment.
func (x *Extractor) skipped(name string) bool {
	if len(x.skipSegments) == 0 {
		return false
	}
	for seg := range strings.SplitSeq(strings.ReplaceAll(name, `\`, "/"), "/") {
		if _, ok := x.skipSegments[seg]; ok {
			return true
		}
	}
	return false
}

// safeJoin resolves an entry name under destDir, refusing absolute names and
// names that climb out of it.
func safeJoin(destDir, name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if slashed == "" || strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	target := filepath.Join(destDir, filepath.FromSlash(slashed))
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return target, nil
}
