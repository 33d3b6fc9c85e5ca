// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DownloadFile streams rawURL to dest and returns the number of bytes
// written. The body is written to a temporary file next to dest and renamed
// over it, so an existing file is replaced whole and concurrent writers of the
// same path never interleave. Errors while reading the body are
// ConnectionErrors; local filesystem errors are returned as is.
func DownloadFile(ctx context.Context, f Fetcher, rawURL, dest string) (_ int64, err error) {
	body, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return 0, NewConnectionError(rawURL, err)
	}
	defer func() { _ = body.Close() }() // read-only response body

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file for %s: %w", dest, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			// Best-effort removal of partially written temp file.
			_ = os.Remove(tmpName)
		}
	}()

	n, copyErr := io.Copy(tmp, body)
	if closeErr := tmp.Close(); closeErr != nil && copyErr == nil {
		return 0, fmt.Errorf("writing %s: %w", dest, closeErr)
	}
	if copyErr != nil {
		return 0, classifyCopyError(rawURL, dest, copyErr)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return 0, fmt.Errorf("replacing %s: %w", dest, err)
	}
	return n, nil
}

// ReadAll reads at most limit bytes from rawURL into memory. A body longer
// than limit is an error rather than silently truncated.
func ReadAll(ctx context.Context, f Fetcher, rawURL string, limit int64) ([]byte, error) {
	body, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, NewConnectionError(rawURL, err)
	}
	defer func() { _ = body.Close() }() // read-only response body

	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, NewConnectionError(rawURL, err)
	}
	if int64(len(data)) > limit {
		return nil, NewConnectionError(rawURL, fmt.Errorf("response exceeds %d bytes", limit))
	}
	return data, nil
}

// classifyCopyError separates a failing response body (a connection problem)
// from a failing local write.
func classifyCopyError(rawURL, dest string, err error) error {
	if _, ok := err.(*os.PathError); ok { //nolint:errorlint // io.Copy returns write errors unwrapped.
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return NewConnectionError(rawURL, err)
}
