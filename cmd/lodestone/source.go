// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/lodestone/lodestone/internal/fetch"
	"github.com/lodestone/lodestone/internal/issue"
	"github.com/lodestone/lodestone/pkg/manifest"
)

// isRemote reports whether src is an http(s) URL rather than a local path.
func isRemote(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// loadManifest reads and decodes the version manifest at src, a local file
// or an http(s) URL. Errors are actionable.
func loadManifest(ctx context.Context, f fetch.Fetcher, src string) (*manifest.VersionManifest, error) {
	var (
		m   *manifest.VersionManifest
		err error
	)
	resource := src
	if isRemote(src) {
		resource = fetch.RedactURL(src)
		var data []byte
		data, err = fetch.ReadAll(ctx, f, src, manifest.MaxDocumentBytes)
		if err != nil {
			id := issue.DownloadFailedId
			var statusErr *fetch.StatusError
			if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
				id = issue.ManifestNotFoundId
			}
			return nil, issue.NewErrorContext().
				WithOperation("download version manifest").
				WithResource(resource).
				WithIssue(id).
				Wrap(err).
				BuildError()
		}
		m, err = manifest.DecodeVersion(bytes.NewReader(data))
	} else {
		var file *os.File
		file, err = os.Open(filepath.Clean(src))
		if err != nil {
			ec := issue.NewErrorContext().
				WithOperation("read version manifest").
				WithResource(src).
				Wrap(err)
			if errors.Is(err, fs.ErrNotExist) {
				ec.WithIssue(issue.ManifestNotFoundId)
			}
			return nil, ec.BuildError()
		}
		defer file.Close()
		m, err = manifest.DecodeVersion(file)
	}

	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("decode version manifest").
			WithResource(resource).
			WithIssue(issue.ManifestInvalidId).
			Wrap(err).
			BuildError()
	}
	return m, nil
}

// defaultDest returns ./<id> for a manifest id that is a plain directory name.
func defaultDest(id string) (string, bool) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id || filepath.IsAbs(id) {
		return "", false
	}
	return filepath.Join(".", id), true
}
