// SPDX-License-Identifier: MPL-2.0

// Package fetch is the download capability the installer is built on.
//
// The installer only depends on the Fetcher interface: "give me a byte stream
// for this URL". Client implements it over net/http. DownloadFile and ReadAll
// are the two ways the installer consumes a stream: to a file on disk, or
// into memory for small JSON documents.
//
// Every failure of a download surfaces as a *ConnectionError so callers can
// classify it with errors.Is(err, ErrConnection).
package fetch
