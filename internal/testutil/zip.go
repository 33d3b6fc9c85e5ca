// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ZipEntry describes one archive member. Names ending in "/" are
// directories and ignore Body.
type ZipEntry struct {
	Name string
	Body string
	Mode os.FileMode
}

// BuildZip returns the bytes of a zip archive containing entries, in order.
func BuildZip(t testing.TB, entries ...ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		mode := e.Mode
		if mode == 0 {
			mode = 0o644
		}
		if strings.HasSuffix(e.Name, "/") {
			mode = os.ModeDir | 0o755
		}
		hdr.SetMode(mode)

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", e.Name, err)
		}
		if strings.HasSuffix(e.Name, "/") {
			continue
		}
		if _, err := w.Write([]byte(e.Body)); err != nil {
			t.Fatalf("writing zip entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes an archive built from entries to path.
func WriteZip(t testing.TB, path string, entries ...ZipEntry) {
	t.Helper()

	if err := os.WriteFile(path, BuildZip(t, entries...), 0o644); err != nil {
		t.Fatalf("writing zip %s: %v", path, err)
	}
}

// NativeBundle returns a zip shaped like a typical natives jar: a shared
// library plus signing metadata under META-INF.
func NativeBundle(t testing.TB, libName, body string) []byte {
	t.Helper()

	return BuildZip(t,
		ZipEntry{Name: "META-INF/"},
		ZipEntry{Name: "META-INF/MANIFEST.MF", Body: "Manifest-Version: 1.0\n"},
		ZipEntry{Name: "META-INF/MOJANGCS.SF", Body: "Signature-Version: 1.0\n"},
		ZipEntry{Name: libName, Body: body, Mode: 0o755},
	)
}
