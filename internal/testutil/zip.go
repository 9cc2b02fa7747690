package testutil

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

// ZipFile is one member of an archive built by BuildZip. A Name ending in
// "/" produces a directory entry and Body is ignored.
type ZipFile struct {
	Name string
	Body string
}

// BuildZip returns the bytes of a ZIP archive holding files in order.
func BuildZip(t testing.TB, files []ZipFile) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		if strings.HasSuffix(f.Name, "/") {
			if _, err := w.Create(f.Name); err != nil {
				t.Fatalf("adding directory %s: %v", f.Name, err)
			}
			continue
		}
		fw, err := w.Create(f.Name)
		if err != nil {
			t.Fatalf("adding %s: %v", f.Name, err)
		}
		if _, err := fw.Write([]byte(f.Body)); err != nil {
			t.Fatalf("writing %s: %v", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}
