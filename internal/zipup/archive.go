package zipup

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxFileSize caps the decompressed size of a single archive member (100MB,
// the largest blob the GitHub API accepts).
const DefaultMaxFileSize = 100 * 1024 * 1024

// ArchiveOptions controls how ReadArchive decodes members.
type ArchiveOptions struct {
	// MaxFileSize is the largest decompressed member accepted. Zero means DefaultMaxFileSize.
	MaxFileSize int64
	// Ignore drops matching members. Nil keeps every file.
	Ignore *IgnoreMatcher
}

// ReadArchive decompresses a ZIP archive held in memory and returns one entry per
// regular file, in the archive's own order. Directory members are skipped.
// Corrupt input and unnamed members yield a *DecodeError; an archive without
// files yields ErrEmptyArchive.
func ReadArchive(data []byte, opts ArchiveOptions) ([]ArchiveEntry, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var entries []ArchiveEntry
	for _, f := range r.File {
		if f.Name == "" {
			return nil, &DecodeError{Err: ErrEmptyMemberName}
		}
		if isDirectory(f) {
			continue
		}
		if opts.Ignore.Match(f.Name) {
			continue
		}

		content, size, err := readMember(f, maxSize)
		if err != nil {
			return nil, &DecodeError{Path: f.Name, Err: err}
		}
		entries = append(entries, ArchiveEntry{
			Path:    f.Name,
			Content: content,
			Size:    size,
		})
	}

	if len(entries) == 0 {
		return nil, ErrEmptyArchive
	}
	return entries, nil
}

// isDirectory reports whether a member is a directory entry. Some archivers
// only mark directories with a trailing slash, so both signals are checked.
func isDirectory(f *zip.File) bool {
	return f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/")
}

// readMember decompresses one member and returns it base64 encoded.
func readMember(f *zip.File, maxSize int64) (string, int64, error) {
	if f.UncompressedSize64 > uint64(maxSize) {
		return "", 0, fmt.Errorf("file too large: %d bytes exceeds limit of %d bytes", f.UncompressedSize64, maxSize)
	}

	rc, err := f.Open()
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	// Read one byte past the limit to catch members that lie about their size.
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rc, maxSize+1))
	if err != nil {
		return "", 0, err
	}
	if n > maxSize {
		return "", 0, fmt.Errorf("decompressed size exceeds limit of %d bytes", maxSize)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), n, nil
}
