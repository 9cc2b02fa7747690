// Package source loads upload archives from the local filesystem, standard
// input or S3.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// S3Scheme prefixes archive locations held in S3: s3://bucket/key.
const S3Scheme = "s3://"

// Stdin is the location that reads the archive from standard input.
const Stdin = "-"

var (
	// ErrArchiveTooLarge is returned when an archive exceeds the loader's size limit.
	ErrArchiveTooLarge = errors.New("archive exceeds maximum size")
	// ErrNotZip is returned when the loaded bytes do not start like a ZIP archive.
	ErrNotZip = errors.New("not a ZIP archive")
)

var (
	localFileHeader  = []byte("PK\x03\x04")
	endOfCentralDir  = []byte("PK\x05\x06")
	spannedSignature = []byte("PK\x07\x08")
)

// LooksLikeZip reports whether data starts with a ZIP signature. An archive
// with no members starts with the end of central directory record.
func LooksLikeZip(data []byte) bool {
	return bytes.HasPrefix(data, localFileHeader) ||
		bytes.HasPrefix(data, endOfCentralDir) ||
		bytes.HasPrefix(data, spannedSignature)
}

// ObjectStore reads objects from a bucket store.
type ObjectStore interface {
	// Size returns the object's length in bytes.
	Size(ctx context.Context, bucket, key string) (int64, error)

	// Fetch downloads the object, which is size bytes long.
	Fetch(ctx context.Context, bucket, key string, size int64) ([]byte, error)
}

// StoreOpener creates the ObjectStore on first use, so runs that never touch
// S3 never load AWS configuration.
type StoreOpener func(ctx context.Context) (ObjectStore, error)

// Loader reads archive bytes from a location string.
type Loader struct {
	maxSize int64
	stdin   io.Reader
	open    StoreOpener

	mu    sync.Mutex
	store ObjectStore
}

// NewLoader creates a Loader that rejects archives larger than maxSize bytes.
// open may be nil, in which case s3:// locations fail.
func NewLoader(maxSize int64, open StoreOpener) *Loader {
	return &Loader{maxSize: maxSize, stdin: os.Stdin, open: open}
}

// Load returns the archive at location: a file path, "-" for standard input,
// or s3://bucket/key.
func (l *Loader) Load(ctx context.Context, location string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case location == "":
		return nil, errors.New("archive location is empty")
	case location == Stdin:
		data, err = l.readLimited(l.stdin, "standard input")
	case strings.HasPrefix(location, S3Scheme):
		data, err = l.loadS3(ctx, location)
	default:
		data, err = l.loadFile(location)
	}
	if err != nil {
		return nil, err
	}
	if !LooksLikeZip(data) {
		return nil, fmt.Errorf("%s: %w", location, ErrNotZip)
	}
	return data, nil
}

func (l *Loader) loadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("reading archive: %s is a directory", path)
	}
	if err := l.checkSize(path, info.Size()); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	defer f.Close()
	// The file may have grown since the stat.
	return l.readLimited(f, path)
}

func (l *Loader) loadS3(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}
	store, err := l.objectStore(ctx)
	if err != nil {
		return nil, err
	}

	size, err := store.Size(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", location, err)
	}
	if err := l.checkSize(location, size); err != nil {
		return nil, err
	}

	data, err := store.Fetch(ctx, bucket, key, size)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", location, err)
	}
	if err := l.checkSize(location, int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

func (l *Loader) objectStore(ctx context.Context) (ObjectStore, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.store, nil
	}
	if l.open == nil {
		return nil, errors.New("s3 locations are not supported by this loader")
	}
	store, err := l.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening s3: %w", err)
	}
	l.store = store
	return store, nil
}

func (l *Loader) readLimited(r io.Reader, name string) ([]byte, error) {
	if l.maxSize <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := l.checkSize(name, int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

func (l *Loader) checkSize(name string, size int64) error {
	if l.maxSize > 0 && size > l.maxSize {
		return fmt.Errorf("%s is %d bytes, limit is %d: %w", name, size, l.maxSize, ErrArchiveTooLarge)
	}
	return nil
}

// ParseS3Location splits s3://bucket/key into its bucket and key.
func ParseS3Location(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, S3Scheme)
	if !ok {
		return "", "", fmt.Errorf("invalid s3 location %q: missing %s prefix", location, S3Scheme)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 location %q: want s3://bucket/key", location)
	}
	return bucket, key, nil
}
