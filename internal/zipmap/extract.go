package zipmap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultAudioSizeLimit caps a materialized audio file at 50 MiB.
const DefaultAudioSizeLimit int64 = 50 * 1024 * 1024

// AudioSource hands the scorer a path to the map audio. The file is only
// created when Path is first called.
type AudioSource interface {
	Path() (string, error)
}

// LazyFile copies one container entry into a temporary file the first time
// Path is called. The copy stops with ErrSizeLimitExceeded as soon as the
// entry would exceed the limit, and the partial file is removed.
type LazyFile struct {
	container *Container
	entry     string // original-case path, empty when not in the container
	ref       string
	limit     int64
	dir       string
	pattern   string

	once sync.Once

	mu           sync.Mutex
	path         string
	err          error
	materialized bool
	removed      bool
}

func newLazyFile(c *Container, entry, ref string, limit int64, dir, pattern string) *LazyFile {
	return &LazyFile{
		container: c,
		entry:     entry,
		ref:       ref,
		limit:     limit,
		dir:       dir,
		pattern:   pattern,
	}
}

// Path materializes the entry if needed and returns the temporary file path.
func (f *LazyFile) Path() (string, error) {
	f.once.Do(f.materialize)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removed {
		return "", fmt.Errorf("%s: temporary file already released", f.ref)
	}
	return f.path, f.err
}

// Materialized reports whether a temporary file was actually created.
func (f *LazyFile) Materialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.materialized
}

// Remove deletes the temporary file if one was created. Safe to call more
// than once and on files that were never materialized.
func (f *LazyFile) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.materialized || f.removed {
		return nil
	}
	f.removed = true
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.path, err)
	}
	return nil
}

func (f *LazyFile) materialize() {
	path, err := f.copyOut()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.path, f.err = path, err
	f.materialized = err == nil
}

func (f *LazyFile) copyOut() (string, error) {
	if f.entry == "" {
		return "", fmt.Errorf("%w: %s", ErrEntryNotFound, f.ref)
	}

	// Reject on the header before touching the disk; the header can lie, so
	// the copy below still enforces the limit.
	if declared, ok := f.container.DeclaredSize(f.entry); ok && declared > uint64(f.limit) {
		return "", fmt.Errorf("%w: %s declares %d bytes, limit %d", ErrSizeLimitExceeded, f.entry, declared, f.limit)
	}

	rc, err := f.container.Open(f.entry)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(f.dir, f.pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}

	if _, err := io.CopyN(tmp, rc, f.limit); err != nil && !errors.Is(err, io.EOF) {
		return fail(fmt.Errorf("%w: copy %s: %v", ErrMalformedArchive, f.entry, err))
	}

	// The file holds at most limit bytes; one more readable byte means the
	// entry is too large. This read also reports checksum failures for
	// entries of exactly limit bytes.
	var extra [1]byte
	n, err := io.ReadFull(rc, extra[:])
	if n > 0 {
		return fail(fmt.Errorf("%w: %s is larger than %d bytes", ErrSizeLimitExceeded, f.entry, f.limit))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return fail(fmt.Errorf("%w: read %s: %v", ErrMalformedArchive, f.entry, err))
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmp.Name(), nil
}
