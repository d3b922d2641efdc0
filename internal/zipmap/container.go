package zipmap

// container.go indexes a zip upload without decompressing anything.
//
// Only the central directory is read when the index is built, so a hostile
// archive with a huge entry count or enormous declared sizes costs header
// parsing only. Entry contents are decompressed on demand by Open.

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Container is a read-only, case-insensitive view over a zip archive.
// It is immutable once built.
type Container struct {
	reader *zip.Reader

	// lower-cased path -> original-case path
	files       map[string]string
	entries     map[string]*zip.File
	directories map[string]struct{}
}

// OpenContainer indexes the zip archive in r.
// Returns ErrMalformedArchive if r is not a zip container, if an entry name
// escapes the archive root, or if two entries fold to the same lower-case path.
func OpenContainer(r io.ReaderAt, size int64) (*Container, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	c := &Container{
		reader:      zr,
		files:       make(map[string]string, len(zr.File)),
		entries:     make(map[string]*zip.File, len(zr.File)),
		directories: make(map[string]struct{}),
	}

	for _, f := range zr.File {
		name := strings.TrimSuffix(f.Name, "/")
		if name == "" || !fs.ValidPath(name) || strings.Contains(name, "\\") {
			return nil, fmt.Errorf("%w: invalid entry name %q", ErrMalformedArchive, f.Name)
		}

		if f.FileInfo().IsDir() {
			c.directories[name] = struct{}{}
			continue
		}

		lower := strings.ToLower(name)
		if existing, ok := c.files[lower]; ok {
			return nil, fmt.Errorf("%w: entries %q and %q differ only by case", ErrMalformedArchive, existing, name)
		}
		c.files[lower] = name
		c.entries[name] = f

		// Directory entries are optional in zip files; record parents implicitly.
		for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
			c.directories[dir] = struct{}{}
		}
	}

	return c, nil
}

// Resolve returns the original-case path of the file entry matching p in any case.
func (c *Container) Resolve(p string) (string, bool) {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	original, ok := c.files[strings.ToLower(p)]
	return original, ok
}

// Files returns all file entry paths in original case, sorted.
func (c *Container) Files() []string {
	out := make([]string, 0, len(c.files))
	for _, name := range c.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Directories returns every directory path, including implied parents, sorted.
func (c *Container) Directories() []string {
	out := make([]string, 0, len(c.directories))
	for dir := range c.directories {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}

// IsDir reports whether p (any case) names a directory.
func (c *Container) IsDir(p string) bool {
	p = strings.TrimSuffix(p, "/")
	if _, ok := c.directories[p]; ok {
		return true
	}
	for dir := range c.directories {
		if strings.EqualFold(dir, p) {
			return true
		}
	}
	return false
}

// Open opens the file entry at the original-case path returned by Resolve.
func (c *Container) Open(original string) (io.ReadCloser, error) {
	f, ok := c.entries[original]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, original)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMalformedArchive, original, err)
	}
	return rc, nil
}

// DeclaredSize returns the uncompressed size recorded in the entry header.
// The header is untrusted: readers still enforce their own limits.
func (c *Container) DeclaredSize(original string) (uint64, bool) {
	f, ok := c.entries[original]
	if !ok {
		return 0, false
	}
	return f.UncompressedSize64, true
}

// findInfo locates the unique Info.dat entry at the shallowest depth.
func (c *Container) findInfo() (string, error) {
	var candidates []string
	best := -1

	for _, name := range c.files {
		if !strings.EqualFold(path.Base(name), InfoFileName) {
			continue
		}
		depth := strings.Count(name, "/")
		switch {
		case best == -1 || depth < best:
			best = depth
			candidates = []string{name}
		case depth == best:
			candidates = append(candidates, name)
		}
	}

	switch len(candidates) {
	case 0:
		return "", ErrMissingInfoDocument
	case 1:
		return candidates[0], nil
	default:
		sort.Strings(candidates)
		return "", fmt.Errorf("%w: %s", ErrAmbiguousInfoDocument, strings.Join(candidates, ", "))
	}
}
