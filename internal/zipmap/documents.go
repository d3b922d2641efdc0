package zipmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// cachedDocument is the memoized outcome of reading and decoding one entry.
// Failures are memoized too so every reference observes the same result.
type cachedDocument struct {
	raw []byte
	doc *DifficultyDocument
	err error
}

// documentCache decodes each difficulty entry at most once, keyed by the
// original-case entry path. Concurrent first requests for the same path are
// collapsed into a single decode.
type documentCache struct {
	container *Container
	limit     int64

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]*cachedDocument

	decodes atomic.Int64
}

func newDocumentCache(c *Container, limit int64) *documentCache {
	return &documentCache{
		container: c,
		limit:     limit,
		entries:   make(map[string]*cachedDocument),
	}
}

func (c *documentCache) lookup(original string) (*cachedDocument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[original]
	return e, ok
}

// get returns the cached decode of original, decoding it on first access.
func (c *documentCache) get(original string) *cachedDocument {
	if e, ok := c.lookup(original); ok {
		return e
	}

	v, _, _ := c.group.Do(original, func() (any, error) {
		// A flight for this key may have finished between lookup and Do.
		if e, ok := c.lookup(original); ok {
			return e, nil
		}

		e := c.load(original)

		c.mu.Lock()
		c.entries[original] = e
		c.mu.Unlock()
		return e, nil
	})
	return v.(*cachedDocument)
}

func (c *documentCache) load(original string) *cachedDocument {
	c.decodes.Add(1)

	raw, err := readBounded(c.container, original, c.limit)
	if err != nil {
		return &cachedDocument{err: invalidDocument(original, err)}
	}

	doc, err := decodeDifficulty(raw)
	if err != nil {
		return &cachedDocument{raw: raw, err: invalidDocument(original, err)}
	}
	return &cachedDocument{raw: raw, doc: doc}
}

// count returns how many distinct entries have been decoded.
func (c *documentCache) count() int64 {
	return c.decodes.Load()
}

// readBounded reads a whole entry into memory, failing with
// ErrSizeLimitExceeded once more than limit bytes have been decompressed.
func readBounded(c *Container, original string, limit int64) ([]byte, error) {
	rc, err := c.Open(original)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedArchive, original, err)
	}
	if n > limit {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrSizeLimitExceeded, original, limit)
	}
	return buf.Bytes(), nil
}

// decodeInfo parses and validates an Info.dat payload.
func decodeInfo(data []byte) (*InfoDocument, error) {
	var info InfoDocument
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	if err := info.validate(); err != nil {
		return nil, err
	}
	return &info, nil
}
