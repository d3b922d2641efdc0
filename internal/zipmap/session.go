package zipmap

// session.go ties the container, the document cache and the lazily
// materialized audio together for the lifetime of one upload.
//
// Lifecycle:
//
//  1. Open indexes the container, locates Info.dat and decodes it.
//  2. Extract decodes every referenced difficulty once, analyzes them,
//     hashes the documents, persists stats and asks the scorer for a score.
//  3. Close deletes any temporary file that was actually created and
//     releases the underlying archive. It runs once, on success or failure.

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default limits for in-memory reads.
const (
	DefaultDocumentSizeLimit  int64 = 50 * 1024 * 1024
	DefaultThumbnailSizeLimit int64 = 10 * 1024 * 1024
	DefaultParallelism              = 4
)

// Options configures a Session. Zero values fall back to the defaults.
type Options struct {
	AudioSizeLimit     int64
	DocumentSizeLimit  int64
	ThumbnailSizeLimit int64

	// TempDir receives materialized audio; empty means os.TempDir().
	TempDir string

	// Scorer is optional; nil scores every map zero.
	Scorer ScoreProvider

	// Parity is optional; nil leaves parity counts at zero.
	Parity ParityChecker

	// Parallelism bounds concurrent difficulty analysis.
	Parallelism int

	// FailOnInvalidDifficulty aborts Extract on the first difficulty that
	// cannot be decoded instead of excluding it.
	FailOnInvalidDifficulty bool

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.AudioSizeLimit <= 0 {
		o.AudioSizeLimit = DefaultAudioSizeLimit
	}
	if o.DocumentSizeLimit <= 0 {
		o.DocumentSizeLimit = DefaultDocumentSizeLimit
	}
	if o.ThumbnailSizeLimit <= 0 {
		o.ThumbnailSizeLimit = DefaultThumbnailSizeLimit
	}
	if o.Parallelism <= 0 {
		o.Parallelism = DefaultParallelism
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Version identifies the stored map version stats are written against.
type Version struct {
	ID       int64
	MapID    int64
	Hash     string
	Uploaded time.Time
}

// StatsStore is the persistence boundary for extracted stats.
type StatsStore interface {
	// VersionByHash resolves an existing version by content hash.
	VersionByHash(ctx context.Context, hash string) (Version, error)
	// SaveDifficulty writes one record; an existing record for the same
	// version, characteristic and difficulty is left untouched.
	SaveDifficulty(ctx context.Context, version Version, stats ExtractedStats) error
}

// Exclusion records a difficulty left out of the result and why.
type Exclusion struct {
	Key
	Path string
	Err  error
}

// Result is the outcome of a successful extraction.
type Result struct {
	Info         *InfoDocument
	Hash         string
	Version      *Version
	Stats        map[Key]ExtractedStats
	Difficulties []ExtractedStats // declaration order
	Excluded     []Exclusion
	Score        int16
	Thumbnail    []byte
	Duration     float64 // longest difficulty, in seconds
	AllowedFiles []string
}

// Session owns one opened archive. It is safe for concurrent use; document
// decoding and audio materialization happen at most once.
type Session struct {
	opts      Options
	container *Container
	closer    io.Closer

	infoPath string
	prefix   string
	infoRaw  []byte
	info     *InfoDocument

	docs  *documentCache
	audio *LazyFile

	closeOnce sync.Once
	closeErr  error
}

// Open indexes the archive in r and decodes its info document.
func Open(r io.ReaderAt, size int64, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	container, err := OpenContainer(r, size)
	if err != nil {
		return nil, err
	}

	infoPath, err := container.findInfo()
	if err != nil {
		return nil, err
	}

	raw, err := readBounded(container, infoPath, opts.DocumentSizeLimit)
	if err != nil {
		return nil, invalidDocument(infoPath, err)
	}
	info, err := decodeInfo(raw)
	if err != nil {
		return nil, invalidDocument(infoPath, err)
	}

	s := &Session{
		opts:      opts,
		container: container,
		infoPath:  infoPath,
		prefix:    path.Dir(infoPath),
		infoRaw:   raw,
		info:      info,
		docs:      newDocumentCache(container, opts.DocumentSizeLimit),
	}
	if s.prefix == "." {
		s.prefix = ""
	}

	audioEntry, _ := s.Resolve(info.SongFilename)
	s.audio = newLazyFile(container, audioEntry, info.SongFilename, opts.AudioSizeLimit, opts.TempDir, "audio-*.ogg")

	return s, nil
}

// OpenFile opens the archive at name. The file is closed by Session.Close,
// or immediately if opening fails.
func OpenFile(name string, opts Options) (*Session, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	s, err := Open(f, fi.Size(), opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// Info returns the decoded info document.
func (s *Session) Info() *InfoDocument {
	return s.info
}

// InfoPath returns the original-case path of Info.dat inside the archive.
func (s *Session) InfoPath() string {
	return s.infoPath
}

// Container returns the archive index.
func (s *Session) Container() *Container {
	return s.container
}

// Resolve maps a reference from the info document to an entry path.
// References are relative to the directory holding Info.dat.
// References that climb out of that directory never resolve.
func (s *Session) Resolve(ref string) (string, bool) {
	if escapesDir(ref) {
		return "", false
	}
	return s.container.Resolve(path.Join(s.prefix, ref))
}

// escapesDir reports whether ref, once cleaned, points above its base.
func escapesDir(ref string) bool {
	ref = path.Clean(strings.TrimLeft(ref, "/"))
	return ref == ".." || strings.HasPrefix(ref, "../")
}

// Difficulty returns the decoded difficulty file referenced by ref. Every
// reference resolving to the same entry shares one decode.
func (s *Session) Difficulty(ref string) (*DifficultyDocument, error) {
	e, err := s.difficulty(ref)
	if err != nil {
		return nil, err
	}
	return e.doc, e.err
}

func (s *Session) difficulty(ref string) (*cachedDocument, error) {
	original, ok := s.Resolve(ref)
	if !ok {
		return nil, invalidDocument(ref, ErrEntryNotFound)
	}
	return s.docs.get(original), nil
}

// DecodeCount returns the number of difficulty entries decoded so far.
func (s *Session) DecodeCount() int64 {
	return s.docs.count()
}

// Audio returns the lazily materialized audio file.
func (s *Session) Audio() *LazyFile {
	return s.audio
}

// Thumbnail reads the cover image into memory.
func (s *Session) Thumbnail() ([]byte, error) {
	if s.info.CoverImageFilename == "" {
		return nil, nil
	}
	original, ok := s.Resolve(s.info.CoverImageFilename)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, s.info.CoverImageFilename)
	}
	return readBounded(s.container, original, s.opts.ThumbnailSizeLimit)
}

// Score runs the configured provider once. Any failure yields zero.
func (s *Session) Score(ctx context.Context) int16 {
	if s.opts.Scorer == nil {
		return 0
	}

	score, err := runScorer(ctx, s.opts.Scorer, s.info, s.audio, s.Difficulty)
	if err != nil {
		s.opts.Logger.Warn("score provider failed, using neutral score", "error", err)
		return 0
	}
	return score
}

// AllowedFiles lists the entries the info document legitimately references.
func (s *Session) AllowedFiles() []string {
	seen := map[string]bool{s.infoPath: true}
	out := []string{s.infoPath}

	add := func(ref string) {
		if ref == "" {
			return
		}
		if original, ok := s.Resolve(ref); ok && !seen[original] {
			seen[original] = true
			out = append(out, original)
		}
	}

	add(s.info.SongFilename)
	add(s.info.CoverImageFilename)
	for _, d := range s.info.declared() {
		add(d.Beatmap.BeatmapFilename)
	}
	return out
}

type analysis struct {
	decl  declared
	entry *cachedDocument
	stats ExtractedStats
	err   error
}

// Extract analyzes every declared difficulty, persists the stats through
// store and scores the map. When version is nil it is resolved by hash.
// A nil store skips persistence.
func (s *Session) Extract(ctx context.Context, store StatsStore, version *Version) (*Result, error) {
	decls := s.info.declared()
	results := make([]analysis, len(decls))
	analyzer := Analyzer{Parity: s.opts.Parity}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for i, d := range decls {
		results[i].decl = d
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, err := s.difficulty(d.Beatmap.BeatmapFilename)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].entry = e
			if e.err != nil {
				results[i].err = e.err
				return nil
			}
			results[i].stats = analyzer.Analyze(s.info, d.Key, d.Beatmap, e.doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Info:         s.info,
		Stats:        make(map[Key]ExtractedStats, len(results)),
		AllowedFiles: s.AllowedFiles(),
	}

	// The hash covers Info.dat then the bytes of each distinct difficulty
	// file in declaration order, whether or not it decoded. Entries that are
	// missing or unreadable contribute nothing.
	hash := sha1.New()
	hash.Write(s.infoRaw)
	hashed := make(map[*cachedDocument]bool)

	for _, r := range results {
		if r.entry != nil && r.entry.raw != nil && !hashed[r.entry] {
			hashed[r.entry] = true
			hash.Write(r.entry.raw)
		}

		if r.err != nil {
			if s.opts.FailOnInvalidDifficulty {
				return nil, fmt.Errorf("difficulty %s: %w", r.decl.Key, r.err)
			}
			s.opts.Logger.Warn("excluding difficulty",
				"characteristic", r.decl.Characteristic,
				"difficulty", r.decl.Difficulty,
				"file", r.decl.Beatmap.BeatmapFilename,
				"error", r.err,
			)
			res.Excluded = append(res.Excluded, Exclusion{
				Key:  r.decl.Key,
				Path: r.decl.Beatmap.BeatmapFilename,
				Err:  r.err,
			})
			continue
		}

		if r.stats.ParityError != "" {
			s.opts.Logger.Warn("parity check failed",
				"characteristic", r.decl.Characteristic,
				"difficulty", r.decl.Difficulty,
				"error", r.stats.ParityError,
			)
		}

		res.Stats[r.decl.Key] = r.stats
		res.Difficulties = append(res.Difficulties, r.stats)
		res.Duration = max(res.Duration, r.stats.Seconds)
	}
	res.Hash = hex.EncodeToString(hash.Sum(nil))

	if len(res.Difficulties) == 0 {
		return nil, fmt.Errorf("%w: all %d declared difficulties excluded", ErrNoValidDifficulties, len(decls))
	}

	if store != nil {
		if version == nil {
			v, err := store.VersionByHash(ctx, res.Hash)
			if err != nil {
				return nil, fmt.Errorf("resolve version %s: %w", res.Hash, err)
			}
			version = &v
		}
		for _, stats := range res.Difficulties {
			if err := store.SaveDifficulty(ctx, *version, stats); err != nil {
				return nil, fmt.Errorf("save difficulty %s: %w", stats.Key, err)
			}
		}
	}
	res.Version = version

	res.Score = s.Score(ctx)

	thumb, err := s.Thumbnail()
	if err != nil {
		s.opts.Logger.Warn("cover image unavailable", "file", s.info.CoverImageFilename, "error", err)
	} else {
		res.Thumbnail = thumb
	}

	return res, nil
}

// Close removes materialized temporary files and releases the archive.
// Only the first call has an effect.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.audio.Remove(); err != nil {
			errs = append(errs, err)
		}
		if s.closer != nil {
			if err := s.closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close archive: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
