package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/beatmaps/internal/config"
	"github.com/JonMunkholm/beatmaps/internal/logging"
	"github.com/JonMunkholm/beatmaps/internal/store"
	"github.com/JonMunkholm/beatmaps/internal/verify"
	"github.com/JonMunkholm/beatmaps/internal/zipmap"
)

var (
	// ErrDuplicateArchive is returned when identical content was already
	// uploaded for a different map.
	ErrDuplicateArchive = errors.New("archive already uploaded for another map")

	// ErrNoFile is returned by transports when a request carries no archive.
	ErrNoFile = errors.New("no file provided")

	// ErrUploadTooLarge is returned by transports when the archive exceeds
	// UPLOAD_MAX_FILE_SIZE.
	ErrUploadTooLarge = errors.New("archive exceeds upload size limit")
)

// Service orchestrates archive extraction, persistence and scoring.
type Service struct {
	cfg      *config.Config
	store    store.Store
	limiter  *UploadLimiter
	scorer   zipmap.ScoreProvider
	parity   zipmap.ParityChecker
	verifier verify.Verifier
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithScorer sets the score provider. Nil scores every map zero.
func WithScorer(p zipmap.ScoreProvider) Option {
	return func(s *Service) { s.scorer = p }
}

// WithParity sets the parity checker run on every difficulty.
func WithParity(p zipmap.ParityChecker) Option {
	return func(s *Service) { s.parity = p }
}

// WithVerifier sets the user verification provider.
func WithVerifier(v verify.Verifier) Option {
	return func(s *Service) { s.verifier = v }
}

// NewService creates a Service. Providers are resolved once here; by default
// the process-wide registrations are used.
func NewService(st store.Store, cfg *config.Config, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("core: nil store")
	}
	if cfg == nil {
		return nil, errors.New("core: nil config")
	}

	s := &Service{
		cfg:      cfg,
		store:    st,
		limiter:  NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		scorer:   zipmap.RegisteredScorer(),
		verifier: verify.Registered(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UploadLimiterStatus returns the current limiter state.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until in-flight extractions finish or ctx ends.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ProcessArchive extracts, persists and scores the archive in r for mapID.
func (s *Service) ProcessArchive(ctx context.Context, mapID int64, r io.ReaderAt, size int64) (*UploadResult, error) {
	var out *UploadResult
	err := s.limiter.Do(ctx, func() error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.Upload.Timeout)
		defer cancel()

		uploadID := uuid.NewString()
		log := s.logger(ctx, uploadID, mapID)

		sess, err := zipmap.Open(r, size, s.sessionOptions(log))
		if err != nil {
			log.Warn("archive rejected", "error", err)
			return err
		}
		defer func() {
			if err := sess.Close(); err != nil {
				log.Warn("session cleanup failed", "error", err)
			}
		}()

		out, err = s.process(ctx, log, uploadID, mapID, sess)
		return err
	})
	return out, err
}

// ProcessFile is ProcessArchive for an archive on disk.
func (s *Service) ProcessFile(ctx context.Context, mapID int64, name string) (*UploadResult, error) {
	var out *UploadResult
	err := s.limiter.Do(ctx, func() error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.Upload.Timeout)
		defer cancel()

		uploadID := uuid.NewString()
		log := s.logger(ctx, uploadID, mapID).With("file", name)

		sess, err := zipmap.OpenFile(name, s.sessionOptions(log))
		if err != nil {
			log.Warn("archive rejected", "error", err)
			return err
		}
		defer func() {
			if err := sess.Close(); err != nil {
				log.Warn("session cleanup failed", "error", err)
			}
		}()

		out, err = s.process(ctx, log, uploadID, mapID, sess)
		return err
	})
	return out, err
}

func (s *Service) process(ctx context.Context, log *slog.Logger, uploadID string, mapID int64, sess *zipmap.Session) (*UploadResult, error) {
	start := s.now()

	res, err := sess.Extract(ctx, versionResolver{store: s.store, mapID: mapID}, nil)
	if err != nil {
		log.Warn("extraction failed", "error", err)
		return nil, err
	}
	log = log.With("hash", res.Hash)

	if err := s.store.SetScore(ctx, res.Version.ID, res.Score); err != nil {
		return nil, fmt.Errorf("save score: %w", err)
	}

	uploader := UploaderFromContext(ctx)
	verified := verify.Validate(ctx, s.verifier, authorCandidates(res.Info), uploader.UserHash)

	log.Info("archive processed",
		"version_id", res.Version.ID,
		"difficulties", len(res.Difficulties),
		"excluded", len(res.Excluded),
		"score", res.Score,
		"verified", verified != "",
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)

	return newUploadResult(uploadID, res, verified), nil
}

func (s *Service) logger(ctx context.Context, uploadID string, mapID int64) *slog.Logger {
	u := UploaderFromContext(ctx)
	return logging.WithFields(ctx,
		"upload_id", uploadID,
		"map_id", mapID,
		"ip", u.IP,
	)
}

func (s *Service) sessionOptions(log *slog.Logger) zipmap.Options {
	ext := s.cfg.Extract
	return zipmap.Options{
		AudioSizeLimit:          ext.AudioSizeLimit,
		DocumentSizeLimit:       ext.DocumentSizeLimit,
		ThumbnailSizeLimit:      ext.ThumbnailSizeLimit,
		TempDir:                 ext.TempDir,
		Parallelism:             ext.Parallelism,
		FailOnInvalidDifficulty: ext.FailOnInvalid(),
		Scorer:                  s.scorer,
		Parity:                  s.parity,
		Logger:                  log,
	}
}

// Version returns a stored version with its difficulties.
func (s *Service) Version(ctx context.Context, hash string) (*store.VersionDetail, error) {
	v, err := s.store.VersionByHash(ctx, strings.ToLower(hash))
	if err != nil {
		return nil, err
	}

	versions, err := s.store.MapVersions(ctx, v.MapID)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		if versions[i].ID == v.ID {
			return &versions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrVersionNotFound, hash)
}

// MapVersions returns every stored version of a map, newest first.
func (s *Service) MapVersions(ctx context.Context, mapID int64) ([]store.VersionDetail, error) {
	return s.store.MapVersions(ctx, mapID)
}

// versionResolver adapts a Store to zipmap.StatsStore, creating the version
// for mapID on first sight of a hash.
type versionResolver struct {
	store store.Store
	mapID int64
}

func (v versionResolver) VersionByHash(ctx context.Context, hash string) (zipmap.Version, error) {
	ver, err := v.store.CreateVersion(ctx, v.mapID, hash)
	if err != nil {
		return zipmap.Version{}, err
	}
	if ver.MapID != v.mapID {
		return zipmap.Version{}, fmt.Errorf("%w: map %d", ErrDuplicateArchive, ver.MapID)
	}
	return ver, nil
}

func (v versionResolver) SaveDifficulty(ctx context.Context, version zipmap.Version, stats zipmap.ExtractedStats) error {
	return v.store.SaveDifficulty(ctx, version, stats)
}

// authorCandidates splits the level author field into names a verifier
// can match against.
func authorCandidates(info *zipmap.InfoDocument) []string {
	fields := strings.FieldsFunc(info.LevelAuthorName, func(r rune) bool {
		return r == ',' || r == '&'
	})

	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
