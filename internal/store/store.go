// Package store persists extracted difficulty stats.
//
// Two implementations share one contract: Postgres (pgx) for production and
// Memory for tests and local runs. Both satisfy zipmap.StatsStore plus the
// version bookkeeping the upload service needs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/beatmaps/internal/zipmap"
)

// ErrVersionNotFound is returned when no version has the requested hash.
var ErrVersionNotFound = errors.New("version not found")

// Store is the full persistence contract used by the upload service.
type Store interface {
	zipmap.StatsStore

	// CreateVersion inserts a version for mapID, or returns the existing one
	// with the same hash.
	CreateVersion(ctx context.Context, mapID int64, hash string) (zipmap.Version, error)

	// SetScore records the provider score of a version.
	SetScore(ctx context.Context, versionID int64, score int16) error

	// MapVersions returns every version of a map with its difficulties,
	// newest first.
	MapVersions(ctx context.Context, mapID int64) ([]VersionDetail, error)
}

// DifficultyRow is a stored difficulty record.
type DifficultyRow struct {
	ID        int64
	VersionID int64
	CreatedAt time.Time
	Stats     zipmap.ExtractedStats
}

// VersionDetail is a version together with its stored difficulties.
type VersionDetail struct {
	zipmap.Version
	Score        *int16
	Difficulties []DifficultyRow
}

// joinedRow is one row of a versions LEFT JOIN difficulty query.
// Difficulty is nil for versions without stored difficulties.
type joinedRow struct {
	Version    zipmap.Version
	Score      *int16
	Difficulty *DifficultyRow
}

// versionBuilder folds joined rows into VersionDetail values. Rows are
// merged into their parent by version id, so row order only affects the
// order of the output, never which parent a difficulty lands in.
type versionBuilder struct {
	byID  map[int64]*VersionDetail
	order []int64
	seen  map[int64]bool // difficulty ids already merged
}

func newVersionBuilder() *versionBuilder {
	return &versionBuilder{
		byID: make(map[int64]*VersionDetail),
		seen: make(map[int64]bool),
	}
}

func (b *versionBuilder) add(row joinedRow) {
	v, ok := b.byID[row.Version.ID]
	if !ok {
		v = &VersionDetail{Version: row.Version, Score: row.Score}
		b.byID[row.Version.ID] = v
		b.order = append(b.order, row.Version.ID)
	}

	if d := row.Difficulty; d != nil && !b.seen[d.ID] {
		b.seen[d.ID] = true
		v.Difficulties = append(v.Difficulties, *d)
	}
}

func (b *versionBuilder) build() []VersionDetail {
	out := make([]VersionDetail, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.byID[id])
	}
	return out
}
