package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/beatmaps/internal/zipmap"
)

type memoryVersion struct {
	version zipmap.Version
	score   *int16
}

// Memory is an in-process Store. It mirrors the Postgres semantics,
// including insert-if-absent difficulty writes.
type Memory struct {
	mu           sync.RWMutex
	now          func() time.Time
	nextVersion  int64
	nextDiff     int64
	versions     map[int64]*memoryVersion
	byHash       map[string]int64
	difficulties []DifficultyRow
	diffKeys     map[diffKey]bool
}

type diffKey struct {
	versionID int64
	key       zipmap.Key
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:      time.Now,
		versions: make(map[int64]*memoryVersion),
		byHash:   make(map[string]int64),
		diffKeys: make(map[diffKey]bool),
	}
}

// VersionByHash implements zipmap.StatsStore.
func (m *Memory) VersionByHash(_ context.Context, hash string) (zipmap.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byHash[hash]
	if !ok {
		return zipmap.Version{}, fmt.Errorf("%w: %s", ErrVersionNotFound, hash)
	}
	return m.versions[id].version, nil
}

// CreateVersion implements Store.
func (m *Memory) CreateVersion(_ context.Context, mapID int64, hash string) (zipmap.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byHash[hash]; ok {
		return m.versions[id].version, nil
	}

	m.nextVersion++
	v := zipmap.Version{
		ID:       m.nextVersion,
		MapID:    mapID,
		Hash:     hash,
		Uploaded: m.now(),
	}
	m.versions[v.ID] = &memoryVersion{version: v}
	m.byHash[hash] = v.ID
	return v, nil
}

// SaveDifficulty implements zipmap.StatsStore.
func (m *Memory) SaveDifficulty(_ context.Context, v zipmap.Version, s zipmap.ExtractedStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.versions[v.ID]; !ok {
		return fmt.Errorf("insert difficulty %s: %w: id %d", s.Key, ErrVersionNotFound, v.ID)
	}

	k := diffKey{versionID: v.ID, key: s.Key}
	if m.diffKeys[k] {
		return nil
	}
	m.diffKeys[k] = true

	m.nextDiff++
	s.Requirements = truncateList(s.Requirements, maxShortListLen)
	s.Suggestions = truncateList(s.Suggestions, maxShortListLen)
	s.Information = truncateList(s.Information, maxLongListLen)
	s.Warnings = truncateList(s.Warnings, maxLongListLen)
	m.difficulties = append(m.difficulties, DifficultyRow{
		ID:        m.nextDiff,
		VersionID: v.ID,
		CreatedAt: v.Uploaded,
		Stats:     s,
	})
	return nil
}

// SetScore implements Store.
func (m *Memory) SetScore(_ context.Context, versionID int64, score int16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.versions[versionID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrVersionNotFound, versionID)
	}
	v.score = &score
	return nil
}

// MapVersions implements Store.
func (m *Memory) MapVersions(_ context.Context, mapID int64) ([]VersionDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var vs []*memoryVersion
	for _, v := range m.versions {
		if v.version.MapID == mapID {
			vs = append(vs, v)
		}
	}
	sort.Slice(vs, func(i, j int) bool {
		a, b := vs[i].version, vs[j].version
		if !a.Uploaded.Equal(b.Uploaded) {
			return a.Uploaded.After(b.Uploaded)
		}
		return a.ID > b.ID
	})

	// Same fold as the SQL join: one row per difficulty, or one bare row
	// for a version without difficulties.
	b := newVersionBuilder()
	for _, v := range vs {
		var score *int16
		if v.score != nil {
			s := *v.score
			score = &s
		}

		matched := false
		for i := range m.difficulties {
			d := m.difficulties[i]
			if d.VersionID != v.version.ID {
				continue
			}
			matched = true
			b.add(joinedRow{Version: v.version, Score: score, Difficulty: &d})
		}
		if !matched {
			b.add(joinedRow{Version: v.version, Score: score})
		}
	}
	return b.build(), nil
}
