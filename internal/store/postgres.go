package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/beatmaps/internal/zipmap"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Column limits from schema.sql.
const (
	maxLengthValue  = 9999999.999
	maxNPSValue     = 99999.999
	maxShortListLen = 64
	maxLongListLen  = 255
)

// Postgres stores versions and difficulties in PostgreSQL.
type Postgres struct {
	db  DBTX
	now func() time.Time
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates a Postgres store over a pool or transaction.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// EnsureSchema creates the tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// VersionByHash implements zipmap.StatsStore.
func (p *Postgres) VersionByHash(ctx context.Context, hash string) (zipmap.Version, error) {
	var v zipmap.Version
	err := p.db.QueryRow(ctx,
		`SELECT version_id, map_id, hash, created_at FROM versions WHERE hash = $1`,
		hash,
	).Scan(&v.ID, &v.MapID, &v.Hash, &v.Uploaded)
	if errors.Is(err, pgx.ErrNoRows) {
		return zipmap.Version{}, fmt.Errorf("%w: %s", ErrVersionNotFound, hash)
	}
	if err != nil {
		return zipmap.Version{}, fmt.Errorf("query version: %w", err)
	}
	return v, nil
}

// CreateVersion implements Store.
func (p *Postgres) CreateVersion(ctx context.Context, mapID int64, hash string) (zipmap.Version, error) {
	var v zipmap.Version
	// The no-op update makes RETURNING yield the existing row on conflict.
	err := p.db.QueryRow(ctx,
		`INSERT INTO versions (map_id, hash, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (hash) DO UPDATE SET hash = EXCLUDED.hash
		 RETURNING version_id, map_id, hash, created_at`,
		mapID, hash, p.now(),
	).Scan(&v.ID, &v.MapID, &v.Hash, &v.Uploaded)
	if err != nil {
		return zipmap.Version{}, fmt.Errorf("create version: %w", err)
	}
	return v, nil
}

// SaveDifficulty implements zipmap.StatsStore.
func (p *Postgres) SaveDifficulty(ctx context.Context, v zipmap.Version, s zipmap.ExtractedStats) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO difficulty (
			version_id, map_id, characteristic, difficulty, njs, offset_time,
			notes, bombs, obstacles, events, length, seconds, nps,
			chroma, ne, me, p_reset, p_warn, p_error,
			requirements, suggestions, information, warnings, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24
		)
		ON CONFLICT ON CONSTRAINT diff_unique DO NOTHING`,
		v.ID, v.MapID, s.Characteristic, s.Difficulty, s.NoteJumpSpeed, s.NoteJumpOffset,
		s.Notes, s.Bombs, s.Obstacles, s.Events,
		toNumeric(s.Length, maxLengthValue), toNumeric(s.Seconds, maxLengthValue), toNumeric(s.NPS, maxNPSValue),
		s.Chroma, s.NoodleExtensions, s.MappingExtensions,
		s.Parity.Info, s.Parity.Warnings, s.Parity.Errors,
		truncateList(s.Requirements, maxShortListLen), truncateList(s.Suggestions, maxShortListLen),
		truncateList(s.Information, maxLongListLen), truncateList(s.Warnings, maxLongListLen),
		v.Uploaded,
	)
	if err != nil {
		return fmt.Errorf("insert difficulty %s: %w", s.Key, err)
	}
	return nil
}

// SetScore implements Store.
func (p *Postgres) SetScore(ctx context.Context, versionID int64, score int16) error {
	tag, err := p.db.Exec(ctx, `UPDATE versions SET sage_score = $2 WHERE version_id = $1`, versionID, score)
	if err != nil {
		return fmt.Errorf("set score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrVersionNotFound, versionID)
	}
	return nil
}

// MapVersions implements Store.
func (p *Postgres) MapVersions(ctx context.Context, mapID int64) ([]VersionDetail, error) {
	rows, err := p.db.Query(ctx,
		`SELECT v.version_id, v.map_id, v.hash, v.created_at, v.sage_score,
		        d.difficulty_id, d.characteristic, d.difficulty, d.njs, d.offset_time,
		        d.notes, d.bombs, d.obstacles, d.events, d.length, d.seconds, d.nps,
		        d.chroma, d.ne, d.me, d.p_reset, d.p_warn, d.p_error,
		        d.requirements, d.suggestions, d.information, d.warnings, d.created_at
		 FROM versions v
		 LEFT JOIN difficulty d ON d.version_id = v.version_id
		 WHERE v.map_id = $1
		 ORDER BY v.created_at DESC, v.version_id DESC, d.difficulty_id`,
		mapID,
	)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	b := newVersionBuilder()
	for rows.Next() {
		row, err := scanJoined(rows)
		if err != nil {
			return nil, err
		}
		b.add(row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return b.build(), nil
}

func scanJoined(rows pgx.Rows) (joinedRow, error) {
	var (
		row   joinedRow
		score pgtype.Int2

		diffID                    pgtype.Int8
		characteristic, diffName  pgtype.Text
		njs, offset               pgtype.Float4
		notes, bombs, obs, events pgtype.Int4
		length, seconds, nps      pgtype.Numeric
		chroma, ne, me            pgtype.Bool
		pReset, pWarn, pError     pgtype.Int4
		reqs, sugg, info, warn    []string
		createdAt                 pgtype.Timestamptz
	)

	err := rows.Scan(
		&row.Version.ID, &row.Version.MapID, &row.Version.Hash, &row.Version.Uploaded, &score,
		&diffID, &characteristic, &diffName, &njs, &offset,
		&notes, &bombs, &obs, &events, &length, &seconds, &nps,
		&chroma, &ne, &me, &pReset, &pWarn, &pError,
		&reqs, &sugg, &info, &warn, &createdAt,
	)
	if err != nil {
		return joinedRow{}, fmt.Errorf("scan version row: %w", err)
	}

	if score.Valid {
		s := score.Int16
		row.Score = &s
	}
	if !diffID.Valid {
		return row, nil
	}

	row.Difficulty = &DifficultyRow{
		ID:        diffID.Int64,
		VersionID: row.Version.ID,
		CreatedAt: createdAt.Time,
		Stats: zipmap.ExtractedStats{
			Key:               zipmap.Key{Characteristic: characteristic.String, Difficulty: diffName.String},
			NoteJumpSpeed:     float64(njs.Float32),
			NoteJumpOffset:    float64(offset.Float32),
			Notes:             int(notes.Int32),
			Bombs:             int(bombs.Int32),
			Obstacles:         int(obs.Int32),
			Events:            int(events.Int32),
			Length:            fromNumeric(length),
			Seconds:           fromNumeric(seconds),
			NPS:               fromNumeric(nps),
			Chroma:            chroma.Bool,
			NoodleExtensions:  ne.Bool,
			MappingExtensions: me.Bool,
			Requirements:      reqs,
			Suggestions:       sugg,
			Information:       info,
			Warnings:          warn,
			Parity: zipmap.ParityResult{
				Info:     int(pReset.Int32),
				Warnings: int(pWarn.Int32),
				Errors:   int(pError.Int32),
			},
		},
	}
	return row, nil
}

// toNumeric rounds v to three decimals and clamps it to [0, limit].
func toNumeric(v, limit float64) pgtype.Numeric {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	v = math.Min(v, limit)

	var n pgtype.Numeric
	if err := n.Scan(strconv.FormatFloat(v, 'f', 3, 64)); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

func fromNumeric(n pgtype.Numeric) float64 {
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return 0
	}
	return f.Float64
}

// truncateList cuts each entry to limit runes to fit the array column.
func truncateList(list []string, limit int) []string {
	if list == nil {
		return nil
	}
	out := make([]string, len(list))
	for i, s := range list {
		if r := []rune(s); len(r) > limit {
			s = string(r[:limit])
		}
		out[i] = s
	}
	return out
}
