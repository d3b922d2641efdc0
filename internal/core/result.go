package core

import (
	"github.com/JonMunkholm/beatmaps/internal/zipmap"
)

// UploadResult is the outcome of one processed archive.
type UploadResult struct {
	UploadID     string             `json:"upload_id"`
	MapID        int64              `json:"map_id"`
	VersionID    int64              `json:"version_id"`
	Hash         string             `json:"hash"`
	SongName     string             `json:"song_name"`
	LevelAuthor  string             `json:"level_author"`
	Score        int16              `json:"score"`
	Duration     float64            `json:"duration"`
	VerifiedUser string             `json:"verified_user,omitempty"`
	HasThumbnail bool               `json:"has_thumbnail"`
	Difficulties []DifficultySummary `json:"difficulties"`
	Excluded     []ExcludedSummary  `json:"excluded,omitempty"`
	AllowedFiles []string           `json:"allowed_files"`
}

// DifficultySummary is the serialized form of one analyzed difficulty.
type DifficultySummary struct {
	Characteristic    string   `json:"characteristic"`
	Difficulty        string   `json:"difficulty"`
	NoteJumpSpeed     float64  `json:"njs"`
	NoteJumpOffset    float64  `json:"offset"`
	Notes             int      `json:"notes"`
	Bombs             int      `json:"bombs"`
	Obstacles         int      `json:"obstacles"`
	Events            int      `json:"events"`
	Length            float64  `json:"length"`
	Seconds           float64  `json:"seconds"`
	NPS               float64  `json:"nps"`
	Chroma            bool     `json:"chroma"`
	NoodleExtensions  bool     `json:"ne"`
	MappingExtensions bool     `json:"me"`
	Requirements      []string `json:"requirements,omitempty"`
	Suggestions       []string `json:"suggestions,omitempty"`
	Information       []string `json:"information,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
	ParityErrors      int      `json:"parity_errors"`
	ParityWarnings    int      `json:"parity_warnings"`
	ParityResets      int      `json:"parity_resets"`
	ParityError       string   `json:"parity_error,omitempty"`
}

// ExcludedSummary names a difficulty that failed to decode.
type ExcludedSummary struct {
	Characteristic string `json:"characteristic"`
	Difficulty     string `json:"difficulty"`
	File           string `json:"file"`
	Reason         string `json:"reason"`
}

// NewDifficultySummary converts extracted stats to their serialized form.
func NewDifficultySummary(s zipmap.ExtractedStats) DifficultySummary {
	return DifficultySummary{
		Characteristic:    s.Characteristic,
		Difficulty:        s.Difficulty,
		NoteJumpSpeed:     s.NoteJumpSpeed,
		NoteJumpOffset:    s.NoteJumpOffset,
		Notes:             s.Notes,
		Bombs:             s.Bombs,
		Obstacles:         s.Obstacles,
		Events:            s.Events,
		Length:            s.Length,
		Seconds:           s.Seconds,
		NPS:               s.NPS,
		Chroma:            s.Chroma,
		NoodleExtensions:  s.NoodleExtensions,
		MappingExtensions: s.MappingExtensions,
		Requirements:      s.Requirements,
		Suggestions:       s.Suggestions,
		Information:       s.Information,
		Warnings:          s.Warnings,
		ParityErrors:      s.Parity.Errors,
		ParityWarnings:    s.Parity.Warnings,
		ParityResets:      s.Parity.Info,
		ParityError:       s.ParityError,
	}
}

func newUploadResult(uploadID string, res *zipmap.Result, verified string) *UploadResult {
	out := &UploadResult{
		UploadID:     uploadID,
		MapID:        res.Version.MapID,
		VersionID:    res.Version.ID,
		Hash:         res.Hash,
		SongName:     res.Info.SongName,
		LevelAuthor:  res.Info.LevelAuthorName,
		Score:        res.Score,
		Duration:     res.Duration,
		VerifiedUser: verified,
		HasThumbnail: len(res.Thumbnail) > 0,
		Difficulties: make([]DifficultySummary, 0, len(res.Difficulties)),
		AllowedFiles: res.AllowedFiles,
	}

	for _, d := range res.Difficulties {
		out.Difficulties = append(out.Difficulties, NewDifficultySummary(d))
	}
	for _, ex := range res.Excluded {
		out.Excluded = append(out.Excluded, ExcludedSummary{
			Characteristic: ex.Characteristic,
			Difficulty:     ex.Difficulty,
			File:           ex.Path,
			Reason:         ex.Err.Error(),
		})
	}
	return out
}
