package zipmap

import (
	"errors"
	"fmt"
	"math"
)

// InfoFileName is the base name of the map info document.
const InfoFileName = "Info.dat"

// InfoDocument is the decoded Info.dat of a map.
type InfoDocument struct {
	Version               string          `json:"_version"`
	SongName              string          `json:"_songName"`
	SongSubName           string          `json:"_songSubName"`
	SongAuthorName        string          `json:"_songAuthorName"`
	LevelAuthorName       string          `json:"_levelAuthorName"`
	BeatsPerMinute        float64         `json:"_beatsPerMinute"`
	SongTimeOffset        float64         `json:"_songTimeOffset"`
	PreviewStartTime      float64         `json:"_previewStartTime"`
	PreviewDuration       float64         `json:"_previewDuration"`
	SongFilename          string          `json:"_songFilename"`
	CoverImageFilename    string          `json:"_coverImageFilename"`
	EnvironmentName       string          `json:"_environmentName"`
	DifficultyBeatmapSets []DifficultySet `json:"_difficultyBeatmapSets"`
	CustomData            map[string]any  `json:"_customData,omitempty"`
}

// DifficultySet groups the difficulties of one characteristic.
type DifficultySet struct {
	Characteristic string              `json:"_beatmapCharacteristicName"`
	Difficulties   []DifficultyBeatmap `json:"_difficultyBeatmaps"`
}

// DifficultyBeatmap is one declared difficulty inside a set.
type DifficultyBeatmap struct {
	Difficulty              string      `json:"_difficulty"`
	DifficultyRank          int         `json:"_difficultyRank"`
	BeatmapFilename         string      `json:"_beatmapFilename"`
	NoteJumpMovementSpeed   float64     `json:"_noteJumpMovementSpeed"`
	NoteJumpStartBeatOffset float64     `json:"_noteJumpStartBeatOffset"`
	CustomData              *CustomData `json:"_customData,omitempty"`
}

// CustomData holds the free-form mod lists attached to a difficulty.
// A nil list means the key was absent.
type CustomData struct {
	Requirements []string `json:"_requirements,omitempty"`
	Suggestions  []string `json:"_suggestions,omitempty"`
	Information  []string `json:"_information,omitempty"`
	Warnings     []string `json:"_warnings,omitempty"`
}

// validate checks the structural shape the extractor relies on.
func (d *InfoDocument) validate() error {
	var errs []error

	if math.IsNaN(d.BeatsPerMinute) || math.IsInf(d.BeatsPerMinute, 0) || d.BeatsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("_beatsPerMinute must be a non-negative number, got %v", d.BeatsPerMinute))
	}
	if d.SongFilename == "" {
		errs = append(errs, errors.New("_songFilename is required"))
	}
	if len(d.DifficultyBeatmapSets) == 0 {
		errs = append(errs, errors.New("_difficultyBeatmapSets must not be empty"))
	}

	seen := make(map[string]bool)
	for i, set := range d.DifficultyBeatmapSets {
		if set.Characteristic == "" {
			errs = append(errs, fmt.Errorf("set %d: _beatmapCharacteristicName is required", i))
		}
		for j, diff := range set.Difficulties {
			if diff.Difficulty == "" {
				errs = append(errs, fmt.Errorf("set %d difficulty %d: _difficulty is required", i, j))
			}
			if diff.BeatmapFilename == "" {
				errs = append(errs, fmt.Errorf("set %d difficulty %d: _beatmapFilename is required", i, j))
			}
			key := set.Characteristic + "/" + diff.Difficulty
			if seen[key] {
				errs = append(errs, fmt.Errorf("duplicate difficulty %s", key))
			}
			seen[key] = true
		}
	}

	return errors.Join(errs...)
}

// Key identifies one declared difficulty.
type Key struct {
	Characteristic string
	Difficulty     string
}

func (k Key) String() string {
	return k.Characteristic + "/" + k.Difficulty
}

// declared is a flattened (set, difficulty) pair in declaration order.
type declared struct {
	Key
	Beatmap DifficultyBeatmap
}

func (d *InfoDocument) declared() []declared {
	var out []declared
	for _, set := range d.DifficultyBeatmapSets {
		for _, diff := range set.Difficulties {
			out = append(out, declared{
				Key:     Key{Characteristic: set.Characteristic, Difficulty: diff.Difficulty},
				Beatmap: diff,
			})
		}
	}
	return out
}
