package zipmap

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// MaxNPS is the ceiling applied to notes-per-second. It matches the widest
// value the difficulty table's nps column can hold.
const MaxNPS = 99999.0

// Mod names matched against requirement and suggestion lists.
const (
	ModChroma            = "Chroma"
	ModNoodleExtensions  = "Noodle Extensions"
	ModMappingExtensions = "Mapping Extensions"
)

// ParityResult counts issues found by a parity pass.
type ParityResult struct {
	Info     int
	Warnings int
	Errors   int
}

// ParityChecker inspects swing consistency of a difficulty.
type ParityChecker interface {
	Check(notes []Note, obstacles []Obstacle) (ParityResult, error)
}

// ExtractedStats is the derived, immutable record for one difficulty.
type ExtractedStats struct {
	Key

	NoteJumpSpeed  float64
	NoteJumpOffset float64

	Notes     int
	Bombs     int
	Obstacles int
	Events    int

	Length  float64 // beats between first and last note
	Seconds float64
	NPS     float64

	Chroma            bool
	NoodleExtensions  bool
	MappingExtensions bool

	Requirements []string
	Suggestions  []string
	Information  []string
	Warnings     []string

	Parity ParityResult
	// ParityError is set when the parity pass failed; counts are then zero.
	ParityError string
}

// Analyzer derives ExtractedStats from decoded documents. It has no side effects.
type Analyzer struct {
	Parity ParityChecker
}

// Analyze computes the statistics of one declared difficulty.
func (a Analyzer) Analyze(info *InfoDocument, key Key, beatmap DifficultyBeatmap, doc *DifficultyDocument) ExtractedStats {
	stats := ExtractedStats{
		Key:            key,
		NoteJumpSpeed:  beatmap.NoteJumpMovementSpeed,
		NoteJumpOffset: beatmap.NoteJumpStartBeatOffset,
		Obstacles:      len(doc.Obstacles),
		Events:         len(doc.Events),
	}

	sorted := make([]Note, len(doc.Notes))
	copy(sorted, doc.Notes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	for _, n := range sorted {
		if n.IsBomb() {
			stats.Bombs++
		} else {
			stats.Notes++
		}
	}

	if len(sorted) > 0 {
		stats.Length = sorted[len(sorted)-1].Time - sorted[0].Time
	}

	bpm := info.BeatsPerMinute
	stats.Seconds = seconds(bpm, stats.Length)
	stats.NPS = notesPerSecond(stats.Notes, stats.Length, bpm)

	stats.Requirements = mergeLists(beatmap.CustomData, doc.CustomData, func(c *CustomData) []string { return c.Requirements })
	stats.Suggestions = mergeLists(beatmap.CustomData, doc.CustomData, func(c *CustomData) []string { return c.Suggestions })
	stats.Information = mergeLists(beatmap.CustomData, doc.CustomData, func(c *CustomData) []string { return c.Information })
	stats.Warnings = mergeLists(beatmap.CustomData, doc.CustomData, func(c *CustomData) []string { return c.Warnings })

	// (requirements has Chroma) OR (suggestions has Chroma); absent lists are false.
	stats.Chroma = slices.Contains(stats.Requirements, ModChroma) || slices.Contains(stats.Suggestions, ModChroma)
	stats.NoodleExtensions = slices.Contains(stats.Requirements, ModNoodleExtensions)
	stats.MappingExtensions = slices.Contains(stats.Requirements, ModMappingExtensions)

	if a.Parity != nil {
		result, err := a.checkParity(sorted, doc.Obstacles)
		if err != nil {
			stats.ParityError = err.Error()
		} else {
			stats.Parity = result
		}
	}

	return stats
}

func (a Analyzer) checkParity(notes []Note, obstacles []Obstacle) (result ParityResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = ParityResult{}, fmt.Errorf("parity check panicked: %v", r)
		}
	}()
	return a.Parity.Check(notes, obstacles)
}

// seconds converts a span in beats to seconds. A zero BPM yields zero.
func seconds(bpm, beats float64) float64 {
	if bpm == 0 {
		return 0
	}
	return (60 / bpm) * beats
}

// notesPerSecond returns the clamped note density. A zero span yields zero.
func notesPerSecond(notes int, beats, bpm float64) float64 {
	if beats == 0 {
		return 0
	}
	nps := (float64(notes) / beats) * (bpm / 60)
	if math.IsNaN(nps) || nps < 0 {
		return 0
	}
	return math.Min(nps, MaxNPS)
}

// mergeLists returns the info entry's list followed by entries of the
// document's list not already present. Nil when both are absent.
func mergeLists(fromInfo, fromDoc *CustomData, pick func(*CustomData) []string) []string {
	var out []string
	for _, src := range []*CustomData{fromInfo, fromDoc} {
		if src == nil {
			continue
		}
		for _, v := range pick(src) {
			if !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
	}
	return out
}
