package zipmap

import (
	"encoding/json"
	"errors"
)

// Note types used by the v2 format.
const (
	NoteTypeRed  = 0
	NoteTypeBlue = 1
	NoteTypeBomb = 3
)

// Cut directions.
const (
	CutUp        = 0
	CutDown      = 1
	CutLeft      = 2
	CutRight     = 3
	CutUpLeft    = 4
	CutUpRight   = 5
	CutDownLeft  = 6
	CutDownRight = 7
	CutAny       = 8
)

// Note is a single note or bomb. Time is in beats.
type Note struct {
	Time         float64 `json:"_time"`
	LineIndex    int     `json:"_lineIndex"`
	LineLayer    int     `json:"_lineLayer"`
	Type         int     `json:"_type"`
	CutDirection int     `json:"_cutDirection"`
}

// IsBomb reports whether the note is a bomb.
func (n Note) IsBomb() bool {
	return n.Type == NoteTypeBomb
}

// Obstacle is a wall.
type Obstacle struct {
	Time      float64 `json:"_time"`
	LineIndex int     `json:"_lineIndex"`
	Type      int     `json:"_type"`
	Duration  float64 `json:"_duration"`
	Width     int     `json:"_width"`
}

// Event is a lighting or rotation event.
type Event struct {
	Time  float64 `json:"_time"`
	Type  int     `json:"_type"`
	Value int     `json:"_value"`
}

// DifficultyDocument is a decoded difficulty file. Both the v2 (underscore
// prefixed) and v3 layouts decode into the same fields.
type DifficultyDocument struct {
	Version    string
	Notes      []Note
	Obstacles  []Obstacle
	Events     []Event
	CustomData *CustomData
}

type v2Difficulty struct {
	Version    string      `json:"_version"`
	Notes      *[]Note     `json:"_notes"`
	Obstacles  []Obstacle  `json:"_obstacles"`
	Events     []Event     `json:"_events"`
	CustomData *CustomData `json:"_customData"`
}

type v3Difficulty struct {
	Version    string         `json:"version"`
	ColorNotes *[]v3ColorNote `json:"colorNotes"`
	BombNotes  []v3Bomb       `json:"bombNotes"`
	Obstacles  []v3Obstacle   `json:"obstacles"`
	Events     []v3Event      `json:"basicBeatmapEvents"`
	CustomData *struct {
		Requirements []string `json:"requirements"`
		Suggestions  []string `json:"suggestions"`
		Information  []string `json:"information"`
		Warnings     []string `json:"warnings"`
	} `json:"customData"`
}

type v3ColorNote struct {
	Beat      float64 `json:"b"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Color     int     `json:"c"`
	Direction int     `json:"d"`
}

type v3Bomb struct {
	Beat float64 `json:"b"`
	X    int     `json:"x"`
	Y    int     `json:"y"`
}

type v3Obstacle struct {
	Beat     float64 `json:"b"`
	X        int     `json:"x"`
	Duration float64 `json:"d"`
	Width    int     `json:"w"`
}

type v3Event struct {
	Beat  float64 `json:"b"`
	Type  int     `json:"et"`
	Value int     `json:"i"`
}

var errNoNotes = errors.New("document has neither _notes nor colorNotes")

// decodeDifficulty parses a v2 or v3 difficulty file.
func decodeDifficulty(data []byte) (*DifficultyDocument, error) {
	var shape struct {
		V2 *string `json:"_version"`
		V3 *string `json:"version"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, err
	}

	if shape.V3 != nil && shape.V2 == nil {
		return decodeV3(data)
	}
	return decodeV2(data)
}

func decodeV2(data []byte) (*DifficultyDocument, error) {
	var raw v2Difficulty
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.Notes == nil {
		return nil, errNoNotes
	}

	doc := &DifficultyDocument{
		Version:    raw.Version,
		Notes:      *raw.Notes,
		Obstacles:  raw.Obstacles,
		Events:     raw.Events,
		CustomData: raw.CustomData,
	}
	return doc, nil
}

func decodeV3(data []byte) (*DifficultyDocument, error) {
	var raw v3Difficulty
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.ColorNotes == nil {
		return nil, errNoNotes
	}

	doc := &DifficultyDocument{
		Version:   raw.Version,
		Notes:     make([]Note, 0, len(*raw.ColorNotes)+len(raw.BombNotes)),
		Obstacles: make([]Obstacle, 0, len(raw.Obstacles)),
		Events:    make([]Event, 0, len(raw.Events)),
	}
	for _, n := range *raw.ColorNotes {
		doc.Notes = append(doc.Notes, Note{
			Time:         n.Beat,
			LineIndex:    n.X,
			LineLayer:    n.Y,
			Type:         n.Color,
			CutDirection: n.Direction,
		})
	}
	for _, b := range raw.BombNotes {
		doc.Notes = append(doc.Notes, Note{
			Time:         b.Beat,
			LineIndex:    b.X,
			LineLayer:    b.Y,
			Type:         NoteTypeBomb,
			CutDirection: CutAny,
		})
	}
	for _, o := range raw.Obstacles {
		doc.Obstacles = append(doc.Obstacles, Obstacle{
			Time:      o.Beat,
			LineIndex: o.X,
			Duration:  o.Duration,
			Width:     o.Width,
		})
	}
	for _, e := range raw.Events {
		doc.Events = append(doc.Events, Event{Time: e.Beat, Type: e.Type, Value: e.Value})
	}
	if cd := raw.CustomData; cd != nil {
		doc.CustomData = &CustomData{
			Requirements: cd.Requirements,
			Suggestions:  cd.Suggestions,
			Information:  cd.Information,
			Warnings:     cd.Warnings,
		}
	}
	return doc, nil
}
