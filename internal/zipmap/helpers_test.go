package zipmap

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

// archive builds an in-memory zip. Entries keep insertion order.
type archive struct {
	names []string
	data  map[string][]byte
}

func newArchive() *archive {
	return &archive{data: make(map[string][]byte)}
}

func (a *archive) add(name string, data []byte) *archive {
	if _, ok := a.data[name]; !ok {
		a.names = append(a.names, name)
	}
	a.data[name] = data
	return a
}

func (a *archive) addJSON(t *testing.T, name string, v any) *archive {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	return a.add(name, data)
}

func (a *archive) bytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range a.names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write(a.data[name]); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func (a *archive) open(t *testing.T, opts Options) (*Session, error) {
	t.Helper()
	data := a.bytes(t)
	return Open(bytes.NewReader(data), int64(len(data)), opts)
}

func (a *archive) mustOpen(t *testing.T, opts Options) *Session {
	t.Helper()
	s, err := a.open(t, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// diffEntry declares one difficulty in an info document.
type diffEntry struct {
	characteristic string
	difficulty     string
	file           string
	customData     map[string]any
}

func infoDoc(bpm float64, song string, diffs ...diffEntry) map[string]any {
	var sets []map[string]any
	index := map[string]int{}
	for _, d := range diffs {
		i, ok := index[d.characteristic]
		if !ok {
			i = len(sets)
			index[d.characteristic] = i
			sets = append(sets, map[string]any{
				"_beatmapCharacteristicName": d.characteristic,
				"_difficultyBeatmaps":        []map[string]any{},
			})
		}
		entry := map[string]any{
			"_difficulty":              d.difficulty,
			"_difficultyRank":          1,
			"_beatmapFilename":         d.file,
			"_noteJumpMovementSpeed":   16,
			"_noteJumpStartBeatOffset": 0.5,
		}
		if d.customData != nil {
			entry["_customData"] = d.customData
		}
		sets[i]["_difficultyBeatmaps"] = append(sets[i]["_difficultyBeatmaps"].([]map[string]any), entry)
	}

	return map[string]any{
		"_version":               "2.0.0",
		"_songName":              "Test Song",
		"_levelAuthorName":       "mapper",
		"_beatsPerMinute":        bpm,
		"_songFilename":          song,
		"_coverImageFilename":    "cover.jpg",
		"_difficultyBeatmapSets": sets,
	}
}

// v2Notes builds a v2 difficulty with one red down-cut note per time.
func v2Notes(times ...float64) map[string]any {
	notes := make([]map[string]any, 0, len(times))
	for _, tm := range times {
		notes = append(notes, map[string]any{
			"_time":         tm,
			"_lineIndex":    1,
			"_lineLayer":    0,
			"_type":         NoteTypeRed,
			"_cutDirection": CutDown,
		})
	}
	return map[string]any{
		"_version":   "2.2.0",
		"_notes":     notes,
		"_obstacles": []any{},
		"_events":    []any{},
	}
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	return entries
}
