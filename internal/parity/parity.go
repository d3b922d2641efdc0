// Package parity implements a swing parity diagnostic for difficulty files.
//
// Each saber alternates between forehand and backhand swings. A note whose
// cut direction asks for the same swing class as the previous note of that
// color forces a reset. Resets are classified by what surrounds them:
//
//   - Info: a bomb sits between the two notes, so the reset is intended.
//   - Warning: the gap is long enough for the player to recover.
//   - Error: the gap is shorter than ResetWindow beats.
//
// Dot notes (any direction) and horizontal cuts flip the expected swing
// without asserting a class. Obstacles are ignored.
package parity

import (
	"errors"
	"math"
	"sort"

	"github.com/JonMunkholm/beatmaps/internal/zipmap"
)

// ResetWindow is the gap in beats under which a same-class swing is an error.
const ResetWindow = 0.5

// MaxNotes bounds the work done on a single difficulty.
const MaxNotes = 1 << 20

// ErrTooManyNotes is returned for difficulties larger than MaxNotes.
var ErrTooManyNotes = errors.New("parity: too many notes")

type swing int

const (
	swingNone swing = iota
	swingForehand
	swingBackhand
)

func (s swing) opposite() swing {
	switch s {
	case swingForehand:
		return swingBackhand
	case swingBackhand:
		return swingForehand
	}
	return swingNone
}

// classify returns the swing class a cut direction implies.
func classify(dir int) swing {
	switch dir {
	case zipmap.CutDown, zipmap.CutDownLeft, zipmap.CutDownRight:
		return swingForehand
	case zipmap.CutUp, zipmap.CutUpLeft, zipmap.CutUpRight:
		return swingBackhand
	}
	return swingNone
}

// Checker is the default zipmap.ParityChecker.
type Checker struct{}

var _ zipmap.ParityChecker = Checker{}

type hand struct {
	last     swing
	lastTime float64
	seen     bool
}

// Check counts parity resets in notes. Notes need not be sorted.
func (Checker) Check(notes []zipmap.Note, _ []zipmap.Obstacle) (zipmap.ParityResult, error) {
	var result zipmap.ParityResult
	if len(notes) > MaxNotes {
		return result, ErrTooManyNotes
	}

	sorted := make([]zipmap.Note, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	hands := map[int]*hand{
		zipmap.NoteTypeRed:  {},
		zipmap.NoteTypeBlue: {},
	}
	lastBomb := math.Inf(-1)

	for _, n := range sorted {
		if n.IsBomb() {
			lastBomb = n.Time
			continue
		}
		h, ok := hands[n.Type]
		if !ok {
			continue
		}

		want := classify(n.CutDirection)
		if !h.seen {
			h.seen = true
			h.last, h.lastTime = want, n.Time
			if want == swingNone {
				h.last = swingForehand
			}
			continue
		}

		// Stacked notes in the same swing share one cut.
		if n.Time == h.lastTime {
			continue
		}

		switch {
		case want == swingNone:
			h.last = h.last.opposite()
		case want == h.last:
			switch {
			case lastBomb > h.lastTime && lastBomb < n.Time:
				result.Info++
			case n.Time-h.lastTime >= ResetWindow:
				result.Warnings++
			default:
				result.Errors++
			}
		default:
			h.last = want
		}
		h.lastTime = n.Time
	}

	return result, nil
}
