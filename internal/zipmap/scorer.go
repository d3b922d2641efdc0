package zipmap

import (
	"context"
	"fmt"
	"sync"
)

// DifficultyLoader decodes a difficulty file referenced from the info
// document, reusing the session cache.
type DifficultyLoader func(ref string) (*DifficultyDocument, error)

// ScoreProvider computes one score for a whole map. Implementations may be
// slow and may fail; failures are downgraded to a zero score by the session.
type ScoreProvider interface {
	ScoreMap(ctx context.Context, info *InfoDocument, audio AudioSource, difficulty DifficultyLoader) (int16, error)
}

// ScoreProviderFunc adapts a function to ScoreProvider.
type ScoreProviderFunc func(ctx context.Context, info *InfoDocument, audio AudioSource, difficulty DifficultyLoader) (int16, error)

// ScoreMap calls f.
func (f ScoreProviderFunc) ScoreMap(ctx context.Context, info *InfoDocument, audio AudioSource, difficulty DifficultyLoader) (int16, error) {
	return f(ctx, info, audio, difficulty)
}

var (
	scorerMu sync.RWMutex
	scorer   ScoreProvider
)

// RegisterScorer installs the process-wide score provider. Call it from an
// init function or main before any session is opened.
// Panics if a provider is already registered.
func RegisterScorer(p ScoreProvider) {
	if p == nil {
		panic("zipmap: RegisterScorer called with nil provider")
	}

	scorerMu.Lock()
	defer scorerMu.Unlock()

	if scorer != nil {
		panic(fmt.Sprintf("zipmap: score provider already registered: %T", scorer))
	}
	scorer = p
}

// RegisteredScorer returns the registered provider, or nil when none is.
// A nil provider means every map scores zero.
func RegisteredScorer() ScoreProvider {
	scorerMu.RLock()
	defer scorerMu.RUnlock()
	return scorer
}

// runScorer invokes p, converting panics into errors.
func runScorer(ctx context.Context, p ScoreProvider, info *InfoDocument, audio AudioSource, load DifficultyLoader) (score int16, err error) {
	defer func() {
		if r := recover(); r != nil {
			score, err = 0, fmt.Errorf("score provider panicked: %v", r)
		}
	}()
	return p.ScoreMap(ctx, info, audio, load)
}
