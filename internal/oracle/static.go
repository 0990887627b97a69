package oracle

import (
	"context"
	"sync"
)

// StaticFeed serves a fixed round, for tests and offline previews.
type StaticFeed struct {
	mu    sync.Mutex
	round RoundData
	err   error
}

// NewStaticFeed creates a feed that always returns round.
func NewStaticFeed(round RoundData) *StaticFeed {
	return &StaticFeed{round: round}
}

// SetRound replaces the served round.
func (f *StaticFeed) SetRound(round RoundData) {
	f.mu.Lock()
	f.round = round
	f.mu.Unlock()
}

// SetError makes every subsequent read fail with err.
func (f *StaticFeed) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// LatestRound returns the configured round or error.
func (f *StaticFeed) LatestRound(_ context.Context) (RoundData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return RoundData{}, f.err
	}
	return f.round, nil
}
