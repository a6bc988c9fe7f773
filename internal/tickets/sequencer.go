package tickets

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrStale is returned for a result that a newer call has superseded.
var ErrStale = errors.New("stale response discarded")

// Sequencer tags calls from one call site so only the latest result is
// used. It does not cancel superseded calls.
type Sequencer struct {
	latest atomic.Uint64
}

// Next issues a new sequence number, superseding all earlier ones.
func (s *Sequencer) Next() uint64 {
	return s.latest.Add(1)
}

// IsLatest reports whether seq is the most recently issued number.
func (s *Sequencer) IsLatest(seq uint64) bool {
	return s.latest.Load() == seq
}

// Guard runs calls under a Sequencer and drops superseded results.
type Guard[T any] struct {
	seq Sequencer
}

// Run calls fn and returns its result if no later Run started meanwhile.
// Otherwise it returns ErrStale and the zero value.
func (g *Guard[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	n := g.seq.Next()
	v, err := fn(ctx)
	if !g.seq.IsLatest(n) {
		var zero T
		return zero, ErrStale
	}
	return v, err
}
