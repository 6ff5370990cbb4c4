// Package series owns the in-memory representation of every visual chart
// series. All mutation goes through the Store; renderers only ever see
// snapshot copies.
package series

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/rickgao/tradedeck/internal/model"
)

// Well-known series names.
const (
	Portfolio   = "portfolio"
	Price       = "price"
	Volume      = "volume"
	BuySignals  = "buy_signals"
	SellSignals = "sell_signals"
	Candles     = "candles"
)

// Stats counts store activity.
type Stats struct {
	Appends  int64 // Points accepted by Append
	Rejected int64 // Out-of-order points refused
	Replaces int64 // Replace operations
	Dropped  int64 // Oldest points dropped to honor the cap
}

// Store holds named bounded series. Safe for concurrent use; Replace is atomic
// from any reader's perspective.
type Store struct {
	maxPoints int
	logger    *slog.Logger

	mu      sync.RWMutex
	scalars map[string]*ring[model.TimePoint]
	candles map[string]*ring[model.CandlePoint]
	stats   Stats
}

// NewStore creates a Store whose series each retain at most maxPoints.
func NewStore(maxPoints int, logger *slog.Logger) *Store {
	if maxPoints < 2 {
		maxPoints = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		maxPoints: maxPoints,
		logger:    logger,
		scalars:   make(map[string]*ring[model.TimePoint]),
		candles:   make(map[string]*ring[model.CandlePoint]),
	}
}

// Append adds a point to a scalar series. A point older than the last stored
// point is rejected (logged, counted, stored sequence untouched) to keep the
// series monotonic under out-of-order network delivery. When the series is at
// capacity the oldest point is dropped.
func (s *Store) Append(name string, p model.TimePoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.scalar(name)
	if last, ok := r.last(); ok && p.Timestamp < last.Timestamp {
		s.stats.Rejected++
		s.logger.Debug("rejecting out-of-order point",
			"series", name,
			"timestamp", p.Timestamp,
			"last", last.Timestamp,
		)
		return false
	}

	if r.push(p) {
		s.stats.Dropped++
	}
	s.stats.Appends++
	return true
}

// Replace atomically overwrites a scalar series. The input defines the full
// window: points are sorted by timestamp and, if over the cap, only the newest
// maxPoints are kept. No ring-dropping happens beyond that.
func (s *Store) Replace(name string, points []model.TimePoint) {
	sorted := sortedCopy(points)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scalar(name).replace(sorted)
	s.stats.Replaces++
}

// AppendCandle adds a bar to a candle series under the same ordering rule as
// Append.
func (s *Store) AppendCandle(name string, c model.CandlePoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.candle(name)
	if last, ok := r.last(); ok && c.Timestamp < last.Timestamp {
		s.stats.Rejected++
		s.logger.Debug("rejecting out-of-order candle",
			"series", name,
			"timestamp", c.Timestamp,
			"last", last.Timestamp,
		)
		return false
	}

	if r.push(c) {
		s.stats.Dropped++
	}
	s.stats.Appends++
	return true
}

// ReplaceCandles atomically overwrites a candle series.
func (s *Store) ReplaceCandles(name string, candles []model.CandlePoint) {
	sorted := sortedCopy(candles)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.candle(name).replace(sorted)
	s.stats.Replaces++
}

// Clear atomically empties one series (scalar or candle).
func (s *Store) Clear(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.scalars[name]; ok {
		r.clear()
	}
	if r, ok := s.candles[name]; ok {
		r.clear()
	}
}

// ClearAll empties every series. Series objects survive (cleared, not
// destroyed) so renderers keep stable names across a context switch.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.scalars {
		r.clear()
	}
	for _, r := range s.candles {
		r.clear()
	}
}

// Snapshot returns a copy of a scalar series in timestamp order.
func (s *Store) Snapshot(name string) []model.TimePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.scalars[name]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// CandleSnapshot returns a copy of a candle series in timestamp order.
func (s *Store) CandleSnapshot(name string) []model.CandlePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.candles[name]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// Last returns the newest point of a scalar series.
func (s *Store) Last(name string) (model.TimePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.scalars[name]
	if !ok {
		return model.TimePoint{}, false
	}
	return r.last()
}

// Len returns the stored length of a scalar series.
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.scalars[name]; ok {
		return r.len()
	}
	return 0
}

// Stats returns activity counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// scalar returns the named scalar ring, creating it on first use.
// Callers hold s.mu.
func (s *Store) scalar(name string) *ring[model.TimePoint] {
	r, ok := s.scalars[name]
	if !ok {
		r = newRing[model.TimePoint](s.maxPoints)
		s.scalars[name] = r
	}
	return r
}

// candle returns the named candle ring, creating it on first use.
// Callers hold s.mu.
func (s *Store) candle(name string) *ring[model.CandlePoint] {
	r, ok := s.candles[name]
	if !ok {
		r = newRing[model.CandlePoint](s.maxPoints)
		s.candles[name] = r
	}
	return r
}

// timed is any point with a millisecond timestamp.
type timed interface {
	Time() int64
}

func sortedCopy[T timed](points []T) []T {
	out := make([]T, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time() < out[j].Time()
	})
	return out
}
