package chart

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rickgao/tradedeck/internal/model"
)

// snapshotRenderer is the degraded backend: it keeps the latest state of every
// series and serves it as one JSON document on demand. No push, no streaming,
// but never unavailable.
type snapshotRenderer struct {
	mu          sync.RWMutex
	series      map[string][]model.TimePoint
	candles     map[string][]model.CandlePoint
	annotations []Annotation
	closed      bool
}

// NewSnapshotRenderer creates the snapshot renderer.
func NewSnapshotRenderer() *snapshotRenderer {
	return &snapshotRenderer{
		series:  make(map[string][]model.TimePoint),
		candles: make(map[string][]model.CandlePoint),
	}
}

func (s *snapshotRenderer) Kind() string { return KindSnapshot }

func (s *snapshotRenderer) SetData(series string, points []model.TimePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[series] = points
	return nil
}

func (s *snapshotRenderer) SetCandles(series string, candles []model.CandlePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[series] = candles
	return nil
}

func (s *snapshotRenderer) AppendPoint(series string, p model.TimePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[series] = append(s.series[series], p)
	return nil
}

func (s *snapshotRenderer) SetAnnotations(annotations []Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations = annotations
	return nil
}

func (s *snapshotRenderer) Clear(series string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, series)
	delete(s.candles, series)
	return nil
}

func (s *snapshotRenderer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = make(map[string][]model.TimePoint)
	s.candles = make(map[string][]model.CandlePoint)
	s.annotations = nil
	s.closed = true
	return nil
}

// ServeHTTP returns the full chart state as JSON.
func (s *snapshotRenderer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	doc := struct {
		Kind        string                         `json:"kind"`
		Series      map[string][]model.TimePoint   `json:"series"`
		Candles     map[string][]model.CandlePoint `json:"candles"`
		Annotations []Annotation                   `json:"annotations"`
	}{
		Kind:        KindSnapshot,
		Series:      s.series,
		Candles:     s.candles,
		Annotations: s.annotations,
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// NewFactory returns the standard renderer factory. The stream kind needs a
// hub; with a nil hub only the snapshot kind is available.
func NewFactory(hub *Hub) Factory {
	return func(kind string) (Renderer, error) {
		switch kind {
		case KindStream:
			if hub == nil {
				return nil, ErrBackendUnavailable
			}
			return NewStreamRenderer(hub), nil
		case KindSnapshot:
			return NewSnapshotRenderer(), nil
		default:
			return nil, ErrBackendUnavailable
		}
	}
}
