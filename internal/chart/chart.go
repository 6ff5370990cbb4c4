// Package chart bridges the series store to a rendering backend. The Adapter
// owns the backend lifecycle; Renderer implementations own the actual drawing.
package chart

import (
	"errors"

	"github.com/rickgao/tradedeck/internal/model"
)

var (
	// ErrBackendUnavailable means a renderer kind cannot be constructed.
	ErrBackendUnavailable = errors.New("chart backend unavailable")
	// ErrNotReady means the adapter has no live renderer.
	ErrNotReady = errors.New("chart not ready")
)

// Renderer kinds.
const (
	KindStream   = "stream"
	KindSnapshot = "snapshot"
)

// Annotation is a mark drawn over the series: a buy/sell marker or a
// horizontal stop line.
type Annotation struct {
	Key       string  `json:"key"` // Stable identity, e.g. "strategyID:3"
	Kind      string  `json:"kind"`
	Timestamp int64   `json:"timestamp,omitempty"`
	Price     float64 `json:"price"`
	Label     string  `json:"label,omitempty"`
}

// Annotation kinds.
const (
	AnnotationMarker   = "marker"
	AnnotationStopLine = "stop_line"
)

// Renderer draws series data. Implementations are not required to be safe for
// concurrent use; the Adapter serializes calls.
type Renderer interface {
	Kind() string
	SetData(series string, points []model.TimePoint) error
	SetCandles(series string, candles []model.CandlePoint) error
	AppendPoint(series string, p model.TimePoint) error
	SetAnnotations(annotations []Annotation) error
	Clear(series string) error
	Close() error
}

// Factory constructs a Renderer of the requested kind, or returns
// ErrBackendUnavailable.
type Factory func(kind string) (Renderer, error)
