package chart

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/tradedeck/internal/model"
)

// State is the adapter's lifecycle position. Transitions are one-way:
// Uninitialized -> Ready (Init), Ready -> Ready (Recreate), any -> Destroyed.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Adapter manages one chart backend behind an explicit state machine. Every
// backend change goes through a full teardown of the previous renderer before
// the next one is built, so two render loops can never coexist.
type Adapter struct {
	factory Factory
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	renderer Renderer
	fallback string
}

// NewAdapter creates an Adapter in the Uninitialized state. fallback is the
// renderer kind tried when the preferred kind is unavailable; empty disables
// fallback.
func NewAdapter(factory Factory, fallback string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		factory:  factory,
		fallback: fallback,
		logger:   logger.With("component", "chart"),
	}
}

// Init builds the renderer. If the preferred kind is unavailable the fallback
// kind is tried before giving up; a blank panel is worse than a degraded one.
func (a *Adapter) Init(kind string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateUninitialized {
		return fmt.Errorf("init from state %s", a.state)
	}
	return a.build(kind)
}

// build constructs a renderer and moves to Ready. Callers hold a.mu.
func (a *Adapter) build(kind string) error {
	r, err := a.factory(kind)
	if err != nil && a.fallback != "" && a.fallback != kind {
		a.logger.Warn("preferred chart backend unavailable, falling back",
			"kind", kind,
			"fallback", a.fallback,
			"error", err,
		)
		r, err = a.factory(a.fallback)
	}
	if err != nil {
		return fmt.Errorf("no usable chart backend: %w", err)
	}

	a.renderer = r
	a.state = StateReady
	a.logger.Info("chart backend ready", "kind", r.Kind())
	return nil
}

// Recreate tears the current renderer down completely and builds a new one of
// the given kind. This is the only way to change backend kind: in-place
// reconfiguration is not supported by the renderers.
func (a *Adapter) Recreate(kind string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateReady {
		return fmt.Errorf("recreate from state %s", a.state)
	}

	if err := a.renderer.Close(); err != nil {
		a.logger.Warn("closing old renderer", "error", err)
	}
	a.renderer = nil
	a.state = StateUninitialized

	return a.build(kind)
}

// Destroy tears the renderer down for good. Terminal; all further operations
// fail.
func (a *Adapter) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateDestroyed {
		return
	}
	if a.renderer != nil {
		if err := a.renderer.Close(); err != nil {
			a.logger.Warn("closing renderer", "error", err)
		}
		a.renderer = nil
	}
	a.state = StateDestroyed
	a.logger.Info("chart destroyed")
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Kind returns the live renderer's kind, or "".
func (a *Adapter) Kind() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.renderer == nil {
		return ""
	}
	return a.renderer.Kind()
}

// SetData replaces a scalar series on the chart.
func (a *Adapter) SetData(series string, points []model.TimePoint) error {
	return a.render(func(r Renderer) error { return r.SetData(series, points) })
}

// SetCandles replaces a candle series on the chart.
func (a *Adapter) SetCandles(series string, candles []model.CandlePoint) error {
	return a.render(func(r Renderer) error { return r.SetCandles(series, candles) })
}

// AppendPoint draws one new point at the end of a series.
func (a *Adapter) AppendPoint(series string, p model.TimePoint) error {
	return a.render(func(r Renderer) error { return r.AppendPoint(series, p) })
}

// SetAnnotations replaces the full annotation set.
func (a *Adapter) SetAnnotations(annotations []Annotation) error {
	return a.render(func(r Renderer) error { return r.SetAnnotations(annotations) })
}

// Clear empties one series on the chart.
func (a *Adapter) Clear(series string) error {
	return a.render(func(r Renderer) error { return r.Clear(series) })
}

func (a *Adapter) render(fn func(Renderer) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateReady {
		return fmt.Errorf("%w (state %s)", ErrNotReady, a.state)
	}
	return fn(a.renderer)
}
