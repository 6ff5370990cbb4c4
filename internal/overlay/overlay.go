// Package overlay tracks strategy signal markers and trailing stop-loss lines
// and projects them onto the chart as annotations.
package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/tradedeck/internal/chart"
	"github.com/rickgao/tradedeck/internal/model"
)

// StrategyState is a strategy's overlay lifecycle. Triggered is terminal: the
// overlay never re-arms a stop on its own, even if the server later reports
// the strategy active again.
type StrategyState int

const (
	StateInactive StrategyState = iota
	StateActive
	StateTriggered
)

func (s StrategyState) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// Stopper issues the server-side stop when a trailing stop triggers.
type Stopper interface {
	StopStrategy(ctx context.Context, id string) error
}

// Annotator is the slice of the chart adapter the overlay draws through.
type Annotator interface {
	SetAnnotations(annotations []chart.Annotation) error
}

// tracked is one strategy's overlay state.
type tracked struct {
	strategy model.Strategy
	state    StrategyState
	stop     model.TrailingStop
	signals  []model.Signal
}

// Manager owns the per-strategy overlay state machines. Safe for concurrent
// use.
type Manager struct {
	stopper   Stopper
	annotator Annotator
	logger    *slog.Logger

	mu         sync.Mutex
	strategies map[string]*tracked
	showStops  bool
}

// NewManager creates a Manager. Stop lines start visible.
func NewManager(stopper Stopper, annotator Annotator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		stopper:    stopper,
		annotator:  annotator,
		logger:     logger.With("component", "overlay"),
		strategies: make(map[string]*tracked),
		showStops:  true,
	}
}

// SyncStrategies reconciles the overlay set against the server's strategy
// list: new strategies are tracked, deleted ones dropped with their stops and
// markers, and activation flags applied. A Triggered overlay stays Triggered.
func (m *Manager) SyncStrategies(strategies []model.Strategy) {
	m.mu.Lock()

	seen := make(map[string]bool, len(strategies))
	for _, s := range strategies {
		seen[s.ID] = true

		t, ok := m.strategies[s.ID]
		if !ok {
			t = &tracked{strategy: s}
			if s.Active {
				t.state = StateActive
				t.stop = newTrailingStop(s)
			}
			m.strategies[s.ID] = t
			m.logger.Info("tracking strategy", "strategy", s.ID, "symbol", s.Symbol, "state", t.state)
			continue
		}

		t.strategy = s
		switch t.state {
		case StateTriggered:
			// Terminal. No automatic re-arm.
		case StateInactive:
			if s.Active {
				t.state = StateActive
				t.stop = newTrailingStop(s)
				m.logger.Info("strategy activated", "strategy", s.ID)
			}
		case StateActive:
			if !s.Active {
				t.state = StateInactive
				t.stop.Active = false
				m.logger.Info("strategy deactivated", "strategy", s.ID)
			}
		}
	}

	for id, t := range m.strategies {
		if !seen[id] {
			delete(m.strategies, id)
			m.logger.Info("strategy removed", "strategy", id, "state", t.state)
		}
	}

	m.pushAnnotationsLocked()
	m.mu.Unlock()
}

// newTrailingStop arms a stop from the strategy's entry. A zero StopPercent
// means the strategy trades without a stop.
func newTrailingStop(s model.Strategy) model.TrailingStop {
	stop := model.TrailingStop{
		StrategyID:   s.ID,
		StopPercent:  s.StopPercent,
		EntryPrice:   s.EntryPrice,
		PositionType: s.PositionType,
	}
	if s.StopPercent <= 0 || s.EntryPrice <= 0 {
		return stop
	}
	stop.Active = true
	if s.PositionType == model.PositionShort {
		stop.LowestPrice = s.EntryPrice
		stop.StopPrice = s.EntryPrice * (1 + s.StopPercent/100)
	} else {
		stop.HighestPrice = s.EntryPrice
		stop.StopPrice = s.EntryPrice * (1 - s.StopPercent/100)
	}
	return stop
}

// SetSignals replaces a strategy's buy/sell markers. Signals for an untracked
// strategy are ignored.
func (m *Manager) SetSignals(strategyID string, signals []model.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.strategies[strategyID]
	if !ok {
		return
	}
	t.signals = signals
	m.pushAnnotationsLocked()
}

// HandleTick feeds a price tick to every active stop on the symbol. Favorable
// movement ratchets the stop; an adverse cross triggers it exactly once and
// issues exactly one stop request to the server.
func (m *Manager) HandleTick(symbol string, price float64) {
	if price <= 0 {
		return
	}

	m.mu.Lock()
	var triggered []string
	changed := false

	for id, t := range m.strategies {
		if t.state != StateActive || !t.stop.Active || t.strategy.Symbol != symbol {
			continue
		}

		if ratchet(&t.stop, price) {
			changed = true
		}

		if crossed(&t.stop, price) {
			t.state = StateTriggered
			t.stop.Active = false
			triggered = append(triggered, id)
			changed = true
			m.logger.Warn("trailing stop triggered",
				"strategy", id,
				"symbol", symbol,
				"price", price,
				"stop_price", t.stop.StopPrice,
			)
		}
	}

	if changed {
		m.pushAnnotationsLocked()
	}
	m.mu.Unlock()

	for _, id := range triggered {
		if m.stopper == nil {
			continue
		}
		if err := m.stopper.StopStrategy(context.Background(), id); err != nil {
			m.logger.Error("stop request failed", "strategy", id, "error", err)
		}
	}
}

// ratchet moves the stop favorably. Returns true if it moved.
func ratchet(stop *model.TrailingStop, price float64) bool {
	if stop.PositionType == model.PositionShort {
		if price < stop.LowestPrice {
			stop.LowestPrice = price
			stop.StopPrice = price * (1 + stop.StopPercent/100)
			return true
		}
		return false
	}
	if price > stop.HighestPrice {
		stop.HighestPrice = price
		stop.StopPrice = price * (1 - stop.StopPercent/100)
		return true
	}
	return false
}

// crossed reports an adverse cross of the stop price.
func crossed(stop *model.TrailingStop, price float64) bool {
	if stop.PositionType == model.PositionShort {
		return price >= stop.StopPrice
	}
	return price <= stop.StopPrice
}

// SetStopDisplay shows or hides stop lines. Markers are unaffected.
func (m *Manager) SetStopDisplay(show bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.showStops == show {
		return
	}
	m.showStops = show
	m.pushAnnotationsLocked()
}

// ToggleStopDisplay flips stop-line visibility and returns the new setting.
func (m *Manager) ToggleStopDisplay() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.showStops = !m.showStops
	m.pushAnnotationsLocked()
	return m.showStops
}

// State returns a strategy's overlay state.
func (m *Manager) State(strategyID string) (StrategyState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.strategies[strategyID]
	if !ok {
		return StateInactive, false
	}
	return t.state, true
}

// Stop returns a copy of a strategy's trailing stop.
func (m *Manager) Stop(strategyID string) (model.TrailingStop, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.strategies[strategyID]
	if !ok {
		return model.TrailingStop{}, false
	}
	return t.stop, true
}

// Annotations returns the current annotation set.
func (m *Manager) Annotations() []chart.Annotation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.annotationsLocked()
}

func (m *Manager) annotationsLocked() []chart.Annotation {
	var out []chart.Annotation
	for id, t := range m.strategies {
		for i, sig := range t.signals {
			out = append(out, chart.Annotation{
				Key:       fmt.Sprintf("%s:%d", id, i),
				Kind:      chart.AnnotationMarker,
				Timestamp: sig.Timestamp,
				Price:     sig.Price,
				Label:     string(sig.Action),
			})
		}
		if m.showStops && t.stop.Active {
			out = append(out, chart.Annotation{
				Key:   fmt.Sprintf("%s:stop", id),
				Kind:  chart.AnnotationStopLine,
				Price: t.stop.StopPrice,
				Label: fmt.Sprintf("stop %.2f", t.stop.StopPrice),
			})
		}
	}
	return out
}

func (m *Manager) pushAnnotationsLocked() {
	if m.annotator == nil {
		return
	}
	if err := m.annotator.SetAnnotations(m.annotationsLocked()); err != nil {
		m.logger.Debug("annotation push failed", "error", err)
	}
}
