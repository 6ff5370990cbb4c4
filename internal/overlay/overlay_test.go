package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rickgao/tradedeck/internal/chart"
	"github.com/rickgao/tradedeck/internal/model"
)

type fakeStopper struct {
	mu      sync.Mutex
	stopped []string
	err     error
}

func (f *fakeStopper) StopStrategy(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
	return f.err
}

func (f *fakeStopper) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stopped...)
}

type fakeAnnotator struct {
	mu   sync.Mutex
	last []chart.Annotation
}

func (f *fakeAnnotator) SetAnnotations(annotations []chart.Annotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = annotations
	return nil
}

func (f *fakeAnnotator) snapshot() []chart.Annotation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chart.Annotation(nil), f.last...)
}

func longStrategy(id string) model.Strategy {
	return model.Strategy{
		ID:           id,
		Symbol:       "BTC/USD",
		Active:       true,
		PositionType: model.PositionLong,
		EntryPrice:   100,
		StopPercent:  5,
	}
}

func TestTrailingStopRatchetAndSingleTrigger(t *testing.T) {
	stopper := &fakeStopper{}
	m := NewManager(stopper, &fakeAnnotator{}, nil)
	m.SyncStrategies([]model.Strategy{longStrategy("s1")})

	stop, ok := m.Stop("s1")
	if !ok || !stop.Active {
		t.Fatalf("stop = %+v, want armed", stop)
	}
	if stop.StopPrice != 95 {
		t.Fatalf("initial StopPrice = %v, want 95", stop.StopPrice)
	}

	// Favorable ticks ratchet the stop up, never down.
	prices := []float64{100, 105, 102, 110}
	wantStops := []float64{95, 99.75, 99.75, 104.5}
	for i, p := range prices {
		m.HandleTick("BTC/USD", p)
		stop, _ = m.Stop("s1")
		if stop.StopPrice != wantStops[i] {
			t.Errorf("after tick %v: StopPrice = %v, want %v", p, stop.StopPrice, wantStops[i])
		}
		if !stop.Active {
			t.Fatalf("stop deactivated prematurely at tick %v", p)
		}
	}

	// The adverse cross fires exactly one stop request.
	m.HandleTick("BTC/USD", 90)
	if got := stopper.calls(); len(got) != 1 || got[0] != "s1" {
		t.Fatalf("stop requests = %v, want exactly [s1]", got)
	}
	if state, _ := m.State("s1"); state != StateTriggered {
		t.Errorf("state = %s, want triggered", state)
	}

	// Further ticks neither re-trigger nor reactivate.
	m.HandleTick("BTC/USD", 80)
	m.HandleTick("BTC/USD", 120)
	if got := stopper.calls(); len(got) != 1 {
		t.Errorf("stop requests after trigger = %v, want still one", got)
	}
	stop, _ = m.Stop("s1")
	if stop.Active {
		t.Error("stop reactivated after trigger")
	}
}

func TestShortPositionRatchetsDown(t *testing.T) {
	stopper := &fakeStopper{}
	m := NewManager(stopper, nil, nil)
	s := longStrategy("s1")
	s.PositionType = model.PositionShort
	m.SyncStrategies([]model.Strategy{s})

	stop, _ := m.Stop("s1")
	if stop.StopPrice != 105 {
		t.Fatalf("initial short StopPrice = %v, want 105", stop.StopPrice)
	}

	m.HandleTick("BTC/USD", 90)
	stop, _ = m.Stop("s1")
	if stop.StopPrice != 94.5 {
		t.Errorf("StopPrice = %v after drop to 90, want 94.5", stop.StopPrice)
	}

	// Price rising through the stop triggers.
	m.HandleTick("BTC/USD", 95)
	if got := stopper.calls(); len(got) != 1 {
		t.Fatalf("stop requests = %v, want one", got)
	}
}

func TestTickForOtherSymbolIgnored(t *testing.T) {
	stopper := &fakeStopper{}
	m := NewManager(stopper, nil, nil)
	m.SyncStrategies([]model.Strategy{longStrategy("s1")})

	m.HandleTick("ETH/USD", 1)
	if len(stopper.calls()) != 0 {
		t.Error("tick for an unrelated symbol triggered the stop")
	}
	stop, _ := m.Stop("s1")
	if stop.StopPrice != 95 {
		t.Errorf("StopPrice = %v, want untouched 95", stop.StopPrice)
	}
}

func TestTriggeredSurvivesResync(t *testing.T) {
	stopper := &fakeStopper{}
	m := NewManager(stopper, nil, nil)
	m.SyncStrategies([]model.Strategy{longStrategy("s1")})

	m.HandleTick("BTC/USD", 90)
	if state, _ := m.State("s1"); state != StateTriggered {
		t.Fatalf("state = %s, want triggered", state)
	}

	// The server still reports the strategy active; the overlay must not
	// re-arm it.
	m.SyncStrategies([]model.Strategy{longStrategy("s1")})
	if state, _ := m.State("s1"); state != StateTriggered {
		t.Errorf("state = %s after resync, want triggered", state)
	}
	m.HandleTick("BTC/USD", 50)
	if got := stopper.calls(); len(got) != 1 {
		t.Errorf("stop requests = %v, want still one", got)
	}
}

func TestSyncRemovesDeletedStrategies(t *testing.T) {
	m := NewManager(nil, nil, nil)
	m.SyncStrategies([]model.Strategy{longStrategy("s1"), longStrategy("s2")})

	m.SyncStrategies([]model.Strategy{longStrategy("s2")})
	if _, ok := m.State("s1"); ok {
		t.Error("deleted strategy still tracked")
	}
	if _, ok := m.State("s2"); !ok {
		t.Error("surviving strategy dropped")
	}
}

func TestAnnotationsKeyedByStrategyAndIndex(t *testing.T) {
	annotator := &fakeAnnotator{}
	m := NewManager(nil, annotator, nil)
	m.SyncStrategies([]model.Strategy{longStrategy("s1")})

	m.SetSignals("s1", []model.Signal{
		{Timestamp: 1000, Action: model.SignalBuy, StrategyID: "s1", Price: 100},
		{Timestamp: 2000, Action: model.SignalSell, StrategyID: "s1", Price: 104},
	})

	got := annotator.snapshot()
	keys := make(map[string]chart.Annotation, len(got))
	for _, a := range got {
		keys[a.Key] = a
	}

	if a, ok := keys["s1:0"]; !ok || a.Label != "BUY" || a.Kind != chart.AnnotationMarker {
		t.Errorf("s1:0 = %+v, want BUY marker", a)
	}
	if a, ok := keys["s1:1"]; !ok || a.Label != "SELL" {
		t.Errorf("s1:1 = %+v, want SELL marker", a)
	}
	if a, ok := keys["s1:stop"]; !ok || a.Kind != chart.AnnotationStopLine || a.Price != 95 {
		t.Errorf("s1:stop = %+v, want stop line at 95", a)
	}
}

func TestToggleStopDisplayHidesStopLines(t *testing.T) {
	annotator := &fakeAnnotator{}
	m := NewManager(nil, annotator, nil)
	m.SyncStrategies([]model.Strategy{longStrategy("s1")})

	if show := m.ToggleStopDisplay(); show {
		t.Fatal("ToggleStopDisplay = true, want false after first toggle")
	}
	for _, a := range annotator.snapshot() {
		if a.Kind == chart.AnnotationStopLine {
			t.Error("stop line present while hidden")
		}
	}

	if show := m.ToggleStopDisplay(); !show {
		t.Fatal("ToggleStopDisplay = false, want true after second toggle")
	}
	var found bool
	for _, a := range annotator.snapshot() {
		if a.Kind == chart.AnnotationStopLine {
			found = true
		}
	}
	if !found {
		t.Error("stop line missing after re-show")
	}
}

func TestStopRequestFailureIsNotRetried(t *testing.T) {
	stopper := &fakeStopper{err: errors.New("server unreachable")}
	m := NewManager(stopper, nil, nil)
	m.SyncStrategies([]model.Strategy{longStrategy("s1")})

	m.HandleTick("BTC/USD", 90)
	m.HandleTick("BTC/USD", 89)

	// The transition already happened; a failed request is logged, not
	// replayed on the next tick.
	if got := stopper.calls(); len(got) != 1 {
		t.Errorf("stop requests = %v, want one despite failure", got)
	}
}
