package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/tradedeck/internal/api"
	"github.com/rickgao/tradedeck/internal/chart"
	"github.com/rickgao/tradedeck/internal/model"
	"github.com/rickgao/tradedeck/internal/overlay"
	"github.com/rickgao/tradedeck/internal/push"
	"github.com/rickgao/tradedeck/internal/resolver"
	"github.com/rickgao/tradedeck/internal/scheduler"
	"github.com/rickgao/tradedeck/internal/series"
)

// fakeResolver returns one candle per symbol whose close encodes the symbol,
// optionally blocking on a per-symbol gate to simulate slow fetches.
type fakeResolver struct {
	mu         sync.Mutex
	gates      map[string]chan struct{}
	prices     map[string]float64
	provenance model.Provenance
	err        error
}

func (f *fakeResolver) ResolveHistory(ctx context.Context, symbol string, timeframe model.Timeframe) (resolver.CandleResult, error) {
	f.mu.Lock()
	gate := f.gates[symbol]
	price := f.prices[symbol]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return resolver.CandleResult{}, f.err
	}
	return resolver.CandleResult{
		Candles:    []model.CandlePoint{{Timestamp: 1000, Open: price, High: price, Low: price, Close: price, Volume: 1}},
		Provenance: f.provenance,
	}, nil
}

func (f *fakeResolver) ResolvePortfolioHistory(ctx context.Context, timeframe model.Timeframe) (resolver.PointResult, error) {
	if f.err != nil {
		return resolver.PointResult{}, f.err
	}
	return resolver.PointResult{
		Points:     []model.TimePoint{{Timestamp: 1000, Value: 10000}},
		Provenance: f.provenance,
	}, nil
}

type fakeClient struct {
	err error
}

func (f fakeClient) GetAccount(ctx context.Context) (model.Account, error) {
	if f.err != nil {
		return model.Account{}, f.err
	}
	return model.Account{PortfolioValue: 10000}, nil
}
func (f fakeClient) GetPositions(ctx context.Context) ([]model.Position, error) { return nil, f.err }
func (f fakeClient) GetTrades(ctx context.Context, limit int) ([]model.Trade, error) {
	return nil, f.err
}
func (f fakeClient) GetStrategies(ctx context.Context) ([]model.Strategy, error) { return nil, f.err }
func (f fakeClient) GetSignals(ctx context.Context, symbol string) ([]model.Signal, error) {
	return nil, f.err
}

type fakeFeed struct {
	mu      sync.Mutex
	symbols []string
}

func (f *fakeFeed) SubscribeOnly(symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols = append(f.symbols, symbol)
	return nil
}

func (f *fakeFeed) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.symbols) == 0 {
		return ""
	}
	return f.symbols[len(f.symbols)-1]
}

type fixture struct {
	session  *Session
	resolver *fakeResolver
	store    *series.Store
	sched    *scheduler.Scheduler
	feed     *fakeFeed
}

func newFixture(t *testing.T, r *fakeResolver, client fakeClient) *fixture {
	t.Helper()

	store := series.NewStore(100, nil)
	sched := scheduler.New(nil)
	sched.Start()
	t.Cleanup(func() { sched.Stop(context.Background()) })

	adapter := chart.NewAdapter(chart.NewFactory(nil), chart.KindSnapshot, nil)
	if err := adapter.Init(chart.KindSnapshot); err != nil {
		t.Fatalf("chart init failed: %v", err)
	}

	feed := &fakeFeed{}
	cfg := Config{
		DashboardRefresh: time.Hour,
		ChartRefresh:     time.Hour,
		DemoTick:         10 * time.Millisecond,
		InitialView:      model.Selection{Symbol: "BTC/USD", Timeframe: model.Timeframe1D},
	}
	deps := Deps{
		Client:    client,
		Resolver:  r,
		Store:     store,
		Scheduler: sched,
		Feed:      feed,
		Chart:     adapter,
		Overlay:   overlay.NewManager(nil, adapter, nil),
	}

	s := New(cfg, deps, nil)
	t.Cleanup(func() { s.Stop(context.Background()) })
	return &fixture{session: s, resolver: r, store: store, sched: sched, feed: feed}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartLoadsInitialView(t *testing.T) {
	r := &fakeResolver{
		prices:     map[string]float64{"BTC/USD": 65000},
		provenance: model.ProvenanceLive,
	}
	f := newFixture(t, r, fakeClient{})

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, func() bool {
		pts := f.store.Snapshot(series.Price)
		return len(pts) == 1 && pts[0].Value == 65000
	}, "initial view never committed")

	if f.feed.last() != "BTC/USD" {
		t.Errorf("subscribed symbol = %q, want BTC/USD", f.feed.last())
	}
	if f.session.Provenance() != model.ProvenanceLive {
		t.Errorf("Provenance = %q, want live", f.session.Provenance())
	}
	// Live data does not run the demo tick.
	if f.sched.Active(scheduler.SlotDemoTick) {
		t.Error("demo tick armed for live data")
	}
}

func TestRapidViewSwitchesKeepOnlyFinal(t *testing.T) {
	gates := map[string]chan struct{}{
		"AAA/USD": make(chan struct{}),
		"BBB/USD": make(chan struct{}),
		"CCC/USD": make(chan struct{}),
	}
	r := &fakeResolver{
		gates:      gates,
		prices:     map[string]float64{"AAA/USD": 1, "BBB/USD": 2, "CCC/USD": 3},
		provenance: model.ProvenanceLive,
	}
	f := newFixture(t, r, fakeClient{})

	// Three switches before any fetch completes.
	for _, symbol := range []string{"AAA/USD", "BBB/USD", "CCC/USD"} {
		if err := f.session.SetView(symbol, model.Timeframe1D); err != nil {
			t.Fatalf("SetView(%s) failed: %v", symbol, err)
		}
	}

	// Stale fetches resolve first; their results must be discarded.
	close(gates["AAA/USD"])
	close(gates["BBB/USD"])
	close(gates["CCC/USD"])

	waitFor(t, func() bool {
		return len(f.store.Snapshot(series.Price)) > 0
	}, "no view ever committed")

	// Give any stale commit a chance to (wrongly) land.
	time.Sleep(50 * time.Millisecond)

	pts := f.store.Snapshot(series.Price)
	if len(pts) != 1 || pts[0].Value != 3 {
		t.Fatalf("price series = %+v, want only CCC/USD's data", pts)
	}
	if got := f.session.View().Symbol; got != "CCC/USD" {
		t.Errorf("View = %q, want CCC/USD", got)
	}
	if f.feed.last() != "CCC/USD" {
		t.Errorf("subscribed symbol = %q, want CCC/USD", f.feed.last())
	}
}

func TestSyntheticProvenanceArmsDemoTick(t *testing.T) {
	r := &fakeResolver{
		prices:     map[string]float64{"BTC/USD": 100},
		provenance: model.ProvenanceSynthetic,
	}
	f := newFixture(t, r, fakeClient{})

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, func() bool {
		return f.sched.Active(scheduler.SlotDemoTick)
	}, "demo tick never armed for synthetic data")

	// The demo tick appends simulated prices.
	waitFor(t, func() bool {
		return f.store.Len(series.Price) >= 3
	}, "demo tick never appended points")
}

func TestCredentialFailureSetsFlagWithoutData(t *testing.T) {
	r := &fakeResolver{err: api.ErrCredentialsRequired}
	f := newFixture(t, r, fakeClient{err: api.ErrCredentialsRequired})

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, func() bool {
		return f.session.CredentialsRequired()
	}, "credential flag never set")

	if n := f.store.Len(series.Price); n != 0 {
		t.Errorf("price series has %d points, want 0 (no mock data for credential failures)", n)
	}
}

func TestMarketDataForViewedSymbolAppends(t *testing.T) {
	r := &fakeResolver{
		prices:     map[string]float64{"BTC/USD": 65000},
		provenance: model.ProvenanceLive,
	}
	f := newFixture(t, r, fakeClient{})

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool {
		return f.store.Len(series.Price) == 1
	}, "initial view never committed")

	f.session.HandleMarketData(push.MarketData{Symbol: "ETH/USD", Price: 3000, Timestamp: 2000})
	if f.store.Len(series.Price) != 1 {
		t.Error("tick for a non-viewed symbol was appended")
	}

	f.session.HandleMarketData(push.MarketData{Symbol: "BTC/USD", Price: 65100, Timestamp: 2000})
	pts := f.store.Snapshot(series.Price)
	if len(pts) != 2 || pts[1].Value != 65100 {
		t.Fatalf("price series = %+v, want the BTC tick appended", pts)
	}
}

func TestSnapshotReflectsRefresh(t *testing.T) {
	r := &fakeResolver{
		prices:     map[string]float64{"BTC/USD": 65000},
		provenance: model.ProvenanceLive,
	}
	f := newFixture(t, r, fakeClient{})

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, func() bool {
		return f.session.Snapshot().Account.PortfolioValue == 10000
	}, "dashboard snapshot never populated")

	snap := f.session.Snapshot()
	if snap.View.Symbol != "BTC/USD" || snap.CredentialsRequired {
		t.Errorf("snapshot = %+v, want BTC/USD view without credential flag", snap)
	}
}
