// Package session owns the dashboard's view state: the selected symbol and
// timeframe, the series behind the chart, and the timers and push events that
// keep them current. Every fetch is tagged with the generation of the view it
// was issued for; a result arriving after the view moved on is discarded.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
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

// Resolver is the slice of the data source resolver the session uses.
type Resolver interface {
	ResolveHistory(ctx context.Context, symbol string, timeframe model.Timeframe) (resolver.CandleResult, error)
	ResolvePortfolioHistory(ctx context.Context, timeframe model.Timeframe) (resolver.PointResult, error)
}

// Client is the slice of the REST client the session polls on refresh.
type Client interface {
	GetAccount(ctx context.Context) (model.Account, error)
	GetPositions(ctx context.Context) ([]model.Position, error)
	GetTrades(ctx context.Context, limit int) ([]model.Trade, error)
	GetStrategies(ctx context.Context) ([]model.Strategy, error)
	GetSignals(ctx context.Context, symbol string) ([]model.Signal, error)
}

// Feed is the slice of the push feed the session controls.
type Feed interface {
	SubscribeOnly(symbol string) error
}

// Config holds the session's timing and sizing knobs.
type Config struct {
	DashboardRefresh time.Duration
	ChartRefresh     time.Duration
	DemoTick         time.Duration
	TradesShown      int
	InitialView      model.Selection
}

// Deps are the components the session coordinates.
type Deps struct {
	Client    Client
	Resolver  Resolver
	Store     *series.Store
	Scheduler *scheduler.Scheduler
	Feed      Feed
	Chart     *chart.Adapter
	Overlay   *overlay.Manager
}

// Session is the dashboard's owned context object. All view mutations funnel
// through it.
type Session struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// generation increments on every view change. Written under mu; fetch
	// goroutines read it to detect staleness.
	generation atomic.Int64

	mu         sync.Mutex
	view       model.Selection
	provenance model.Provenance
	running    bool

	credentialsRequired atomic.Bool

	snapMu    sync.Mutex
	account   model.Account
	positions []model.Position
	trades    []model.Trade
}

// New creates a Session. Nothing runs until Start.
func New(cfg Config, deps Deps, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TradesShown <= 0 {
		cfg.TradesShown = 20
	}
	return &Session{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "session"),
	}
}

// Start arms the refresh timers and loads the initial view.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if err := s.deps.Scheduler.Every(scheduler.SlotDashboard, s.cfg.DashboardRefresh, s.refreshDashboard); err != nil {
		return fmt.Errorf("arming dashboard refresh: %w", err)
	}
	if err := s.deps.Scheduler.Every(scheduler.SlotChart, s.cfg.ChartRefresh, s.refreshChart); err != nil {
		return fmt.Errorf("arming chart refresh: %w", err)
	}

	if err := s.SetView(s.cfg.InitialView.Symbol, s.cfg.InitialView.Timeframe); err != nil {
		return fmt.Errorf("loading initial view: %w", err)
	}

	// First dashboard snapshot without waiting a full period.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refreshDashboard()
	}()

	s.logger.Info("session started",
		"symbol", s.cfg.InitialView.Symbol,
		"timeframe", s.cfg.InitialView.Timeframe,
	)
	return nil
}

// Stop cancels in-flight fetches and waits, bounded by ctx, for them to
// drain. The scheduler and feed are stopped by their owners.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("session stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for session shutdown: %w", ctx.Err())
	}
}

// SetView switches the current symbol and timeframe. The old view's series
// are cleared immediately, the push subscription moves to the new symbol, and
// the new data loads asynchronously. Any fetch still in flight for the old
// view becomes inert.
func (s *Session) SetView(symbol string, timeframe model.Timeframe) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !timeframe.Valid() {
		return fmt.Errorf("unknown timeframe %q", timeframe)
	}

	sel := model.Selection{Symbol: symbol, Timeframe: timeframe}

	s.mu.Lock()
	gen := s.generation.Add(1)
	s.view = sel
	s.provenance = ""
	s.deps.Store.ClearAll()
	s.mu.Unlock()

	s.logger.Info("view changed", "symbol", symbol, "timeframe", timeframe, "generation", gen)

	for _, name := range []string{series.Price, series.Candles, series.Volume, series.Portfolio} {
		if err := s.deps.Chart.Clear(name); err != nil && !errors.Is(err, chart.ErrNotReady) {
			s.logger.Debug("chart clear failed", "series", name, "error", err)
		}
	}

	if err := s.deps.Feed.SubscribeOnly(symbol); err != nil {
		s.logger.Warn("push re-subscribe failed", "symbol", symbol, "error", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loadView(gen, sel)
	}()
	return nil
}

// View returns the current selection.
func (s *Session) View() model.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Provenance reports where the current chart data came from. Empty until the
// first load commits.
func (s *Session) Provenance() model.Provenance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provenance
}

// CredentialsRequired reports whether the server has demanded an API key.
func (s *Session) CredentialsRequired() bool {
	return s.credentialsRequired.Load()
}

// loadView resolves and commits series data for one view generation.
func (s *Session) loadView(gen int64, sel model.Selection) {
	history, err := s.deps.Resolver.ResolveHistory(s.ctx, sel.Symbol, sel.Timeframe)
	if err != nil {
		s.handleResolveError(err, sel)
		return
	}

	portfolio, err := s.deps.Resolver.ResolvePortfolioHistory(s.ctx, sel.Timeframe)
	if err != nil {
		s.handleResolveError(err, sel)
		return
	}
	s.credentialsRequired.Store(false)

	if !s.commit(gen, sel, history, portfolio) {
		return
	}
	s.redraw(sel)
	s.applyProvenance(gen, history.Provenance)
}

// commit applies resolved data to the store if, and only if, the view has not
// moved on. The generation check and the store writes happen under one lock so
// a concurrent SetView cannot interleave its clear with our replace.
func (s *Session) commit(gen int64, sel model.Selection, history resolver.CandleResult, portfolio resolver.PointResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation.Load() != gen {
		s.logger.Debug("discarding stale fetch result",
			"symbol", sel.Symbol,
			"generation", gen,
			"current", s.generation.Load(),
		)
		return false
	}

	s.deps.Store.ReplaceCandles(series.Candles, history.Candles)
	s.deps.Store.Replace(series.Price, closeLine(history.Candles))
	s.deps.Store.Replace(series.Volume, volumeLine(history.Candles))
	s.deps.Store.Replace(series.Portfolio, portfolio.Points)
	s.provenance = history.Provenance
	return true
}

// redraw pushes the store's current state to the chart.
func (s *Session) redraw(sel model.Selection) {
	if err := s.deps.Chart.SetCandles(series.Candles, s.deps.Store.CandleSnapshot(series.Candles)); err != nil && !errors.Is(err, chart.ErrNotReady) {
		s.logger.Warn("chart redraw failed", "series", series.Candles, "error", err)
	}
	for _, name := range []string{series.Price, series.Volume, series.Portfolio} {
		if err := s.deps.Chart.SetData(name, s.deps.Store.Snapshot(name)); err != nil && !errors.Is(err, chart.ErrNotReady) {
			s.logger.Warn("chart redraw failed", "series", name, "error", err)
		}
	}
	s.logger.Info("chart redrawn", "symbol", sel.Symbol, "timeframe", sel.Timeframe)
}

// applyProvenance arms or disarms the demo tick for the committed data. Only
// synthetic data is animated locally; live data ticks arrive over the feed.
func (s *Session) applyProvenance(gen int64, p model.Provenance) {
	if s.generation.Load() != gen {
		return
	}
	if p == model.ProvenanceSynthetic {
		if err := s.deps.Scheduler.Every(scheduler.SlotDemoTick, s.cfg.DemoTick, s.demoTick); err != nil {
			s.logger.Warn("arming demo tick failed", "error", err)
		}
		s.logger.Info("demo mode on", "tick", s.cfg.DemoTick)
	} else {
		s.deps.Scheduler.Cancel(scheduler.SlotDemoTick)
	}
}

func (s *Session) handleResolveError(err error, sel model.Selection) {
	if errors.Is(err, api.ErrCredentialsRequired) {
		// Distinct condition: show the credential prompt, not mock data.
		s.credentialsRequired.Store(true)
		s.deps.Scheduler.Cancel(scheduler.SlotDemoTick)
		s.logger.Warn("server requires credentials", "symbol", sel.Symbol)
		return
	}
	// The resolver degrades internally; anything else is unexpected.
	s.logger.Error("resolve failed", "symbol", sel.Symbol, "error", err)
}

func closeLine(candles []model.CandlePoint) []model.TimePoint {
	points := make([]model.TimePoint, len(candles))
	for i, c := range candles {
		points[i] = model.TimePoint{Timestamp: c.Timestamp, Value: c.Close}
	}
	return points
}

func volumeLine(candles []model.CandlePoint) []model.TimePoint {
	points := make([]model.TimePoint, len(candles))
	for i, c := range candles {
		points[i] = model.TimePoint{Timestamp: c.Timestamp, Value: c.Volume}
	}
	return points
}

// HandleMarketData is the push feed's market-data sink. Ticks for a symbol
// other than the current view are dropped.
func (s *Session) HandleMarketData(md push.MarketData) {
	s.mu.Lock()
	current := s.view.Symbol
	s.mu.Unlock()

	if md.Symbol != current {
		s.logger.Debug("dropping tick for non-viewed symbol", "symbol", md.Symbol)
		return
	}

	p := model.TimePoint{Timestamp: md.Timestamp, Value: md.Price}
	if s.deps.Store.Append(series.Price, p) {
		if err := s.deps.Chart.AppendPoint(series.Price, p); err != nil && !errors.Is(err, chart.ErrNotReady) {
			s.logger.Debug("chart append failed", "error", err)
		}
	}
	if md.Volume > 0 {
		s.deps.Store.Append(series.Volume, model.TimePoint{Timestamp: md.Timestamp, Value: md.Volume})
	}

	s.deps.Overlay.HandleTick(md.Symbol, md.Price)
}

// HandleTradeUpdate is the push feed's trade sink.
func (s *Session) HandleTradeUpdate(tu push.TradeUpdate) {
	s.logger.Info("trade executed",
		"symbol", tu.Symbol,
		"side", tu.Side,
		"quantity", tu.Quantity,
		"price", tu.Price,
	)
}

// HandleOrderUpdate is the push feed's order sink.
func (s *Session) HandleOrderUpdate(ou push.OrderUpdate) {
	s.logger.Debug("order update", "id", ou.ID, "status", ou.Status, "filled", ou.Filled)
}

// demoTick advances the synthetic price walk by one step.
func (s *Session) demoTick() {
	s.mu.Lock()
	sel := s.view
	synthetic := s.provenance == model.ProvenanceSynthetic
	s.mu.Unlock()

	if !synthetic {
		return
	}

	last, ok := s.deps.Store.Last(series.Price)
	if !ok {
		return
	}

	p := model.TimePoint{
		Timestamp: time.Now().UnixMilli(),
		Value:     resolver.SyntheticTick(last.Value),
	}
	if s.deps.Store.Append(series.Price, p) {
		if err := s.deps.Chart.AppendPoint(series.Price, p); err != nil && !errors.Is(err, chart.ErrNotReady) {
			s.logger.Debug("chart append failed", "error", err)
		}
	}
	s.deps.Overlay.HandleTick(sel.Symbol, p.Value)
}
