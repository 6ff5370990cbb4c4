package session

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/tradedeck/internal/api"
	"github.com/rickgao/tradedeck/internal/model"
	"github.com/rickgao/tradedeck/internal/series"
)

const refreshTimeout = 10 * time.Second

// Snapshot is the dashboard's non-chart state, refreshed on the dashboard
// timer and served to HTTP consumers.
type Snapshot struct {
	View                model.Selection
	Provenance          model.Provenance
	CredentialsRequired bool
	Account             model.Account
	Positions           []model.Position
	Trades              []model.Trade
}

// Snapshot returns the latest dashboard state.
func (s *Session) Snapshot() Snapshot {
	s.snapMu.Lock()
	account, positions, trades := s.account, s.positions, s.trades
	s.snapMu.Unlock()

	s.mu.Lock()
	view, provenance := s.view, s.provenance
	s.mu.Unlock()

	return Snapshot{
		View:                view,
		Provenance:          provenance,
		CredentialsRequired: s.credentialsRequired.Load(),
		Account:             account,
		Positions:           positions,
		Trades:              trades,
	}
}

// refreshDashboard re-fetches the account, positions, trades, and strategies
// snapshots, reconciles the overlay, and extends the portfolio series. Runs on
// the dashboard timer slot.
func (s *Session) refreshDashboard() {
	ctx, cancel := context.WithTimeout(s.ctx, refreshTimeout)
	defer cancel()

	account, err := s.deps.Client.GetAccount(ctx)
	switch {
	case errors.Is(err, api.ErrCredentialsRequired):
		s.credentialsRequired.Store(true)
		s.logger.Warn("dashboard refresh: server requires credentials")
		return
	case err != nil:
		s.logger.Warn("dashboard refresh: account fetch failed", "error", err)
	default:
		s.credentialsRequired.Store(false)
		s.snapMu.Lock()
		s.account = account
		s.snapMu.Unlock()

		p := model.TimePoint{Timestamp: time.Now().UnixMilli(), Value: account.PortfolioValue}
		if s.deps.Store.Append(series.Portfolio, p) {
			s.deps.Chart.AppendPoint(series.Portfolio, p)
		}
	}

	if positions, err := s.deps.Client.GetPositions(ctx); err != nil {
		s.logger.Debug("positions fetch failed", "error", err)
	} else {
		s.snapMu.Lock()
		s.positions = positions
		s.snapMu.Unlock()
	}

	if trades, err := s.deps.Client.GetTrades(ctx, s.cfg.TradesShown); err != nil {
		s.logger.Debug("trades fetch failed", "error", err)
	} else {
		s.snapMu.Lock()
		s.trades = trades
		s.snapMu.Unlock()
	}

	s.refreshStrategies(ctx)
}

// refreshStrategies reconciles the overlay with the server's strategy list
// and reloads signal markers for the viewed symbol.
func (s *Session) refreshStrategies(ctx context.Context) {
	strategies, err := s.deps.Client.GetStrategies(ctx)
	if err != nil {
		s.logger.Debug("strategies fetch failed", "error", err)
		return
	}
	s.deps.Overlay.SyncStrategies(strategies)

	symbol := s.View().Symbol
	signals, err := s.deps.Client.GetSignals(ctx, symbol)
	if err != nil {
		s.logger.Debug("signals fetch failed", "symbol", symbol, "error", err)
		return
	}

	bySt := make(map[string][]model.Signal)
	for _, sig := range signals {
		bySt[sig.StrategyID] = append(bySt[sig.StrategyID], sig)
	}
	for _, st := range strategies {
		s.deps.Overlay.SetSignals(st.ID, bySt[st.ID])
	}
}

// refreshChart re-resolves the current view's history and commits it under
// the current generation. Runs on the chart timer slot.
func (s *Session) refreshChart() {
	s.mu.Lock()
	gen := s.generation.Load()
	sel := s.view
	s.mu.Unlock()

	if sel.Symbol == "" {
		return
	}

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

	if !s.commit(gen, sel, history, portfolio) {
		return
	}
	s.redraw(sel)
	s.applyProvenance(gen, history.Provenance)
}
