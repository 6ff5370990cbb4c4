// Package resolver turns a (symbol, timeframe) request into chart-ready data,
// trying cache, live fetch, and synthetic generation in that order.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/tradedeck/internal/api"
	"github.com/rickgao/tradedeck/internal/cache"
	"github.com/rickgao/tradedeck/internal/model"
)

// HistoryAPI is the slice of the REST client the resolver needs.
type HistoryAPI interface {
	GetHistorical(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.CandlePoint, error)
	GetAccountHistory(ctx context.Context, timeframe model.Timeframe) ([]model.TimePoint, error)
}

// CandleResult is a resolved candle series with its provenance.
type CandleResult struct {
	Candles    []model.CandlePoint
	Provenance model.Provenance
}

// PointResult is a resolved scalar series with its provenance.
type PointResult struct {
	Points     []model.TimePoint
	Provenance model.Provenance
}

const defaultFetchTimeout = 5 * time.Second

// Resolver resolves series requests. Apart from api.ErrCredentialsRequired it
// never returns an error: any fetch failure degrades to synthetic data.
// Concurrent resolves for the same key share one fetch.
type Resolver struct {
	api          HistoryAPI
	cache        *cache.Cache
	logger       *slog.Logger
	fetchTimeout time.Duration
	group        singleflight.Group
}

// New creates a Resolver over the given API client and cache.
func New(client HistoryAPI, c *cache.Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		api:          client,
		cache:        c,
		logger:       logger.With("component", "resolver"),
		fetchTimeout: defaultFetchTimeout,
	}
}

// ResolveHistory resolves the candle series for a symbol and timeframe.
//
// A fresh live cache entry is returned directly. A cached synthetic entry does
// not short-circuit: a live fetch is attempted first and the synthetic entry
// reused only if that fails again. The only error ever returned is
// api.ErrCredentialsRequired.
func (r *Resolver) ResolveHistory(ctx context.Context, symbol string, timeframe model.Timeframe) (CandleResult, error) {
	key := cache.Key{Name: "historical", Symbol: symbol, Timeframe: timeframe}

	if e, ok := r.cache.Get(key); ok && !e.Synthetic {
		if candles, ok := e.Payload.([]model.CandlePoint); ok {
			return CandleResult{Candles: candles, Provenance: model.ProvenanceLive}, nil
		}
	}

	v, err, _ := r.group.Do(key.String(), func() (any, error) {
		fetchCtx, cancel := r.fetchContext(ctx)
		defer cancel()

		candles, err := r.api.GetHistorical(fetchCtx, symbol, timeframe, timeframe.Points())
		if err == nil && len(candles) > 0 {
			r.cache.Put(key, candles, cache.ClassHistory, false)
			return CandleResult{Candles: candles, Provenance: model.ProvenanceLive}, nil
		}
		if errors.Is(err, api.ErrCredentialsRequired) {
			return nil, err
		}

		if e, ok := r.cache.Get(key); ok && e.Synthetic {
			if cached, ok := e.Payload.([]model.CandlePoint); ok {
				r.logger.Debug("reusing cached synthetic candles", "symbol", symbol, "timeframe", timeframe)
				return CandleResult{Candles: cached, Provenance: model.ProvenanceSynthetic}, nil
			}
		}

		r.logger.Warn("live fetch failed, generating synthetic candles",
			"symbol", symbol,
			"timeframe", timeframe,
			"error", err,
		)
		synthetic := SyntheticCandles(symbol, timeframe)
		r.cache.Put(key, synthetic, cache.ClassSynthetic, true)
		return CandleResult{Candles: synthetic, Provenance: model.ProvenanceSynthetic}, nil
	})
	if err != nil {
		return CandleResult{}, err
	}
	return v.(CandleResult), nil
}

// ResolvePortfolioHistory resolves the account equity series for a timeframe,
// under the same degradation rules as ResolveHistory.
func (r *Resolver) ResolvePortfolioHistory(ctx context.Context, timeframe model.Timeframe) (PointResult, error) {
	key := cache.Key{Name: "portfolio", Timeframe: timeframe}

	if e, ok := r.cache.Get(key); ok && !e.Synthetic {
		if points, ok := e.Payload.([]model.TimePoint); ok {
			return PointResult{Points: points, Provenance: model.ProvenanceLive}, nil
		}
	}

	v, err, _ := r.group.Do(key.String(), func() (any, error) {
		fetchCtx, cancel := r.fetchContext(ctx)
		defer cancel()

		points, err := r.api.GetAccountHistory(fetchCtx, timeframe)
		if err == nil && len(points) > 0 {
			r.cache.Put(key, points, cache.ClassHistory, false)
			return PointResult{Points: points, Provenance: model.ProvenanceLive}, nil
		}
		if errors.Is(err, api.ErrCredentialsRequired) {
			return nil, err
		}

		if e, ok := r.cache.Get(key); ok && e.Synthetic {
			if cached, ok := e.Payload.([]model.TimePoint); ok {
				r.logger.Debug("reusing cached synthetic portfolio history", "timeframe", timeframe)
				return PointResult{Points: cached, Provenance: model.ProvenanceSynthetic}, nil
			}
		}

		r.logger.Warn("portfolio history fetch failed, generating synthetic series",
			"timeframe", timeframe,
			"error", err,
		)
		synthetic := SyntheticPortfolio(timeframe)
		r.cache.Put(key, synthetic, cache.ClassSynthetic, true)
		return PointResult{Points: synthetic, Provenance: model.ProvenanceSynthetic}, nil
	})
	if err != nil {
		return PointResult{}, err
	}
	return v.(PointResult), nil
}

// Invalidate drops any cached series for a symbol and timeframe so the next
// resolve hits the network.
func (r *Resolver) Invalidate(symbol string, timeframe model.Timeframe) {
	r.cache.Invalidate(cache.Key{Name: "historical", Symbol: symbol, Timeframe: timeframe})
}

// fetchContext bounds a fetch without inheriting the caller's cancellation.
// Resolves are shared across callers via singleflight, so the first caller
// going away must not abort a fetch others are waiting on.
func (r *Resolver) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
}
