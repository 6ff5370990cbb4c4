// Package watchlist maintains the set of tradable symbols and their latest
// quotes, synced from the trading server and refreshed in the background.
package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/tradedeck/internal/model"
)

// SymbolAPI is the slice of the REST client the watchlist syncs from.
type SymbolAPI interface {
	GetSymbols(ctx context.Context, search string) ([]model.SymbolQuote, error)
}

// Config holds watchlist configuration.
type Config struct {
	ReconcileInterval  time.Duration
	InitialLoadTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval:  time.Minute,
		InitialLoadTimeout: 30 * time.Second,
	}
}

// Change describes one watchlist mutation.
type Change struct {
	Symbol    string
	EventType string // "added" or "updated"
	Quote     model.SymbolQuote
}

// Registry tracks symbol quotes. Safe for concurrent use.
type Registry struct {
	cfg    Config
	rest   SymbolAPI
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	quotes     map[string]model.SymbolQuote
	changes    chan Change
	lastSyncAt time.Time
}

// NewRegistry creates a watchlist Registry.
func NewRegistry(cfg Config, rest SymbolAPI, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:     cfg,
		rest:    rest,
		logger:  logger.With("component", "watchlist"),
		quotes:  make(map[string]model.SymbolQuote),
		changes: make(chan Change, 100),
	}
}

// Start performs the initial symbol sync (blocking, bounded by the configured
// timeout) and begins background reconciliation.
func (r *Registry) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(context.Background())

	syncCtx, cancel := context.WithTimeout(ctx, r.cfg.InitialLoadTimeout)
	defer cancel()
	if err := r.sync(syncCtx); err != nil {
		r.cancel()
		return fmt.Errorf("initial symbol sync: %w", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reconcileLoop()
	}()

	r.logger.Info("watchlist started", "symbols", r.Len())
	return nil
}

// Stop shuts the reconcile loop down, bounded by ctx.
func (r *Registry) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("watchlist stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Quotes returns every tracked quote, sorted by symbol.
func (r *Registry) Quotes() []model.SymbolQuote {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.SymbolQuote, 0, len(r.quotes))
	for _, q := range r.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Quote returns one symbol's latest quote.
func (r *Registry) Quote(symbol string) (model.SymbolQuote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.quotes[symbol]
	return q, ok
}

// Len returns the tracked symbol count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.quotes)
}

// SubscribeChanges returns the change channel. Changes are dropped, not
// blocked on, when the subscriber falls behind.
func (r *Registry) SubscribeChanges() <-chan Change {
	return r.changes
}

// UpdateFromTick folds a live price tick into the quote for its symbol, so
// the watchlist stays current between reconciles. Ticks for unknown symbols
// are ignored.
func (r *Registry) UpdateFromTick(symbol string, price float64) {
	if price <= 0 {
		return
	}

	r.mu.Lock()
	q, ok := r.quotes[symbol]
	if !ok || q.Price == price {
		r.mu.Unlock()
		return
	}
	q.Price = price
	r.quotes[symbol] = q
	r.mu.Unlock()

	r.notify(Change{Symbol: symbol, EventType: "updated", Quote: q})
}

// reconcileLoop periodically re-syncs with the server.
func (r *Registry) reconcileLoop() {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.sync(r.ctx); err != nil {
				r.logger.Warn("symbol reconcile failed", "error", err)
			}
		}
	}
}

// sync fetches the symbol list and folds it in, emitting a Change for every
// addition and every quote that moved.
func (r *Registry) sync(ctx context.Context) error {
	start := time.Now()

	fetched, err := r.rest.GetSymbols(ctx, "")
	if err != nil {
		return err
	}

	var added, updated int
	var notifications []Change

	r.mu.Lock()
	for _, q := range fetched {
		existing, ok := r.quotes[q.Symbol]
		if !ok {
			r.quotes[q.Symbol] = q
			notifications = append(notifications, Change{Symbol: q.Symbol, EventType: "added", Quote: q})
			added++
			continue
		}
		if existing != q {
			r.quotes[q.Symbol] = q
			notifications = append(notifications, Change{Symbol: q.Symbol, EventType: "updated", Quote: q})
			updated++
		}
	}
	r.lastSyncAt = time.Now()
	r.mu.Unlock()

	for _, c := range notifications {
		r.notify(c)
	}

	if added > 0 || updated > 0 {
		r.logger.Info("symbol sync found changes",
			"added", added,
			"updated", updated,
			"duration", time.Since(start),
		)
	} else {
		r.logger.Debug("symbol sync complete",
			"symbols", len(fetched),
			"duration", time.Since(start),
		)
	}
	return nil
}

func (r *Registry) notify(c Change) {
	select {
	case r.changes <- c:
	default:
		r.logger.Debug("change subscriber behind, dropping change", "symbol", c.Symbol)
	}
}
