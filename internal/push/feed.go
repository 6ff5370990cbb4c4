package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Feed owns the single push connection to the trading server. At most one
// symbol is subscribed at a time; events for any other symbol are dropped at
// the door. The feed reconnects with exponential backoff and re-subscribes
// the current symbol after every reconnect.
type Feed struct {
	cfg      FeedConfig
	logger   *slog.Logger
	handlers Handlers

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	conn    *conn
	symbol  string
	running bool

	delivered    atomic.Int64
	droppedStale atomic.Int64
}

// NewFeed creates a Feed. Events are dispatched to handlers after Start.
func NewFeed(cfg FeedConfig, handlers Handlers, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		cfg:      cfg,
		logger:   logger.With("component", "push"),
		handlers: handlers,
	}
}

// Start connects and begins dispatching events. A failed initial dial is not
// fatal: the feed keeps retrying with backoff until Stop.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("feed already started")
	}
	f.running = true
	f.ctx, f.cancel = context.WithCancel(context.Background())
	f.mu.Unlock()

	c := newConn(f.cfg, f.logger)
	if err := c.connect(ctx); err != nil {
		f.logger.Warn("initial connect failed, will retry", "error", err)
		c.close()
		c = nil
	}

	f.mu.Lock()
	f.conn = c
	f.mu.Unlock()

	if c != nil {
		f.resubscribe()
	}

	f.wg.Add(1)
	go f.run()

	f.logger.Info("push feed started", "url", f.cfg.URL)
	return nil
}

// Stop closes the connection and waits, bounded by ctx, for the dispatch
// goroutine to exit.
func (f *Feed) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	c := f.conn
	f.mu.Unlock()

	f.cancel()
	if c != nil {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.logger.Info("push feed stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for feed shutdown: %w", ctx.Err())
	}
}

// SubscribeOnly makes symbol the feed's one subscription: any previous
// subscription is dropped first (unsubscribe_all), so two subscriptions can
// never be live at once. Safe to call while disconnected; the subscription is
// replayed on reconnect.
func (f *Feed) SubscribeOnly(symbol string) error {
	f.mu.Lock()
	f.symbol = symbol
	c := f.conn
	f.mu.Unlock()

	if c == nil {
		return nil
	}
	if err := f.sendRequest(c, request{Event: "unsubscribe_all"}); err != nil {
		return fmt.Errorf("unsubscribing previous symbol: %w", err)
	}
	if symbol == "" {
		return nil
	}
	if err := f.sendRequest(c, request{Event: "subscribe", Symbol: symbol}); err != nil {
		return fmt.Errorf("subscribing %s: %w", symbol, err)
	}

	f.logger.Info("subscribed", "symbol", symbol)
	return nil
}

// Symbol returns the currently-subscribed symbol.
func (f *Feed) Symbol() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.symbol
}

// Connected reports whether the feed currently has a live connection.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn != nil && f.conn.connectedNow()
}

// Stats returns delivered and dropped-stale event counts.
func (f *Feed) Stats() (delivered, droppedStale int64) {
	return f.delivered.Load(), f.droppedStale.Load()
}

func (f *Feed) sendRequest(c *conn, req request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return c.send(data)
}

// run dispatches messages and drives reconnection. One goroutine for the
// feed's lifetime.
func (f *Feed) run() {
	defer f.wg.Done()

	for {
		f.mu.Lock()
		c := f.conn
		f.mu.Unlock()

		if c == nil {
			if !f.reconnect() {
				return
			}
			continue
		}

		select {
		case <-f.ctx.Done():
			c.close()
			return
		case data := <-c.messages:
			f.dispatch(data)
		case err := <-c.errors:
			f.logger.Warn("connection lost", "error", err)
			if !f.reconnect() {
				return
			}
		}
	}
}

// reconnect replaces the connection, waiting with exponential backoff between
// attempts. Returns false when the feed is shutting down.
func (f *Feed) reconnect() bool {
	wait := f.cfg.ReconnectBaseWait

	for {
		select {
		case <-f.ctx.Done():
			return false
		case <-time.After(wait):
		}

		f.logger.Info("attempting reconnection")

		f.mu.Lock()
		if f.conn != nil {
			f.conn.close()
		}
		c := newConn(f.cfg, f.logger)
		f.conn = c
		f.mu.Unlock()

		if err := c.connect(f.ctx); err != nil {
			f.logger.Warn("reconnection failed", "error", err)
			wait *= 2
			if wait > f.cfg.ReconnectMaxWait {
				wait = f.cfg.ReconnectMaxWait
			}
			continue
		}

		f.logger.Info("reconnected")

		if err := f.resubscribe(); err != nil {
			f.logger.Warn("re-subscribe after reconnect failed", "error", err)
		}
		return true
	}
}

func (f *Feed) resubscribe() error {
	f.mu.Lock()
	symbol := f.symbol
	c := f.conn
	f.mu.Unlock()

	if c == nil || symbol == "" {
		return nil
	}
	if err := f.sendRequest(c, request{Event: "subscribe", Symbol: symbol}); err != nil {
		return err
	}
	f.logger.Info("re-subscribed", "symbol", symbol)
	return nil
}

func (f *Feed) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.logger.Debug("unparseable message", "error", err)
		return
	}

	switch env.Event {
	case eventMarketData:
		var md MarketData
		if err := json.Unmarshal(env.Data, &md); err != nil {
			f.logger.Debug("bad market_data payload", "error", err)
			return
		}
		// A tick for a symbol we no longer view races the subscription switch.
		if md.Symbol != f.Symbol() {
			f.droppedStale.Add(1)
			f.logger.Debug("dropping tick for unsubscribed symbol", "symbol", md.Symbol)
			return
		}
		if md.Timestamp == 0 {
			md.Timestamp = time.Now().UnixMilli()
		}
		if f.handlers.MarketData != nil {
			f.delivered.Add(1)
			f.handlers.MarketData(md)
		}

	case eventTradeUpdate:
		var tu TradeUpdate
		if err := json.Unmarshal(env.Data, &tu); err != nil {
			f.logger.Debug("bad trade_update payload", "error", err)
			return
		}
		if f.handlers.TradeUpdate != nil {
			f.delivered.Add(1)
			f.handlers.TradeUpdate(tu)
		}

	case eventOrderUpdate:
		var ou OrderUpdate
		if err := json.Unmarshal(env.Data, &ou); err != nil {
			f.logger.Debug("bad order_update payload", "error", err)
			return
		}
		if f.handlers.OrderUpdate != nil {
			f.delivered.Add(1)
			f.handlers.OrderUpdate(ou)
		}

	default:
		f.logger.Debug("unknown event", "event", env.Event)
	}
}

func (c *conn) connectedNow() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
