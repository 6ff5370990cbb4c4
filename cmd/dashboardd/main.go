package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/tradedeck/internal/api"
	"github.com/rickgao/tradedeck/internal/cache"
	"github.com/rickgao/tradedeck/internal/chart"
	"github.com/rickgao/tradedeck/internal/config"
	"github.com/rickgao/tradedeck/internal/model"
	"github.com/rickgao/tradedeck/internal/overlay"
	"github.com/rickgao/tradedeck/internal/push"
	"github.com/rickgao/tradedeck/internal/resolver"
	"github.com/rickgao/tradedeck/internal/scheduler"
	"github.com/rickgao/tradedeck/internal/series"
	"github.com/rickgao/tradedeck/internal/session"
	"github.com/rickgao/tradedeck/internal/version"
	"github.com/rickgao/tradedeck/internal/watchlist"
)

func main() {
	configPath := flag.String("config", "configs/dashboard.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting dashboardd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"api_url", cfg.Server.RestURL,
		"ws_url", cfg.Server.WSURL,
		"symbol", cfg.View.Symbol,
		"timeframe", cfg.View.Timeframe,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// REST client for the trading server
	apiClient := api.NewClient(
		cfg.Server.RestURL,
		cfg.Server.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Server.Timeout),
		api.WithRetries(cfg.Server.MaxRetries, 500*time.Millisecond),
	)

	// Data path: cache -> resolver -> series store
	dataCache := cache.New(cache.TTLs{
		Quote:     cfg.Cache.QuoteTTL,
		History:   cfg.Cache.HistoryTTL,
		Synthetic: cfg.Cache.SyntheticTTL,
	}, logger)
	dataResolver := resolver.New(apiClient, dataCache, logger)
	store := series.NewStore(cfg.Series.MaxPoints, logger)

	// Chart: browser stream hub with snapshot fallback
	hub := chart.NewHub(logger)
	go hub.Run()
	defer hub.Close()

	adapter := chart.NewAdapter(chart.NewFactory(hub), chart.KindSnapshot, logger)
	if err := adapter.Init(cfg.Chart.Backend); err != nil {
		logger.Error("failed to initialize chart", "error", err)
		os.Exit(1)
	}
	defer adapter.Destroy()

	overlayMgr := overlay.NewManager(apiClient, adapter, logger)

	// Symbol watchlist: initial sync is best-effort; the dashboard can run
	// against a server that is still coming up.
	watch := watchlist.NewRegistry(watchlist.DefaultConfig(), apiClient, logger)
	if err := watch.Start(ctx); err != nil {
		logger.Warn("watchlist start failed, symbol list unavailable", "error", err)
		watch = nil
	}

	sched := scheduler.New(logger)
	sched.Start()

	// The feed's handlers close over the session, assigned below before any
	// event can flow.
	var sess *session.Session
	feedCfg := push.FeedConfig{
		URL:               cfg.Server.WSURL,
		APIKey:            cfg.Server.APIKey,
		PingTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Second,
		BufferSize:        cfg.Push.BufferSize,
		ReconnectBaseWait: cfg.Push.ReconnectBaseDelay,
		ReconnectMaxWait:  cfg.Push.ReconnectMaxDelay,
	}
	feed := push.NewFeed(feedCfg, push.Handlers{
		MarketData: func(md push.MarketData) {
			sess.HandleMarketData(md)
			if watch != nil {
				watch.UpdateFromTick(md.Symbol, md.Price)
			}
		},
		TradeUpdate: func(tu push.TradeUpdate) { sess.HandleTradeUpdate(tu) },
		OrderUpdate: func(ou push.OrderUpdate) { sess.HandleOrderUpdate(ou) },
	}, logger)

	sess = session.New(session.Config{
		DashboardRefresh: cfg.Refresh.Dashboard,
		ChartRefresh:     cfg.Refresh.Chart,
		DemoTick:         cfg.Refresh.DemoTick,
		InitialView: model.Selection{
			Symbol:    cfg.View.Symbol,
			Timeframe: cfg.View.Timeframe,
		},
	}, session.Deps{
		Client:    apiClient,
		Resolver:  dataResolver,
		Store:     store,
		Scheduler: sched,
		Feed:      feed,
		Chart:     adapter,
		Overlay:   overlayMgr,
	}, logger)

	// HTTP surface: health, dashboard snapshot, view switching, chart stream
	httpServer := &http.Server{
		Addr:    cfg.Listen.Addr,
		Handler: createHandler(sess, apiClient, feed, adapter, store, hub, watch, logger),
	}
	go func() {
		logger.Info("starting http server", "addr", cfg.Listen.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	if err := feed.Start(ctx); err != nil {
		logger.Error("failed to start push feed", "error", err)
		os.Exit(1)
	}
	if err := sess.Start(ctx); err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	logger.Info("dashboardd running",
		"health_url", "http://localhost"+cfg.Listen.Addr+"/health",
	)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	httpServer.Shutdown(shutdownCtx)
	if err := sess.Stop(shutdownCtx); err != nil {
		logger.Warn("session shutdown", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler shutdown", "error", err)
	}
	if err := feed.Stop(shutdownCtx); err != nil {
		logger.Warn("feed shutdown", "error", err)
	}
	if watch != nil {
		if err := watch.Stop(shutdownCtx); err != nil {
			logger.Warn("watchlist shutdown", "error", err)
		}
	}

	logger.Info("dashboardd stopped")
}

// createHandler builds the HTTP surface.
func createHandler(sess *session.Session, client *api.Client, feed *push.Feed, adapter *chart.Adapter, store *series.Store, hub *chart.Hub, watch *watchlist.Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		snap := sess.Snapshot()
		stats := store.Stats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		health.Components["feed"] = map[string]any{
			"connected": feed.Connected(),
			"symbol":    feed.Symbol(),
		}
		if !feed.Connected() {
			health.Status = "degraded"
		}

		health.Components["chart"] = map[string]any{
			"state": adapter.State().String(),
			"kind":  adapter.Kind(),
		}
		if adapter.State() != chart.StateReady {
			health.Status = "degraded"
		}

		health.Components["series"] = map[string]any{
			"appends":  stats.Appends,
			"rejected": stats.Rejected,
		}
		health.Components["view"] = map[string]any{
			"symbol":     snap.View.Symbol,
			"timeframe":  snap.View.Timeframe,
			"provenance": snap.Provenance,
		}
		if snap.CredentialsRequired {
			health.Status = "degraded"
			health.Components["credentials"] = "required"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sess.Snapshot())
	})

	mux.HandleFunc("/api/view", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Symbol    string          `json:"symbol"`
			Timeframe model.Timeframe `json:"timeframe"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := sess.SetView(req.Symbol, req.Timeframe); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/api/symbols", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if watch == nil {
			json.NewEncoder(w).Encode([]model.SymbolQuote{})
			return
		}
		json.NewEncoder(w).Encode(watch.Quotes())
	})

	// Trading engine control, proxied to the server.
	mux.HandleFunc("GET /api/trading/status", func(w http.ResponseWriter, r *http.Request) {
		trading, err := client.GetTradingStatus(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"is_trading": trading})
	})
	mux.HandleFunc("POST /api/trading/start", proxyAction(func(r *http.Request) error {
		return client.StartTrading(r.Context())
	}))
	mux.HandleFunc("POST /api/trading/stop", proxyAction(func(r *http.Request) error {
		return client.StopTrading(r.Context())
	}))

	// Strategy management.
	mux.HandleFunc("GET /api/strategies", func(w http.ResponseWriter, r *http.Request) {
		strategies, err := client.GetStrategies(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(strategies)
	})
	mux.HandleFunc("POST /api/strategies", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateStrategyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := client.CreateStrategy(r.Context(), req); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("POST /api/strategies/{id}/toggle", proxyAction(func(r *http.Request) error {
		return client.ToggleStrategy(r.Context(), r.PathValue("id"))
	}))
	mux.HandleFunc("DELETE /api/strategies/{id}", proxyAction(func(r *http.Request) error {
		return client.DeleteStrategy(r.Context(), r.PathValue("id"))
	}))

	// Settings.
	mux.HandleFunc("GET /api/settings", func(w http.ResponseWriter, r *http.Request) {
		settings, err := client.GetSettings(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(settings)
	})
	mux.HandleFunc("POST /api/settings", proxySettings(client.UpdateSettings))
	mux.HandleFunc("POST /api/settings/test", proxySettings(client.TestCredentials))

	// Browsers attach here for the live draw-op stream.
	mux.Handle("/ws/chart", hub)

	return mux
}

// proxyAction wraps a no-body server call as an HTTP handler.
func proxyAction(call func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := call(r); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// proxySettings wraps a settings-carrying server call as an HTTP handler.
func proxySettings(call func(ctx context.Context, s api.Settings) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var s api.Settings
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := call(r.Context(), s); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
