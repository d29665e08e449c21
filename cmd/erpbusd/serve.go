package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/grupoatlas/erpbus/pkg/aggregator"
	"github.com/grupoatlas/erpbus/pkg/config"
	"github.com/grupoatlas/erpbus/pkg/eventbus"
	"github.com/grupoatlas/erpbus/pkg/log"
	"github.com/grupoatlas/erpbus/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the event bus daemon",
	Long: `Start the event relay, the last-event cache, and the HTTP endpoints
for metrics, health, dashboard and assistant context.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func runServe(parent context.Context, cfg config.Config) error {
	log.Init(cfg.LogConfig())
	logger := log.WithComponent("erpbusd")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := eventbus.NewMetrics(reg)

	bus := eventbus.New(cfg.BusConfig(),
		eventbus.WithLogger(log.WithComponent("eventbus")),
		eventbus.WithObserver(
			&eventbus.LoggingObserver{Logger: log.WithComponent("eventbus")},
			metrics.Observer(),
		),
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bus.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("bus close")
		}
	}()

	var agg *aggregator.Aggregator
	if cfg.Database.DSN != "" {
		st, err := store.Open(cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer st.Close()

		agg = aggregator.New(st, st, st,
			aggregator.WithLogger(log.WithComponent("aggregator")),
		)
		agg.AttachBus(bus)
		defer agg.Detach()
	} else {
		logger.Warn().Msg("no database configured, running bus-only")
	}

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           newHandler(reg, bus, agg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	bus.Publish(ctx, eventbus.EventSystemStarted, eventbus.Payload{
		"service": "erpbusd",
		"version": Version,
	})
	logger.Info().Bool("broker", bus.Stats().BrokerConnected).Msg("started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func newHandler(reg *prometheus.Registry, bus *eventbus.Bus, agg *aggregator.Aggregator) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"bus":   bus.HealthCheck(r.Context()),
			"stats": bus.Stats(),
		}
		if agg != nil {
			resp["aggregator"] = agg.HealthCheck(r.Context())
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if agg == nil {
			http.Error(w, "no database configured", http.StatusServiceUnavailable)
			return
		}
		var from, to time.Time
		if v := r.URL.Query().Get("from"); v != "" {
			from, _ = time.Parse("2006-01-02", v)
		}
		if v := r.URL.Query().Get("to"); v != "" {
			to, _ = time.Parse("2006-01-02", v)
		}
		writeJSON(w, http.StatusOK, agg.BuildDashboard(r.Context(), from, to))
	})

	mux.HandleFunc("/context", func(w http.ResponseWriter, r *http.Request) {
		if agg == nil {
			http.Error(w, "no database configured", http.StatusServiceUnavailable)
			return
		}
		intent := aggregator.ParseIntent(r.URL.Query().Get("intent"))
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}
		writeJSON(w, http.StatusOK, agg.BuildContext(r.Context(), intent, limit))
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
