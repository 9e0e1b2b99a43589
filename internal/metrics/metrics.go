// Package metrics provides Prometheus instrumentation for price resolution.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PriceCacheHits counts tickers served from a valid cache entry.
	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_tracker_price_cache_hits_total",
		Help: "Tickers resolved from a fresh cache entry",
	})

	// PriceCacheMisses counts tickers that had to be fetched upstream.
	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_tracker_price_cache_misses_total",
		Help: "Tickers missing or stale in the cache",
	})

	// PriceFetches counts upstream fetches partitioned by result.
	PriceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_tracker_price_fetches_total",
		Help: "Upstream price fetches",
	}, []string{"result"})

	PriceFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_tracker_price_fetch_duration_seconds",
		Help:    "Upstream price fetch latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// PriceRefreshCycles counts background refresh runs by result.
	PriceRefreshCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_tracker_price_refresh_cycles_total",
		Help: "Background price refresh cycles",
	}, []string{"result"})

	// CachedTickers tracks the number of tickers held in the price cache,
	// stale entries included.
	CachedTickers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stock_tracker_cached_tickers",
		Help: "Tickers present in the price cache",
	})
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

type Server struct {
	srv *http.Server
}

// NewServer exposes Handler on addr under /metrics.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
}

func (s *Server) Start() {
	go func() {
		err := s.srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.String("err", err.Error()))
		}
	}()
	slog.Info("metrics server started", slog.String("addr", s.srv.Addr))
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("err", err.Error()))
	}
}
