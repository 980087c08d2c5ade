package metrics

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumevision",
			Name:      "tool_calls_total",
			Help:      "Total MCP tool calls by tool and result",
		},
		[]string{"tool", "result"},
	)

	toolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "resumevision",
			Name:      "tool_duration_seconds",
			Help:      "Duration of MCP tool calls by tool",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"tool"},
	)

	conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumevision",
			Name:      "conversions_total",
			Help:      "Document to screenshot conversions by route and result",
		},
		[]string{"route", "result"},
	)

	pdfPages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "resumevision",
			Name:      "pdf_pages",
			Help:      "Page count of exported PDFs",
			Buckets:   []float64{1, 2, 3, 5, 10},
		},
	)

	initOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(toolCalls, toolLatency, conversions, pdfPages)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// Serve exposes /metrics on addr until the server fails. It returns
// immediately; listener errors are logged.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	return srv
}

func ObserveTool(tool, result string, dur time.Duration) {
	toolCalls.WithLabelValues(tool, result).Inc()
	toolLatency.WithLabelValues(tool).Observe(dur.Seconds())
}

func IncConversion(route, result string) { conversions.WithLabelValues(route, result).Inc() }
func ObservePDFPages(n int)              { pdfPages.Observe(float64(n)) }

func ResultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
