package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartfuel/internal/models"
)

const namespace = "smartfuel"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	guidanceGenerated *prometheus.CounterVec
	themeMatches      *prometheus.CounterVec
	guidanceDuration  prometheus.Histogram
	toolCalls         *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		guidanceGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "guidance",
				Name:      "generated_total",
				Help:      "Total number of guidance objects generated, by outcome.",
			},
			[]string{"outcome"},
		),

		themeMatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "guidance",
				Name:      "theme_matches_total",
				Help:      "Total number of times each theme matched.",
			},
			[]string{"theme"},
		),

		guidanceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "guidance",
				Name:      "duration_seconds",
				Help:      "Duration of guidance generation.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~200ms
			},
		),

		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tool",
				Name:      "calls_total",
				Help:      "Total number of tool calls, by tool and status.",
			},
			[]string{"tool", "status"},
		),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "status"},
		),
	}

	m.Registry.MustRegister(
		m.guidanceGenerated,
		m.themeMatches,
		m.guidanceDuration,
		m.toolCalls,
		m.httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	return m
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveGuidance records one generated guidance object.
func (m *Metrics) ObserveGuidance(g models.SmartFuelGuidance, duration time.Duration) {
	outcome := "matched"
	if len(g.ThemesDetected) == 0 {
		outcome = "fallback"
	}
	m.guidanceGenerated.WithLabelValues(outcome).Inc()
	for _, theme := range g.ThemesDetected {
		m.themeMatches.WithLabelValues(theme).Inc()
	}
	m.guidanceDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordToolCall(tool, status string) {
	if tool == "" {
		tool = "unknown"
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.httpRequests.WithLabelValues(strings.ToUpper(r.Method), strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
