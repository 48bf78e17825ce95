// Package metrics exposes bot counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records message handling. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	gatherer prometheus.Gatherer
	messages *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	notices  *prometheus.CounterVec
}

// New registers the bot metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgetbuddy",
			Name:      "messages_total",
			Help:      "Inbound messages handled, by the flow active when they arrived.",
		}, []string{"flow"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgetbuddy",
			Name:      "errors_total",
			Help:      "Errors caught at the dispatcher, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "budgetbuddy",
			Name:      "turn_duration_seconds",
			Help:      "Time to handle one inbound message.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow"}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgetbuddy",
			Name:      "outbound_total",
			Help:      "Outbound messages, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.messages, m.errors, m.duration, m.notices,
		prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return m
}

// ObserveTurn records one handled message.
func (m *Metrics) ObserveTurn(flow string, took time.Duration) {
	if m == nil {
		return
	}
	if flow == "" {
		flow = "none"
	}
	m.messages.WithLabelValues(flow).Inc()
	m.duration.WithLabelValues(flow).Observe(took.Seconds())
}

// CountError records one caught error.
func (m *Metrics) CountError(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

// CountSend records one outbound message.
func (m *Metrics) CountSend(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.notices.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics listener: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
