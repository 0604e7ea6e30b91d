package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"
)

const jobName = "rileybot"

// Metrics holds the bot's counters in its own registry, so tests and
// parallel instances never collide on the global one.
type Metrics struct {
	registry           *prometheus.Registry
	cycles             *prometheus.CounterVec
	generationAttempts prometheus.Counter
	duplicatesRejected prometheus.Counter
	cycleDuration      prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rileybot_cycles_total",
				Help: "Total number of posting cycles, partitioned by outcome.",
			},
			[]string{"outcome"},
		),
		generationAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rileybot_generation_attempts_total",
				Help: "Total number of calls to the text generation provider.",
			},
		),
		duplicatesRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rileybot_duplicates_rejected_total",
				Help: "Total number of candidates rejected as too similar to a recent post.",
			},
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rileybot_cycle_duration_seconds",
				Help:    "Wall time of a posting cycle.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
	}
}

func (m *Metrics) CycleFinished(outcome string, d time.Duration) {
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) GenerationAttempt() {
	m.generationAttempts.Inc()
}

func (m *Metrics) DuplicateRejected() {
	m.duplicatesRejected.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push sends the current values to a Pushgateway, grouped by host and pid.
// One-shot runs use it since nothing is around to be scraped.
func (m *Metrics) Push(ctx context.Context, url string) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	pusher := push.New(url, jobName).Gatherer(m.registry).Grouping("instance", instanceID)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("could not push metrics to Pushgateway: %w", err)
	}
	log.Debug().Str("url", url).Str("instance", instanceID).Msg("Metrics pushed")
	return nil
}
