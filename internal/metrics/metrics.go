// Package metrics holds the Prometheus collectors shared by the API client,
// the exchange-rate cache and the rate watcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gastos"

// Collectors groups every metric the application exports.
type Collectors struct {
	APIRequests     *prometheus.CounterVec
	APILatency      *prometheus.HistogramVec
	RateFetches     *prometheus.CounterVec
	RateState       *prometheus.GaugeVec
	EventsPublished *prometheus.CounterVec
	ResumeCache     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which keeps tests free of global state.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Backend API requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		APILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		RateFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange_rate",
			Name:      "fetches_total",
			Help:      "Exchange-rate fetches by result.",
		}, []string{"result"}),
		RateState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "exchange_rate",
			Name:      "state",
			Help:      "1 for the current exchange-rate cache state, 0 otherwise.",
		}, []string{"state"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Record events published by type and outcome.",
		}, []string{"type", "outcome"}),
		ResumeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resume_cache",
			Name:      "lookups_total",
			Help:      "Expense resume cache lookups by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(c.APIRequests, c.APILatency, c.RateFetches, c.RateState, c.EventsPublished, c.ResumeCache)
	}
	return c
}

// SetRateState marks state as the only active exchange-rate state.
func (c *Collectors) SetRateState(state string, all []string) {
	if c == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		c.RateState.WithLabelValues(s).Set(v)
	}
}
