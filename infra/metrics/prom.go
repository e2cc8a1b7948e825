package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kfrancois/fieldsync/core/metrics"
)

// Config defines the observability endpoints.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusAddr    string `json:"prometheus_addr"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9090"
	}
}

// PromSink records synchronization activity in Prometheus metrics.
type PromSink struct {
	fetches    *prometheus.CounterVec
	fetchTime  prometheus.Histogram
	feedEvents *prometheus.CounterVec
	jobs       prometheus.Gauge
}

// NewPromSink registers sync metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_fetches_total",
		Help: "Total number of schedule fetches",
	}, []string{"success"})
	fetchTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_fetch_seconds",
		Help:    "Round-trip time of schedule fetches",
		Buckets: prometheus.DefBuckets,
	})
	feedEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_events_total",
		Help: "Change-feed events by kind and outcome",
	}, []string{"kind", "outcome"})
	jobs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_jobs",
		Help: "Number of jobs currently held in the store",
	})

	if err := reg.Register(fetches); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			fetches = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(fetchTime); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			fetchTime = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(feedEvents); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			feedEvents = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(jobs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			jobs = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{fetches: fetches, fetchTime: fetchTime, feedEvents: feedEvents, jobs: jobs}, nil
}

// RecordFetch counts the fetch and observes its latency.
func (s *PromSink) RecordFetch(ev coremetrics.FetchEvent) error {
	s.fetches.WithLabelValues(strconv.FormatBool(ev.Err == nil)).Inc()
	s.fetchTime.Observe(ev.Latency.Seconds())
	return nil
}

// RecordFeedEvent counts the event by kind and outcome.
func (s *PromSink) RecordFeedEvent(ev coremetrics.FeedEvent) error {
	outcome := "ignored"
	switch {
	case ev.Applied:
		outcome = "applied"
	case ev.Resync:
		outcome = "resync"
	}
	s.feedEvents.WithLabelValues(ev.Kind, outcome).Inc()
	return nil
}

// RecordJobCount sets the job gauge.
func (s *PromSink) RecordJobCount(count int) error {
	s.jobs.Set(float64(count))
	return nil
}
