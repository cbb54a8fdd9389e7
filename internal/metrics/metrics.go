// Package metrics exposes scan pipeline telemetry to Prometheus.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements the orchestrator's Observer with Prometheus collectors.
type Recorder struct {
	scans         *prometheus.CounterVec
	phaseFailures *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	score         prometheus.Histogram
	duration      prometheus.Histogram
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_scans_total",
			Help: "Finished scans by outcome",
		}, []string{"outcome"}),
		phaseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_phase_failures_total",
			Help: "Pipeline phase failures, split by whether they aborted the scan",
		}, []string{"phase", "fatal"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_provider_calls_total",
			Help: "Answer engine calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_scan_score",
			Help:    "Final visibility score of completed scans",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_scan_duration_seconds",
			Help:    "Wall time of scan runs",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		}),
	}
	reg.MustRegister(r.scans, r.phaseFailures, r.providerCalls, r.score, r.duration)
	return r
}

func (r *Recorder) PhaseFailed(phase string, fatal bool) {
	f := "false"
	if fatal {
		f = "true"
	}
	r.phaseFailures.WithLabelValues(phase, f).Inc()
}

func (r *Recorder) ProviderCall(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.providerCalls.WithLabelValues(provider, outcome).Inc()
}

func (r *Recorder) ScanFinished(outcome string, score int, elapsed time.Duration) {
	r.scans.WithLabelValues(outcome).Inc()
	r.duration.Observe(elapsed.Seconds())
	if outcome == "completed" {
		r.score.Observe(float64(score))
	}
}

var scanJobsDesc = prometheus.NewDesc(
	"beacon_scan_jobs",
	"Scan jobs by status",
	[]string{"status"},
	nil,
)

// JobCounter reports how many scan jobs are in each status.
type JobCounter interface {
	CountJobs(ctx context.Context) (map[string]int, error)
}

// JobCollector reads job counts from the store on each scrape.
type JobCollector struct {
	jobs JobCounter
}

func NewJobCollector(jobs JobCounter) *JobCollector { return &JobCollector{jobs: jobs} }

func (c *JobCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- scanJobsDesc
}

func (c *JobCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	counts, err := c.jobs.CountJobs(ctx)
	if err != nil {
		slog.Error("failed to collect scan job metrics", "error", err)
		return
	}
	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(scanJobsDesc, prometheus.GaugeValue, float64(n), status)
	}
}
