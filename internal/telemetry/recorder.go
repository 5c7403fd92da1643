// Package telemetry counts rollouts, latent draws and selection results on a
// private Prometheus registry. Batch runs have no scrape endpoint, so the
// registry is written out in the node-exporter textfile format when the run
// ends.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// #region recorder
// Recorder holds the run's collectors. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry *prometheus.Registry

	rollouts        *prometheus.CounterVec
	latents         *prometheus.CounterVec
	rolloutDuration *prometheus.HistogramVec
	bestFidelity    prometheus.Histogram
	clipsRendered   prometheus.Counter
}

// New builds a recorder on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rollouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svgeval_rollouts_total",
				Help: "Completed trajectory rollouts by sampling policy.",
			},
			[]string{"policy"},
		),
		latents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svgeval_latents_total",
				Help: "Latent samples drawn by source distribution.",
			},
			[]string{"source"},
		),
		rolloutDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "svgeval_rollout_duration_seconds",
				Help:    "Wall time of one rollout.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"policy"},
		),
		bestFidelity: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "svgeval_best_fidelity_db",
				Help:    "Mean PSNR of the selected best sample per clip.",
				Buckets: prometheus.LinearBuckets(10, 5, 8),
			},
		),
		clipsRendered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "svgeval_clips_rendered_total",
				Help: "Composed grids handed to the renderer.",
			},
		),
	}
	r.registry.MustRegister(r.rollouts, r.latents, r.rolloutDuration, r.bestFidelity, r.clipsRendered)
	return r
}

// #endregion recorder

// #region observe
// Rollout records one finished trajectory and its latent provenance counts.
func (r *Recorder) Rollout(policy string, d time.Duration, latents map[string]int) {
	if r == nil {
		return
	}
	r.rollouts.WithLabelValues(policy).Inc()
	r.rolloutDuration.WithLabelValues(policy).Observe(d.Seconds())
	for src, n := range latents {
		r.latents.WithLabelValues(src).Add(float64(n))
	}
}

// BestFidelity records the mean PSNR of a clip's selected sample.
func (r *Recorder) BestFidelity(db float64) {
	if r == nil {
		return
	}
	r.bestFidelity.Observe(db)
}

// ClipRendered counts one rendered grid.
func (r *Recorder) ClipRendered() {
	if r == nil {
		return
	}
	r.clipsRendered.Inc()
}

// #endregion observe

// #region export
// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all collectors to path in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

// #endregion export
