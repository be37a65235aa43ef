// Package metrics exposes per-run Prometheus metrics for gdrive-mirror. A
// backup is a batch job, so the metrics are written once at the end of the
// run in the node_exporter textfile format rather than served over HTTP.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tonimelisma/gdrive-mirror/internal/mirror"
)

// Collector counts walker events into its own registry. It implements
// mirror.Observer and is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	itemsTotal       *prometheus.CounterVec
	bytesWritten     prometheus.Counter
	warningsTotal    *prometheus.CounterVec
	lastRunTimestamp prometheus.Gauge
	lastRunSuccess   prometheus.Gauge
	lastRunDuration  prometheus.Gauge
}

// New returns a Collector with every metric registered on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		itemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gdrive_mirror_items_total",
				Help: "Items processed in the last run, by decision and kind",
			},
			[]string{"decision", "kind"},
		),

		bytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gdrive_mirror_bytes_written_total",
				Help: "Bytes written to the destination in the last run",
			},
		),

		warningsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gdrive_mirror_warnings_total",
				Help: "Recoverable warnings in the last run, by kind",
			},
			[]string{"kind"},
		),

		lastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gdrive_mirror_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),

		lastRunSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gdrive_mirror_last_run_success",
				Help: "1 if the last run completed without a fatal error, 0 otherwise",
			},
		),

		lastRunDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gdrive_mirror_last_run_duration_seconds",
				Help: "Wall time of the last run in seconds",
			},
		),
	}
}

func (c *Collector) OnWarning(w mirror.Warning) {
	c.warningsTotal.WithLabelValues(w.Kind.String()).Inc()
}

func (c *Collector) OnAction(a mirror.Action) {
	c.itemsTotal.WithLabelValues(a.Decision.String(), a.Kind.String()).Inc()

	if a.Bytes > 0 {
		c.bytesWritten.Add(float64(a.Bytes))
	}
}

// Finish records the run outcome. finished is the completion time.
func (c *Collector) Finish(duration time.Duration, finished time.Time, runErr error) {
	c.lastRunTimestamp.Set(float64(finished.Unix()))
	c.lastRunDuration.Set(duration.Seconds())

	if runErr == nil {
		c.lastRunSuccess.Set(1)
	} else {
		c.lastRunSuccess.Set(0)
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
// The write is atomic, so a node_exporter scrape never sees a partial file.
func (c *Collector) WriteTextfile(path string) error {
	if path == "" {
		return errors.New("metrics: empty textfile path")
	}

	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", path, err)
	}

	return nil
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
