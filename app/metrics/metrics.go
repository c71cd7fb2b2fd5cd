package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "event_comb"

// Metrics owns the collectors of one process. It uses its own registry so tests can
// create as many instances as they need.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	lastRunTS        *prometheus.GaugeVec
	sourceRuns       *prometheus.CounterVec
	sourceRecords    *prometheus.GaugeVec
	sourceLinks      *prometheus.GaugeVec
	eventsAdded      prometheus.Counter
	eventsUpdated    prometheus.Counter
	eventsTotal      prometheus.Gauge
	notifications    *prometheus.CounterVec
	mirrorSyncErrors prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Number of crawl runs by status",
	}, []string{"status"})
	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a crawl run",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 900},
	})
	m.lastRunTS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last finished run by status",
	}, []string{"status"})
	m.sourceRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_runs_total",
		Help:      "Number of source crawls by source and status",
	}, []string{"source", "status"})
	m.sourceRecords = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_records",
		Help:      "Records produced by a source in its last crawl",
	}, []string{"source"})
	m.sourceLinks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_links",
		Help:      "Raw links selected from a source in its last crawl",
	}, []string{"source"})
	m.eventsAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_added_total",
		Help:      "Events inserted into the collection",
	})
	m.eventsUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_updated_total",
		Help:      "Events overwritten in the collection",
	})
	m.eventsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events",
		Help:      "Size of the collection after the last merge",
	})
	m.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification attempts by result",
	}, []string{"result"})
	m.mirrorSyncErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mirror_sync_errors_total",
		Help:      "Failed SQLite mirror synchronisations",
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runsTotal, m.runDuration, m.lastRunTS,
		m.sourceRuns, m.sourceRecords, m.sourceLinks,
		m.eventsAdded, m.eventsUpdated, m.eventsTotal,
		m.notifications, m.mirrorSyncErrors,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveSource(source, status string, links, records int) {
	m.sourceRuns.WithLabelValues(source, status).Inc()
	m.sourceLinks.WithLabelValues(source).Set(float64(links))
	m.sourceRecords.WithLabelValues(source).Set(float64(records))
}

func (m *Metrics) ObserveMerge(added, updated, total int) {
	m.eventsAdded.Add(float64(added))
	m.eventsUpdated.Add(float64(updated))
	m.eventsTotal.Set(float64(total))
}

func (m *Metrics) ObserveRun(status string, duration time.Duration, finishedAt time.Time) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastRunTS.WithLabelValues(status).Set(float64(finishedAt.Unix()))
}

// ObserveNotification counts a notification attempt; sent is false when it was skipped.
func (m *Metrics) ObserveNotification(sent bool, err error) {
	switch {
	case err != nil:
		m.notifications.WithLabelValues("error").Inc()
	case sent:
		m.notifications.WithLabelValues("sent").Inc()
	default:
		m.notifications.WithLabelValues("skipped").Inc()
	}
}

func (m *Metrics) ObserveMirrorError() {
	m.mirrorSyncErrors.Inc()
}
