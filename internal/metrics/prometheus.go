package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector adapts a Registry into a prometheus.Collector so the
// daemon can expose it over promhttp.Handler() without the rest of the
// library knowing Prometheus exists (spec.md §4.9 counters stay the source
// of truth; this is read-only translation on Collect).
type PrometheusCollector struct {
	registry *Registry

	connectAttempts  *prometheus.Desc
	connectSuccesses *prometheus.Desc
	activeConns      *prometheus.Desc
	disconnections   *prometheus.Desc
	errorTotal       *prometheus.Desc
	validationTotal  *prometheus.Desc
}

// NewPrometheusCollector wraps r for registration with a prometheus.Registerer.
func NewPrometheusCollector(r *Registry) *PrometheusCollector {
	return &PrometheusCollector{
		registry: r,
		connectAttempts: prometheus.NewDesc(
			"mqttpool_connect_attempts_total", "Total connection attempts.", nil, nil),
		connectSuccesses: prometheus.NewDesc(
			"mqttpool_connect_successes_total", "Total successful connections.", nil, nil),
		activeConns: prometheus.NewDesc(
			"mqttpool_active_connections", "Currently active connections.", nil, nil),
		disconnections: prometheus.NewDesc(
			"mqttpool_disconnections_total", "Total disconnections.", nil, nil),
		errorTotal: prometheus.NewDesc(
			"mqttpool_errors_total", "Total errors by category and subject.",
			[]string{"category", "subject"}, nil),
		validationTotal: prometheus.NewDesc(
			"mqttpool_validation_total", "Validation outcomes by point and result.",
			[]string{"point", "result"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectAttempts
	ch <- c.connectSuccesses
	ch <- c.activeConns
	ch <- c.disconnections
	ch <- c.errorTotal
	ch <- c.validationTotal
}

// Collect implements prometheus.Collector, snapshotting the Registry's
// atomic counters and maps on every scrape.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	conn := c.registry.Connection
	ch <- prometheus.MustNewConstMetric(c.connectAttempts, prometheus.CounterValue,
		float64(conn.ConnectAttempts.Load()))
	ch <- prometheus.MustNewConstMetric(c.connectSuccesses, prometheus.CounterValue,
		float64(conn.ConnectSuccesses.Load()))
	ch <- prometheus.MustNewConstMetric(c.activeConns, prometheus.GaugeValue,
		float64(conn.ActiveConnections.Load()))
	ch <- prometheus.MustNewConstMetric(c.disconnections, prometheus.CounterValue,
		float64(conn.Disconnections.Load()))

	for _, cat := range []ErrorCategory{
		CategoryConnect, CategoryDisconnectError, CategoryPublish,
		CategorySubscribe, CategoryValidation, CategoryProtocol,
	} {
		for _, subject := range c.registry.Error.subjects(cat) {
			ch <- prometheus.MustNewConstMetric(c.errorTotal, prometheus.CounterValue,
				float64(c.registry.Error.Count(cat, subject)), string(cat), subject)
		}
	}

	for point, entry := range c.registry.Validation.snapshot() {
		ch <- prometheus.MustNewConstMetric(c.validationTotal, prometheus.CounterValue,
			float64(entry.Successes), string(point), "success")
		ch <- prometheus.MustNewConstMetric(c.validationTotal, prometheus.CounterValue,
			float64(entry.Failures), string(point), "failure")
	}
}
