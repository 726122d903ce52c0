// Package metrics provides Prometheus metrics for the serial bridge and watchdog.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "loragate"

// Registry holds all Prometheus metrics.
type Registry struct {
	reg *prometheus.Registry

	// Inbound command lines
	LinesReceived   prometheus.Counter
	LinesDispatched prometheus.Counter
	LinesFailed     prometheus.Counter
	LinesDropped    *prometheus.CounterVec
	IngressOverruns prometheus.Counter

	// Outbound reply lines
	RepliesSent      prometheus.Counter
	RepliesDropped   prometheus.Counter
	ReplyWriteErrors prometheus.Counter
	ReplyQueueDepth  prometheus.Gauge

	// MAC events by kind
	EventsTotal *prometheus.CounterVec
}

// New creates a registry backed by a fresh prometheus.Registry
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{reg: reg}

	r.LinesReceived = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lines_received_total",
		Help:      "Total number of command lines assembled from serial input",
	})
	r.LinesDispatched = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lines_dispatched_total",
		Help:      "Total number of command lines executed successfully",
	})
	r.LinesFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lines_failed_total",
		Help:      "Total number of command lines rejected by the dispatcher",
	})
	r.LinesDropped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lines_dropped_total",
		Help:      "Total number of command lines discarded before dispatch",
	}, []string{"reason"})
	r.IngressOverruns = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingress_overruns_total",
		Help:      "Total number of times the receive ring overflowed",
	})

	r.RepliesSent = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_sent_total",
		Help:      "Total number of reply lines written to the host",
	})
	r.RepliesDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_dropped_total",
		Help:      "Total number of reply lines dropped because the queue was full",
	})
	r.ReplyWriteErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reply_write_errors_total",
		Help:      "Total number of failed serial writes",
	})
	r.ReplyQueueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reply_queue_depth",
		Help:      "Number of reply lines waiting to be written",
	})

	r.EventsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Total number of MAC events by kind",
	}, []string{"kind"})

	return r
}

// Gatherer returns the underlying registry for exposition
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RegisterWatchdog exposes the watchdog reload count and armed state
func (r *Registry) RegisterWatchdog(reloads func() uint64, armed func() bool) {
	factory := promauto.With(r.reg)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watchdog_reloads_total",
		Help:      "Total number of watchdog reloads",
	}, func() float64 { return float64(reloads()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "watchdog_armed",
		Help:      "1 when the hardware watchdog is armed",
	}, func() float64 {
		if armed() {
			return 1
		}
		return 0
	})
}

// RegisterDevices exposes the size of the device table
func (r *Registry) RegisterDevices(count func() int) {
	promauto.With(r.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "devices",
		Help:      "Number of nodes in the device table",
	}, func() float64 { return float64(count()) })
}

// IncrementEvent counts one MAC event of the given kind
func (r *Registry) IncrementEvent(kind string) {
	r.EventsTotal.WithLabelValues(kind).Inc()
}

// IncrementLinesDropped counts a discarded command line
func (r *Registry) IncrementLinesDropped(reason string) {
	r.LinesDropped.WithLabelValues(reason).Inc()
}
