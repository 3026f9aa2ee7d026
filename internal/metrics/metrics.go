// Package metrics exposes booking admission telemetry to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements application.Observer on its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	admissions    prometheus.Counter
	rejections    *prometheus.CounterVec
	notifyFailed  prometheus.Counter
	admitDuration prometheus.Histogram
}

// NewRecorder builds a recorder with Go runtime and process collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		admissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "admissions_total",
			Help:      "Reservations admitted by the capacity guard.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "rejections_total",
			Help:      "Booking requests refused, by reason.",
		}, []string{"reason"}),
		notifyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "notification_failures_total",
			Help:      "Confirmation dispatches that failed.",
		}),
		admitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Name:      "admission_duration_seconds",
			Help:      "Time spent inside the capacity guard for admitted reservations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	r.registry.MustRegister(
		r.admissions,
		r.rejections,
		r.notifyFailed,
		r.admitDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveAdmission counts an admitted reservation.
func (r *Recorder) ObserveAdmission(d time.Duration) {
	r.admissions.Inc()
	r.admitDuration.Observe(d.Seconds())
}

// ObserveRejection counts a refused request.
func (r *Recorder) ObserveRejection(reason string) {
	r.rejections.WithLabelValues(reason).Inc()
}

// ObserveNotificationFailure counts a failed confirmation.
func (r *Recorder) ObserveNotificationFailure() {
	r.notifyFailed.Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
