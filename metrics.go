package smartedit

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method then does nothing.
type Metrics struct {
	registry    *prometheus.Registry
	commands    *prometheus.CounterVec
	actions     *prometheus.CounterVec
	completions *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartedit",
			Name:      "commands_total",
			Help:      "Commands processed, by history label.",
		}, []string{"label"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartedit",
			Name:      "actions_total",
			Help:      "File actions by outcome.",
		}, []string{"outcome"}),
		completions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smartedit",
			Name:      "completion_seconds",
			Help:      "AI gateway latency.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.commands, m.actions, m.completions)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeCompletion(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.completions.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) observeResult(label string, res Result) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(label).Inc()
	m.actions.WithLabelValues("applied").Add(float64(len(res.FilesAffected)))
	m.actions.WithLabelValues("rejected").Add(float64(len(res.Rejected)))
	m.actions.WithLabelValues("failed").Add(float64(len(res.Failed)))
}
