package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the service's Prometheus collectors. It satisfies the
// observer interfaces of the workspace, presence and invitation services.
//
// Metrics:
//   - eastask_workspace_owner_reconcile_total{outcome}
//   - eastask_presence_updates_total{outcome}
//   - eastask_invitations_total{transition}
//   - eastask_http_request_duration_seconds{method,route,status}
type Metrics struct {
	OwnerReconcileTotal *prometheus.CounterVec
	PresenceTotal       *prometheus.CounterVec
	InvitationsTotal    *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New registers the collectors on first use and returns the shared instance.
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			OwnerReconcileTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eastask_workspace_owner_reconcile_total",
					Help: "Owner membership reconciliation results after workspace creation",
				},
				[]string{"outcome"}, // confirmed, fallback_inserted, failed
			),
			PresenceTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eastask_presence_updates_total",
					Help: "Presence updates by admission outcome",
				},
				[]string{"outcome"},
			),
			InvitationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eastask_invitations_total",
					Help: "Invitation state transitions",
				},
				[]string{"transition"},
			),
			HTTPDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "eastask_http_request_duration_seconds",
					Help:    "HTTP request latency by route pattern",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route", "status"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) ObserveOwnerReconcile(outcome string) {
	m.OwnerReconcileTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePresence(outcome string) {
	m.PresenceTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveInvitation(transition string) {
	m.InvitationsTotal.WithLabelValues(transition).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
