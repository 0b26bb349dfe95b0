// Package metricsx wires Prometheus collectors for the server and client, following
// go-server-3/internal/metrics's Registry pattern.
package metricsx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's Prometheus collectors.
type Registry struct {
	ClientsJoined      prometheus.Gauge
	RequestsEnqueued   prometheus.Counter
	RequestsDequeued   prometheus.Counter
	ResponsesPublished prometheus.Counter
	ResponsesDelivered prometheus.Counter
	ResponsesDropped   prometheus.Counter
	RequestRingDepth   prometheus.Gauge
}

// NewRegistry creates and registers all collectors against the default
// Prometheus registry.
func NewRegistry() *Registry {
	return &Registry{
		ClientsJoined: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "shmhash_clients_joined",
			Help: "Number of clients currently joined to the broadcast ring.",
		}),
		RequestsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shmhash_requests_enqueued_total",
			Help: "Total requests enqueued onto the request ring.",
		}),
		RequestsDequeued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shmhash_requests_dequeued_total",
			Help: "Total requests dequeued and executed by a worker.",
		}),
		ResponsesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shmhash_responses_published_total",
			Help: "Total responses published to the broadcast ring.",
		}),
		ResponsesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shmhash_responses_delivered_total",
			Help: "Total responses forwarded to a client's main loop.",
		}),
		ResponsesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shmhash_responses_dropped_total",
			Help: "Total responses dropped because no client was joined.",
		}),
		RequestRingDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "shmhash_request_ring_depth",
			Help: "Current occupancy of the request ring.",
		}),
	}
}

// Handler exposes the registered collectors over HTTP.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
