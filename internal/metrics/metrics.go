// Package metrics holds the Prometheus collectors of the storefront client
// state layer and of the reference backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "storefront"

// Client instruments the cache, the query layer and the mutation dispatcher.
// A nil *Client is valid and records nothing.
type Client struct {
	fetches       *prometheus.CounterVec
	dedup         *prometheus.CounterVec
	discarded     *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	mutations     *prometheus.CounterVec
}

func NewClient(reg prometheus.Registerer) *Client {
	m := &Client{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "fetch_total",
			Help:      "Gateway fetches issued by the query layer.",
		}, []string{"kind", "outcome"}),
		dedup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "dedup_total",
			Help:      "Reads that joined an in-flight fetch instead of issuing one.",
		}, []string{"kind"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "discarded_total",
			Help:      "Fetch results dropped because a newer fetch for the key had started.",
		}, []string{"kind"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Cache keys marked stale.",
		}, []string{"kind"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_total",
			Help:      "Mutations dispatched to the gateway.",
		}, []string{"mutation", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.dedup, m.discarded, m.invalidations, m.mutations)
	}
	return m
}

func (m *Client) Fetch(kind, outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(kind, outcome).Inc()
}

func (m *Client) Dedup(kind string) {
	if m == nil {
		return
	}
	m.dedup.WithLabelValues(kind).Inc()
}

func (m *Client) Discarded(kind string) {
	if m == nil {
		return
	}
	m.discarded.WithLabelValues(kind).Inc()
}

func (m *Client) Invalidated(kind string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(kind).Inc()
}

func (m *Client) Mutation(name, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(name, outcome).Inc()
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
