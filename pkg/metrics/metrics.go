// Copyright 2025 Certen Protocol
//
// Metrics wires prometheus/client_golang counters and gauges for the
// admission pipeline and commitment state, served from a second
// http.ServeMux exactly as main.go stands up a distinct mux for its
// health endpoint alongside the API mux.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the node's Prometheus collectors.
type Metrics struct {
	TxnsAdmitted  prometheus.Counter
	TxnsRejected  *prometheus.CounterVec
	MempoolDepth  prometheus.Gauge
	TreeSize      prometheus.Gauge
	L1SafeHeight  prometheus.Gauge
	BlockHeight   prometheus.Gauge

	registry *prometheus.Registry
}

// New constructs a Metrics instance with its own isolated registry, so the
// metrics endpoint never exposes Go runtime internals the rest of the
// process doesn't intend to publish.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TxnsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollup_txns_admitted_total",
			Help: "Total number of transactions admitted into a finalized block.",
		}),
		TxnsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollup_txns_rejected_total",
			Help: "Total number of transactions rejected, labeled by reason.",
		}, []string{"reason"}),
		MempoolDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rollup_mempool_depth",
			Help: "Number of proofs currently held in the mempool.",
		}),
		TreeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rollup_tree_size",
			Help: "Number of leaves inserted into the commitment tree.",
		}),
		L1SafeHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rollup_l1_safe_height",
			Help: "Most recently observed L1 safe height used for mint reads.",
		}),
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rollup_block_height",
			Help: "Height of the latest finalized rollup block.",
		}),
		registry: reg,
	}

	reg.MustRegister(m.TxnsAdmitted, m.TxnsRejected, m.MempoolDepth, m.TreeSize, m.L1SafeHeight, m.BlockHeight)
	return m
}

// Handler returns the HTTP handler serving this instance's metrics in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
