package nft

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the app's Prometheus collectors
type Metrics struct {
	txs         *prometheus.CounterVec
	sales       *prometheus.CounterVec
	height      prometheus.Gauge
	blockTxs    prometheus.Histogram
	mempoolSize prometheus.Gauge
}

// NewMetrics registers the collectors with reg. Each App gets its own
// registry so tests can build several.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hypermarket_txs_total",
			Help: "Executed transactions by action and result code.",
		}, []string{"action", "code"}),
		sales: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hypermarket_sales_total",
			Help: "Completed settlements by kind.",
		}, []string{"kind"}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hypermarket_block_height",
			Help: "Last executed block height.",
		}),
		blockTxs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hypermarket_block_txs",
			Help:    "Transactions per executed block.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		mempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hypermarket_mempool_size",
			Help: "Pending transactions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.txs, m.sales, m.height, m.blockTxs, m.mempoolSize)
	}
	return m
}

func (m *Metrics) observeTx(action string, code uint32) {
	if action == "" {
		action = "unknown"
	}
	m.txs.WithLabelValues(action, strconv.FormatUint(uint64(code), 10)).Inc()
}
