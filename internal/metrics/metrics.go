// Package metrics exposes ledger operation outcomes and router split totals
// as Prometheus collectors.
package metrics

import (
	"math/big"
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tipLedger/internal/model"
	"tipLedger/internal/router"
)

// Collector records ledger metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	opLatency   *prometheus.HistogramVec
	eventsTotal prometheus.Counter
	splitTotal  *prometheus.CounterVec
	lastSeq     prometheus.Gauge
	batches     *prometheus.CounterVec
}

// NewCollector creates a collector under namespace, "ledger" when empty.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "ledger"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operation",
			Name:      "total",
			Help:      "Executed operations by kind, status and error code",
		},
		[]string{"kind", "status", "code"},
	)

	c.opLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "operation",
			Name:      "duration_seconds",
			Help:      "Time spent executing an operation",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"kind"},
	)

	c.eventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "event",
			Name:      "emitted_total",
			Help:      "Event logs emitted by applied operations",
		},
	)

	c.splitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "split_amount_total",
			Help:      "Token base units routed per split part",
		},
		[]string{"part"},
	)

	c.lastSeq = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "operation",
			Name:      "last_seq",
			Help:      "Sequence number of the last executed operation",
		},
	)

	c.batches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "batches_total",
			Help:      "Replay batches flushed, by result",
		},
		[]string{"result"},
	)

	c.registry.MustRegister(
		c.operations,
		c.opLatency,
		c.eventsTotal,
		c.splitTotal,
		c.lastSeq,
		c.batches,
	)
	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveReceipt records one executed operation.
func (c *Collector) ObserveReceipt(receipt model.Receipt, elapsed time.Duration) {
	c.operations.WithLabelValues(receipt.Kind, receipt.Status, receipt.ErrorCode).Inc()
	c.opLatency.WithLabelValues(receipt.Kind).Observe(elapsed.Seconds())
	c.eventsTotal.Add(float64(len(receipt.Logs)))
	c.lastSeq.Set(float64(receipt.Seq))
}

// ObserveSplit adds the parts of an applied taxed transfer.
func (c *Collector) ObserveSplit(split router.Split) {
	c.splitTotal.WithLabelValues("burn").Add(toFloat(split.Burn))
	c.splitTotal.WithLabelValues("treasury").Add(toFloat(split.Treasury))
	c.splitTotal.WithLabelValues("reward").Add(toFloat(split.Reward))
	c.splitTotal.WithLabelValues("recipient").Add(toFloat(split.Recipient))
}

// RecordBatch counts a flushed replay batch.
func (c *Collector) RecordBatch(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.batches.WithLabelValues(result).Inc()
}

func toFloat(value *uint256.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value.ToBig()).Float64()
	return f
}
