// Package metrics exposes the running counters of a transfer as Prometheus
// metrics, collected on demand rather than pushed, the way the wider
// example corpus instruments live sockets.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Transfer tracks the counters of one sender or receiver run and
// implements prometheus.Collector so it can be registered directly.
type Transfer struct {
	role string // "sender" or "receiver"

	packetsSent     uint64
	retransmissions uint64
	acksReceived    uint64
	malformedDrops  uint64
	corruptedDrops  uint64
	bytesDelivered  uint64

	timingMu   sync.Mutex
	avgMs      float64
	totalMs    float64

	packetsSentDesc     *prometheus.Desc
	retransmissionsDesc *prometheus.Desc
	acksReceivedDesc    *prometheus.Desc
	malformedDropsDesc  *prometheus.Desc
	corruptedDropsDesc  *prometheus.Desc
	bytesDeliveredDesc  *prometheus.Desc
	avgTransitMsDesc    *prometheus.Desc
	totalTransferMsDesc *prometheus.Desc
}

// NewTransfer builds a collector labeled with role ("sender" or
// "receiver") and a transferID so multiple runs can share a registry
// without colliding.
func NewTransfer(role, transferID string) *Transfer {
	constLabels := prometheus.Labels{"role": role, "transfer_id": transferID}

	return &Transfer{
		role: role,
		packetsSentDesc: prometheus.NewDesc(
			"rdt_packets_sent_total", "Chunks handed to the sender for transmission; retransmissions are not counted.", nil, constLabels),
		retransmissionsDesc: prometheus.NewDesc(
			"rdt_retransmissions_total", "DATA packets resent after a timeout.", nil, constLabels),
		acksReceivedDesc: prometheus.NewDesc(
			"rdt_acks_received_total", "ACK packets observed.", nil, constLabels),
		malformedDropsDesc: prometheus.NewDesc(
			"rdt_malformed_drops_total", "Frames dropped for failing the length or header check.", nil, constLabels),
		corruptedDropsDesc: prometheus.NewDesc(
			"rdt_corrupted_drops_total", "Frames dropped for failing the checksum.", nil, constLabels),
		bytesDeliveredDesc: prometheus.NewDesc(
			"rdt_bytes_delivered_total", "Payload bytes delivered to the application in order.", nil, constLabels),
		avgTransitMsDesc: prometheus.NewDesc(
			"rdt_avg_transit_milliseconds", "Average per-chunk send-to-deliver time, in milliseconds.", nil, constLabels),
		totalTransferMsDesc: prometheus.NewDesc(
			"rdt_total_transfer_milliseconds", "Wall-clock span of the transfer, in milliseconds.", nil, constLabels),
	}
}

func (t *Transfer) AddPacketSent()    { atomic.AddUint64(&t.packetsSent, 1) }
func (t *Transfer) AddAckReceived()   { atomic.AddUint64(&t.acksReceived, 1) }
func (t *Transfer) AddMalformedDrop() { atomic.AddUint64(&t.malformedDrops, 1) }
func (t *Transfer) AddCorruptedDrop() { atomic.AddUint64(&t.corruptedDrops, 1) }
func (t *Transfer) AddBytesDelivered(n int) {
	atomic.AddUint64(&t.bytesDelivered, uint64(n))
}

// SetRetransmissions records the final retransmission count once a
// transfer completes; the sender only learns the total after Run returns.
func (t *Transfer) SetRetransmissions(n int) {
	atomic.StoreUint64(&t.retransmissions, uint64(n))
}

// SetTiming records the average per-chunk transit time and the total
// transfer span, both in milliseconds, once a stats.Collector summary is
// available.
func (t *Transfer) SetTiming(avgMs, totalMs float64) {
	t.timingMu.Lock()
	t.avgMs = avgMs
	t.totalMs = totalMs
	t.timingMu.Unlock()
}

// Describe implements prometheus.Collector.
func (t *Transfer) Describe(descs chan<- *prometheus.Desc) {
	descs <- t.packetsSentDesc
	descs <- t.retransmissionsDesc
	descs <- t.acksReceivedDesc
	descs <- t.malformedDropsDesc
	descs <- t.corruptedDropsDesc
	descs <- t.bytesDeliveredDesc
	descs <- t.avgTransitMsDesc
	descs <- t.totalTransferMsDesc
}

// Collect implements prometheus.Collector.
func (t *Transfer) Collect(metrics chan<- prometheus.Metric) {
	t.timingMu.Lock()
	avgMs, totalMs := t.avgMs, t.totalMs
	t.timingMu.Unlock()

	metrics <- prometheus.MustNewConstMetric(t.packetsSentDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&t.packetsSent)))
	metrics <- prometheus.MustNewConstMetric(t.retransmissionsDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&t.retransmissions)))
	metrics <- prometheus.MustNewConstMetric(t.acksReceivedDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&t.acksReceived)))
	metrics <- prometheus.MustNewConstMetric(t.malformedDropsDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&t.malformedDrops)))
	metrics <- prometheus.MustNewConstMetric(t.corruptedDropsDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&t.corruptedDrops)))
	metrics <- prometheus.MustNewConstMetric(t.bytesDeliveredDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&t.bytesDelivered)))
	metrics <- prometheus.MustNewConstMetric(t.avgTransitMsDesc, prometheus.GaugeValue, avgMs)
	metrics <- prometheus.MustNewConstMetric(t.totalTransferMsDesc, prometheus.GaugeValue, totalMs)
}
