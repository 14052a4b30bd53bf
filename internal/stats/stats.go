// Package stats collects per-transfer timing samples and reduces them to
// the average and total figures the original tooling reported.
package stats

import (
	"time"

	"github.com/rs/xid"
)

// TransferID tags one sender or receiver run for correlation across logs
// and metrics.
type TransferID = xid.ID

// NewTransferID allocates a new sortable, roughly-time-ordered identifier.
func NewTransferID() TransferID {
	return xid.New()
}

// Collector accumulates timestamps observed over the lifetime of a
// transfer, in the order they occur.
type Collector struct {
	timestamps []float64
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends a timestamp, expressed as seconds since the Unix epoch.
func (c *Collector) Record(ts float64) {
	c.timestamps = append(c.timestamps, ts)
}

// RecordNow appends the current wall-clock time.
func (c *Collector) RecordNow() {
	c.Record(float64(time.Now().UnixNano()) / 1e9)
}

// Summary reduces the recorded timestamps to an average and a total
// duration, both in milliseconds. AvgMs is the mean of the absolute
// differences between consecutive even/odd timestamp pairs (request/
// response round trips); TotalMs spans the first to the last recorded
// timestamp. Both are zero if no timestamps were recorded.
func (c *Collector) Summary() (avgMs, totalMs float64) {
	if len(c.timestamps) == 0 {
		return 0, 0
	}

	totalMs = (c.timestamps[len(c.timestamps)-1] - c.timestamps[0]) * 1000

	var sum float64
	var pairs int
	for i := 0; i+1 < len(c.timestamps); i += 2 {
		diff := c.timestamps[i+1] - c.timestamps[i]
		if diff < 0 {
			diff = -diff
		}
		sum += diff * 1000
		pairs++
	}
	if pairs == 0 {
		return 0, totalMs
	}
	return sum / float64(pairs), totalMs
}
