package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteGlucoseSample records one glucose reading in the telemetry bucket.
//
// The point is tagged by tenant and entry type (sgv or mbg) and timestamped
// with the reading's own time, not the write time, so backfilled uploads
// land in the right place on the graph. The write is non-blocking; data is
// batched and sent asynchronously.
func (c *Client) WriteGlucoseSample(tenantID, entryType string, value float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"glucose",
		map[string]string{
			"tenant_id": tenantID,
			"type":      entryType,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
