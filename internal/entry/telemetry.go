package entry

import "time"

// GlucoseWriter is the narrow surface the telemetry recorder needs from the
// InfluxDB client.
type GlucoseWriter interface {
	WriteGlucoseSample(tenantID, entryType string, value float64, ts time.Time)
}

// InfluxRecorder mirrors stored glucose readings into InfluxDB.
// Implements Recorder.
type InfluxRecorder struct {
	writer GlucoseWriter
}

// NewInfluxRecorder creates a recorder backed by a glucose writer.
func NewInfluxRecorder(writer GlucoseWriter) *InfluxRecorder {
	return &InfluxRecorder{writer: writer}
}

// RecordEntry mirrors the numeric reading of an entry, if it has one.
// Calibration and note entries carry no glucose value and are skipped.
func (r *InfluxRecorder) RecordEntry(e Entry) {
	var value *int64
	switch {
	case e.SGV != nil:
		value = e.SGV
	case e.MBG != nil:
		value = e.MBG
	default:
		return
	}
	r.writer.WriteGlucoseSample(e.TenantID, e.Type, float64(*value), time.UnixMilli(e.Date).UTC())
}
