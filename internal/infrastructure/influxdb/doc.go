// Package influxdb provides the optional glucose telemetry mirror.
//
// Stored numeric readings (sensor and meter glucose) are mirrored as points
// tagged by tenant and type, which makes Grafana-style long-range dashboards
// possible without loading the SQLite store. Writes are batched and
// asynchronous; failures surface only on the error callback and never fail
// an upload.
package influxdb
