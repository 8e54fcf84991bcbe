// Package influxdb provides the optional telemetry sink for Hearth Core.
//
// It wraps the InfluxDB v2 client with non-blocking batched writes used
// to record command round-trip latency, command outcomes, and component
// state samples. Telemetry never sits on the dispatch path: if the sink
// is down, writes are dropped and the relay carries on.
package influxdb
