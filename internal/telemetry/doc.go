// Package telemetry exports logweave's own traces and metrics over OTLP.
//
// The engine records construction and skip counters on a meter from
// Telemetry.Meter, and the collector records request metrics the same way.
// Export is off unless telemetry.enabled is set:
//
//	telemetry:
//	  enabled: true
//	  endpoint: localhost:4317
//	  protocol: grpc          # or http/protobuf
//	  trace_ratio: 0.25
//	  metric_interval: 15s
//
// An exporter that cannot be created disables only its own signal.
package telemetry
