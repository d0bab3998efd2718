// Package ops serves the operational HTTP endpoints: health and readiness
// probes, build information, and the Prometheus metrics listener.
package ops
