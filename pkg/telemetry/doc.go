// Package telemetry bootstraps OpenTelemetry tracing for the engine and
// records execution metrics for modules and routing decisions.
package telemetry
