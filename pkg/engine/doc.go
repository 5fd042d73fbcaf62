// Package engine implements DAG-based pipeline construction and execution.
//
// Architecture:
//
// pipeline.go - Pipeline builder: modules, links, build-time validation
// executor.go - Wave-scheduled concurrent execution, input resolution
// trace.go    - Ordered trace buffering and trace sinks
// registry.go - Named pipeline registry with atomic updates
//
// A Pipeline is a directed acyclic graph of domain.Module nodes connected by
// typed keyword links. Pipelines implement domain.Module themselves, so a
// pipeline nests inside another pipeline as an ordinary node.
package engine
