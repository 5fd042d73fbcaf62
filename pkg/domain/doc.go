// Package domain defines the core contracts of the Relay pipeline engine.
//
// This package contains pure domain types with ZERO external dependencies
// outside the Go standard library. All types in this package are:
//
// - Independent of infrastructure (no HTTP, no model SDKs, no storage)
// - Technology-agnostic (no framework coupling)
// - Testable in isolation without mocks
//
// Other packages (engine, router, selector, server) implement the interfaces
// defined here and depend on these types. The dependency direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
