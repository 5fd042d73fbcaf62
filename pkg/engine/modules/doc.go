// Package modules provides leaf domain.Module implementations that adapt
// external collaborators (prompt templates, text generation, retrieval,
// summarization) to the uniform module contract. Collaborator internals stay opaque: each
// adapter holds a narrow interface and surfaces failures as a single error
// carrying the cause.
package modules
