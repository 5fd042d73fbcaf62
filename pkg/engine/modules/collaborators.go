package modules

import "context"

// TextCompleter is the text-generation boundary: a remote, fallible,
// latency-bearing dependency, never assumed synchronous-fast.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Retriever is the document-retrieval boundary. How documents are indexed
// and searched is outside the engine.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]string, error)
}
