// Package selector implements the decision unit that maps a query and a
// list of natural-language choice descriptions to a chosen index.
//
// The default LLM selector delegates to a chat-completion collaborator and
// parses a JSON answer, retrying once with a stricter request before
// surfacing a SelectionError. Keyword and Static selectors satisfy the same
// contract deterministically.
package selector
