// Package completion abstracts the external large-language-model
// completion service: a request carries the conversation so far and
// optionally the tool catalog; a response carries text and at most the
// tool calls the model chose to request.
package completion
