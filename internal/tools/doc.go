// Package tools declares the calendar tools the completion service may
// invoke and dispatches invocations to the Calendar client.
//
// The catalog is a static registry; dispatch is a closed switch over the
// known tool names with an explicit default arm for unrecognized names.
// Every dispatch returns a serializable payload value, success and error
// alike, so the orchestrator can always feed the outcome back into the
// conversation.
package tools
