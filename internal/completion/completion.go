package completion

import (
	"context"

	"github.com/vrlab/calagent/internal/tools"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks messages authored by the end user (and tool results
	// fed back to the model).
	RoleUser Role = "user"
	// RoleModel marks messages authored by the model.
	RoleModel Role = "model"
)

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResult carries the serialized outcome of a dispatched tool call,
// success and error payloads alike.
type ToolResult struct {
	Name    string
	Payload map[string]any
}

// Message is one entry in the evolving sequence of a chat turn. Exactly one
// of Text, ToolCall, or ToolResult is meaningful.
type Message struct {
	Role       Role
	Text       string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// Result is the outcome of one completion call.
type Result struct {
	// Text is the model's natural-language reply, if any.
	Text string
	// ToolCalls holds the function invocations the model requested.
	// Empty when the model answered directly or no tools were offered.
	ToolCalls []ToolCall
}

// Service is the external completion API. Implementations must support both
// the no-tools mode and the tools-offered mode in which the model may still
// answer without invoking anything.
type Service interface {
	Complete(ctx context.Context, systemPrompt string, messages []Message, specs []tools.Spec) (*Result, error)
}
