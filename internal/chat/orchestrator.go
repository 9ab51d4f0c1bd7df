package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/vrlab/calagent/internal/completion"
	"github.com/vrlab/calagent/internal/credentials"
	"github.com/vrlab/calagent/internal/instrumentation"
	"github.com/vrlab/calagent/internal/logging"
	"github.com/vrlab/calagent/internal/tools"
)

const (
	systemPromptBase          = "You are a helpful VR assistant."
	systemPromptAuthenticated = " You can access the user's Google Calendar."
	systemPromptAnonymous     = " The user has not connected their Google Calendar yet."

	// authPromptReply is returned when the model requests a tool but no
	// credential bundle exists for the user. The tool is never dispatched
	// in that branch.
	authPromptReply = "To perform calendar operations, you need to connect your Google Calendar first. " +
		"Please authenticate to enable this feature."

	// unknownToolReply is returned when the model names a tool outside the
	// catalog. The mismatch is logged; the user sees no internal detail.
	unknownToolReply = "I'm sorry, but I encountered an error trying to execute that operation."
)

// Dispatcher executes a named calendar tool with model-supplied arguments.
type Dispatcher interface {
	Invoke(ctx context.Context, tok *oauth2.Token, name string, args map[string]any) (map[string]any, error)
}

// Orchestrator drives one chat turn at a time. It is safe for concurrent
// use; all per-turn state lives on the stack.
type Orchestrator struct {
	creds      credentials.Source
	completer  completion.Service
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// NewOrchestrator creates an orchestrator over the given collaborators.
func NewOrchestrator(creds credentials.Source, completer completion.Service, dispatcher Dispatcher, logger *slog.Logger, metrics *instrumentation.Metrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		creds:      creds,
		completer:  completer,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// Handle runs one chat turn for the given user and message and returns the
// assistant's reply. Calendar and argument faults are folded back into the
// conversation as tool-result payloads; only completion service faults
// surface as errors.
func (o *Orchestrator) Handle(ctx context.Context, userID, message string) (string, error) {
	start := time.Now()
	userHash := logging.AnonymizeUserID(userID)
	logger := logging.WithOperation(o.logger, "chat.turn").With(slog.String(logging.KeyUserHash, userHash))

	ctx, span := instrumentation.StartChatTurnSpan(ctx, userHash)
	defer span.End()
	if traceID := instrumentation.GetTraceID(ctx); traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	reply, outcome, err := o.runTurn(ctx, logger, userID, message)
	o.metrics.RecordChatTurn(ctx, outcome, userHash, time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return "", err
	}
	instrumentation.SetSpanSuccess(span)

	logger.Info("chat turn complete",
		slog.String("outcome", outcome),
		logging.Duration(time.Since(start)))
	return reply, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, logger *slog.Logger, userID, message string) (reply, outcome string, err error) {
	tok, err := o.creds.Load(ctx, userID)
	if err != nil {
		// A bundle that cannot be loaded or refreshed is treated the same
		// as no bundle: the turn proceeds without calendar access.
		logger.Warn("failed to load credentials, continuing unauthenticated", logging.Err(err))
		tok = nil
	}
	authenticated := tok != nil

	systemPrompt := systemPromptBase
	if authenticated {
		systemPrompt += systemPromptAuthenticated
	} else {
		systemPrompt += systemPromptAnonymous
	}

	messages := []completion.Message{
		{Role: completion.RoleUser, Text: message},
	}

	var specs []tools.Spec
	if authenticated {
		specs = tools.Catalog()
	}

	first, err := o.complete(ctx, systemPrompt, messages, specs)
	if err != nil {
		logger.Error("first completion failed", logging.Err(err))
		return "", instrumentation.OutcomeError, fmt.Errorf("completion service: %w", err)
	}

	if len(first.ToolCalls) == 0 {
		return first.Text, instrumentation.OutcomeReply, nil
	}

	if !authenticated {
		// The model emitted a tool call with no tools offered. Never
		// dispatch without credentials.
		logger.Warn("tool call requested without credentials")
		return authPromptReply, instrumentation.OutcomeAuthPrompt, nil
	}

	// Single-call policy: only the first tool call is acted upon.
	call := first.ToolCalls[0]
	if extra := len(first.ToolCalls) - 1; extra > 0 {
		logger.Warn("ignoring additional tool calls",
			logging.Tool(call.Name),
			slog.Int("ignored", extra))
	}

	toolStart := time.Now()
	toolCtx, toolSpan := instrumentation.StartToolSpan(ctx, call.Name)
	payload, err := o.dispatcher.Invoke(toolCtx, tok, call.Name, call.Args)
	toolSpan.End()
	if err != nil {
		// Catalog/dispatch mismatch; an internal inconsistency, not a
		// user error.
		o.metrics.RecordToolInvocation(ctx, call.Name, instrumentation.StatusError, time.Since(toolStart))
		logger.Error("tool dispatch failed", logging.Tool(call.Name), logging.Err(err))
		return unknownToolReply, instrumentation.OutcomeUnknownTool, nil
	}
	o.metrics.RecordToolInvocation(ctx, call.Name, dispatchStatus(payload), time.Since(toolStart))

	messages = append(messages,
		completion.Message{Role: completion.RoleModel, ToolCall: &call},
		completion.Message{Role: completion.RoleUser, ToolResult: &completion.ToolResult{
			Name:    call.Name,
			Payload: payload,
		}},
	)

	// No tools on the second call, so the model cannot chain another
	// dispatch.
	second, err := o.complete(ctx, systemPrompt, messages, nil)
	if err != nil {
		logger.Error("second completion failed", logging.Tool(call.Name), logging.Err(err))
		return "", instrumentation.OutcomeError, fmt.Errorf("completion service: %w", err)
	}

	return second.Text, instrumentation.OutcomeToolDispatched, nil
}

// complete wraps one completion call with metrics and a span.
func (o *Orchestrator) complete(ctx context.Context, systemPrompt string, messages []completion.Message, specs []tools.Spec) (*completion.Result, error) {
	start := time.Now()
	ctx, span := instrumentation.StartCompletionSpan(ctx)
	defer span.End()

	result, err := o.completer.Complete(ctx, systemPrompt, messages, specs)
	if err != nil {
		o.metrics.RecordCompletion(ctx, instrumentation.StatusError, time.Since(start))
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	o.metrics.RecordCompletion(ctx, instrumentation.StatusSuccess, time.Since(start))
	return result, nil
}

// dispatchStatus classifies a tool-result payload for metrics. Error
// payloads carry an "error" key.
func dispatchStatus(payload map[string]any) string {
	if _, ok := payload["error"]; ok {
		return instrumentation.StatusError
	}
	return instrumentation.StatusSuccess
}
