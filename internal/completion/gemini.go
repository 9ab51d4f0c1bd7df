package completion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/vrlab/calagent/internal/tools"
)

const (
	// DefaultModel is the completion model used when none is configured.
	DefaultModel = "gemini-2.5-flash"

	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 60 * time.Second
)

// GeminiClient implements Service against the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// GeminiOption configures the client.
type GeminiOption func(*GeminiClient)

// WithModel sets the model to use.
func WithModel(model string) GeminiOption {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) GeminiOption {
	return func(c *GeminiClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GeminiOption {
	return func(c *GeminiClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewGeminiClient creates a completion client for the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &GeminiClient{
		client:  genaiClient,
		model:   DefaultModel,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Complete issues one completion call. When specs is non-empty the tool
// catalog is attached in auto mode, leaving the model free to answer
// without invoking anything.
func (c *GeminiClient) Complete(ctx context.Context, systemPrompt string, messages []Message, specs []tools.Spec) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := toContents(messages)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	if len(specs) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(specs)}}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}

	c.logger.Debug("issuing completion",
		slog.String("model", c.model),
		slog.Int("messages", len(messages)),
		slog.Int("tools", len(specs)))

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	result := &Result{Text: resp.Text()}
	for _, call := range resp.FunctionCalls() {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			Name: call.Name,
			Args: call.Args,
		})
	}

	return result, nil
}

// toContents converts the conversation into the wire representation.
func toContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch {
		case msg.ToolCall != nil:
			contents = append(contents, &genai.Content{
				Role: string(RoleModel),
				Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{
						Name: msg.ToolCall.Name,
						Args: msg.ToolCall.Args,
					},
				}},
			})
		case msg.ToolResult != nil:
			contents = append(contents, &genai.Content{
				Role: string(RoleUser),
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     msg.ToolResult.Name,
						Response: msg.ToolResult.Payload,
					},
				}},
			})
		default:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.Role(msg.Role)))
		}
	}
	return contents
}

// toDeclarations converts the tool catalog into function declarations.
func toDeclarations(specs []tools.Spec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		properties := make(map[string]*genai.Schema, len(spec.Parameters))
		for _, param := range spec.Parameters {
			properties[param.Name] = &genai.Schema{
				Type:        paramType(param.Type),
				Description: param.Description,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   spec.Required,
			},
		})
	}
	return decls
}

// paramType maps a catalog parameter type onto the schema type enum.
func paramType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
