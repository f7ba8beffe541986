package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/llm"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

// EmitFunc lets executors publish transient events (artifact opens,
// content deltas) into the turn's event stream.
type EmitFunc func(models.ChatEvent)

// ModelResolver resolves model selections to configured providers.
// Implemented by llm.Resolver.
type ModelResolver interface {
	ResolveIndex(index int) (*llm.ModelConfig, error)
	ResolveCustom(ctx context.Context, modelID, bucketID uuid.UUID) (*llm.ModelConfig, error)
	TitleModel() (*llm.ModelConfig, error)
	DocumentModel() (*llm.ModelConfig, error)
}

// ToolOutcome is the dual result of a tool execution. The model gets the
// full payload; the client event may carry a truncated rendition because
// bulk tool content is server-only.
type ToolOutcome struct {
	// ModelResult is the JSON string appended to the model context.
	ModelResult string
	// ClientResult is the payload of the tool_result event.
	ClientResult any
}

// Executor is one registered tool. Implementations validate their own
// arguments before any side effect; validation failure returns an error
// and must leave no trace.
type Executor interface {
	Definition() llm.ToolDefinition
	Execute(ctx context.Context, arguments string, emit EmitFunc) (*ToolOutcome, error)
}

// Registry is the fixed tool catalogue of one chat turn.
type Registry struct {
	tools  map[string]Executor
	order  []string
	logger *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Executor),
		logger: logger.Named("tool-registry"),
	}
}

// Register adds an executor under its definition name.
func (r *Registry) Register(e Executor) {
	name := e.Definition().Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = e
}

// Definitions returns the tool definitions in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Dispatch executes a tool call. Failures never abort the turn: unknown
// tools, invalid arguments and execution errors all surface as a stable
// tool-error payload so the model can recover.
func (r *Registry) Dispatch(ctx context.Context, call models.ToolCall, emit EmitFunc) *ToolOutcome {
	name := call.Function.Name

	executor, ok := r.tools[name]
	if !ok {
		r.logger.Warn("Unknown tool requested", zap.String("tool", name))
		return toolError(fmt.Sprintf("unknown tool: %s", name))
	}

	r.logger.Debug("Executing tool",
		zap.String("tool", name),
		zap.String("arguments", call.Function.Arguments))

	outcome, err := executor.Execute(ctx, call.Function.Arguments, emit)
	if err != nil {
		r.logger.Warn("Tool execution failed",
			zap.String("tool", name),
			zap.Error(err))
		return toolError(err.Error())
	}

	return outcome
}

// toolError builds the stable error payload fed back to the model.
func toolError(message string) *ToolOutcome {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return &ToolOutcome{
		ModelResult:  string(payload),
		ClientResult: map[string]string{"error": message},
	}
}
