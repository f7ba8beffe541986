package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/apperrors"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicModel streams completions from the Anthropic Messages API.
// Selected for tenant models whose name starts with "claude".
type AnthropicModel struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicModel creates a model against the Anthropic API.
func NewAnthropicModel(apiKey, model string, logger *zap.Logger) *AnthropicModel {
	return &AnthropicModel{
		client: anthropic.NewClient(apiKey),
		model:  model,
		logger: logger.Named("anthropic"),
	}
}

var _ StreamingModel = (*AnthropicModel)(nil)

// Name returns the model name.
func (m *AnthropicModel) Name() string {
	return m.model
}

// StreamCompletion runs one streamed completion, forwarding text deltas and
// collecting tool_use blocks from the final response.
func (m *AnthropicModel) StreamCompletion(ctx context.Context, req *CompletionRequest, onDelta DeltaFunc) (*CompletionResult, error) {
	start := time.Now()

	resp, err := m.client.CreateMessagesStream(ctx, anthropic.MessagesStreamRequest{
		MessagesRequest: buildAnthropicRequest(m.model, req),
		OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
			if data.Delta.Text != nil && onDelta != nil {
				onDelta(*data.Delta.Text)
			}
		},
	})
	if err != nil {
		m.logger.Error("Messages stream failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}

	result := &CompletionResult{}
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				result.Content += *block.Text
			}
		case anthropic.MessagesContentTypeToolUse:
			if block.MessageContentToolUse == nil {
				continue
			}
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:   block.MessageContentToolUse.ID,
				Type: "function",
				Function: models.ToolCallFunction{
					Name:      block.MessageContentToolUse.Name,
					Arguments: string(block.MessageContentToolUse.Input),
				},
			})
		}
	}

	m.logger.Debug("Stream completed",
		zap.String("model", m.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("content_length", len(result.Content)),
		zap.Int("tool_calls", len(result.ToolCalls)))

	return result, nil
}

// buildAnthropicRequest maps a completion request onto the Messages API. A
// zero temperature means the provider default and is not sent.
func buildAnthropicRequest(model string, req *CompletionRequest) anthropic.MessagesRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	out := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		System:    req.System,
		Messages:  buildAnthropicMessages(req.Messages),
		Tools:     buildAnthropicTools(req.Tools),
		MaxTokens: maxTokens,
	}
	if req.Temperature != 0 {
		out.Temperature = &req.Temperature
	}
	return out
}

// buildAnthropicMessages converts our message format to Anthropic format.
// Tool results become tool_result content blocks on user messages; assistant
// tool calls become tool_use blocks.
func buildAnthropicMessages(messages []Message) []anthropic.Message {
	result := make([]anthropic.Message, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			result = append(result, anthropic.NewUserTextMessage(msg.Content))

		case RoleAssistant:
			content := make([]anthropic.MessageContent, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				content = append(content, anthropic.NewTextMessageContent(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				content = append(content, anthropic.NewToolUseMessageContent(
					tc.ID, tc.Function.Name, json.RawMessage(tc.Function.Arguments)))
			}
			result = append(result, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: content,
			})

		case RoleTool:
			result = append(result, anthropic.NewToolResultsMessage(msg.ToolCallID, msg.Content, false))
		}
	}

	return result
}

// buildAnthropicTools converts our tool definitions to Anthropic format.
func buildAnthropicTools(tools []ToolDefinition) []anthropic.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolDefinition, len(tools))
	for i, def := range tools {
		result[i] = anthropic.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Parameters,
		}
	}

	return result
}
