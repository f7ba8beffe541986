package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/apperrors"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

// OpenAIModel streams completions from an OpenAI-compatible endpoint.
// It also backs the Azure vendor branch, which differs only in client
// configuration.
type OpenAIModel struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIModel creates a model against api.openai.com or a compatible
// baseURL (empty baseURL keeps the default endpoint).
func NewOpenAIModel(apiKey, baseURL, model string, logger *zap.Logger) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIModel{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger.Named("openai"),
	}
}

// NewAzureModel creates a model against an Azure OpenAI deployment.
// The deployment id doubles as the model name on Azure.
func NewAzureModel(apiKey, resourceName, deploymentID string, logger *zap.Logger) *OpenAIModel {
	endpoint := fmt.Sprintf("https://%s.openai.azure.com", resourceName)
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)

	return &OpenAIModel{
		client: openai.NewClientWithConfig(cfg),
		model:  deploymentID,
		logger: logger.Named("azure"),
	}
}

var _ StreamingModel = (*OpenAIModel)(nil)

// Name returns the model name.
func (m *OpenAIModel) Name() string {
	return m.model
}

// StreamCompletion runs one streamed completion, forwarding text deltas and
// accumulating tool call fragments across chunks.
func (m *OpenAIModel) StreamCompletion(ctx context.Context, req *CompletionRequest, onDelta DeltaFunc) (*CompletionResult, error) {
	start := time.Now()

	chatReq := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    buildOpenAIMessages(req),
		Tools:       buildOpenAITools(req.Tools),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	}
	if req.Reasoning {
		chatReq.ReasoningEffort = "medium"
	}

	stream, err := m.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		m.logger.Error("Failed to create stream", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}
	defer stream.Close()

	var contentBuilder strings.Builder
	toolCallsMap := make(map[int]*models.ToolCall)

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			m.logger.Error("Stream receive error", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
		}

		if len(response.Choices) == 0 {
			continue
		}

		delta := response.Choices[0].Delta

		if delta.Content != "" {
			contentBuilder.WriteString(delta.Content)
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}

		// Tool calls arrive fragmented; arguments accumulate per index.
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}

			if existing, exists := toolCallsMap[idx]; !exists {
				toolCallsMap[idx] = &models.ToolCall{
					ID:   tc.ID,
					Type: string(tc.Type),
					Function: models.ToolCallFunction{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				}
			} else {
				existing.Function.Arguments += tc.Function.Arguments
			}
		}
	}

	var toolCalls []models.ToolCall
	for i := 0; i < len(toolCallsMap); i++ {
		if tc, ok := toolCallsMap[i]; ok {
			toolCalls = append(toolCalls, *tc)
		}
	}

	m.logger.Debug("Stream completed",
		zap.String("model", m.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("content_length", contentBuilder.Len()),
		zap.Int("tool_calls", len(toolCalls)))

	return &CompletionResult{
		Content:   contentBuilder.String(),
		ToolCalls: toolCalls,
	}, nil
}

// buildOpenAIMessages converts our message format to OpenAI format.
func buildOpenAIMessages(req *CompletionRequest) []openai.ChatCompletionMessage {
	var result []openai.ChatCompletionMessage

	if req.System != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, msg := range req.Messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}

		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}

		result = append(result, oaiMsg)
	}

	return result
}

// buildOpenAITools converts our tool definitions to OpenAI format.
func buildOpenAITools(tools []ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.Tool, len(tools))
	for i, def := range tools {
		paramsJSON, _ := json.Marshal(def.Parameters)
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(paramsJSON),
			},
		}
	}

	return result
}
