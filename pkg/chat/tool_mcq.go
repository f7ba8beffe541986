package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/jsonutil"
	"github.com/studyloop-ai/studyloop-engine/pkg/llm"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

// CreateMultipleChoiceTool validates a four-choice question and echoes it
// back. The question reaches the client through the tool result; nothing is
// persisted server-side.
type CreateMultipleChoiceTool struct {
	logger *zap.Logger
}

// NewCreateMultipleChoiceTool creates the create_multiple_choice executor.
func NewCreateMultipleChoiceTool(logger *zap.Logger) *CreateMultipleChoiceTool {
	return &CreateMultipleChoiceTool{logger: logger.Named("create-multiple-choice")}
}

var _ Executor = (*CreateMultipleChoiceTool)(nil)

// Definition returns the tool definition.
func (t *CreateMultipleChoiceTool) Definition() llm.ToolDefinition {
	return llm.NewToolDefinition(
		"create_multiple_choice",
		"Call this tool to present the user a multiple-choice question with exactly four choices. The question is rendered by the client; do not repeat it in your answer.",
		map[string]llm.ParameterProperty{
			"question": {
				Type:        "string",
				Description: "The question text",
			},
			"choice_a": {
				Type:        "string",
				Description: "Choice A",
			},
			"choice_b": {
				Type:        "string",
				Description: "Choice B",
			},
			"choice_c": {
				Type:        "string",
				Description: "Choice C",
			},
			"choice_d": {
				Type:        "string",
				Description: "Choice D",
			},
			"correct_answer": {
				Type:        "string",
				Enum:        []string{"A", "B", "C", "D"},
				Description: "Letter of the correct choice",
			},
		},
		[]string{"question", "choice_a", "choice_b", "choice_c", "choice_d", "correct_answer"},
	)
}

// Raw fields tolerate models emitting numbers for choice text.
type createMultipleChoiceArgs struct {
	Question      json.RawMessage `json:"question"`
	ChoiceA       json.RawMessage `json:"choice_a"`
	ChoiceB       json.RawMessage `json:"choice_b"`
	ChoiceC       json.RawMessage `json:"choice_c"`
	ChoiceD       json.RawMessage `json:"choice_d"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
}

type createMultipleChoiceResult struct {
	Message  string                `json:"message"`
	Question models.MultipleChoice `json:"question"`
}

// Execute validates the choices and acknowledges.
func (t *CreateMultipleChoiceTool) Execute(_ context.Context, arguments string, _ EmitFunc) (*ToolOutcome, error) {
	var args createMultipleChoiceArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	question := jsonutil.FlexibleStringValue(args.Question)
	choices := map[string]string{
		"choice_a": jsonutil.FlexibleStringValue(args.ChoiceA),
		"choice_b": jsonutil.FlexibleStringValue(args.ChoiceB),
		"choice_c": jsonutil.FlexibleStringValue(args.ChoiceC),
		"choice_d": jsonutil.FlexibleStringValue(args.ChoiceD),
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required")
	}
	for name, value := range choices {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
	}
	answer := strings.ToUpper(strings.TrimSpace(jsonutil.FlexibleStringValue(args.CorrectAnswer)))
	if answer != "A" && answer != "B" && answer != "C" && answer != "D" {
		return nil, fmt.Errorf("correct_answer must be one of A, B, C, D")
	}

	t.logger.Debug("Multiple-choice question created")

	result := createMultipleChoiceResult{
		Message: "The multiple-choice question is now visible to the user. Do not repeat it.",
		Question: models.MultipleChoice{
			Question:      question,
			ChoiceA:       choices["choice_a"],
			ChoiceB:       choices["choice_b"],
			ChoiceC:       choices["choice_c"],
			ChoiceD:       choices["choice_d"],
			CorrectAnswer: answer,
		},
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal question: %w", err)
	}
	return &ToolOutcome{
		ModelResult:  string(payload),
		ClientResult: result,
	}, nil
}
