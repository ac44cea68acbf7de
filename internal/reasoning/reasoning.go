package reasoning

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"guideline-rag/internal/config"
)

var ErrNoResponse = errors.New("reasoning: model returned no choices")

// Tool pairs a function-call definition with the callback that serves it.
// The model requests the tool by name with JSON arguments; Execute returns
// the structured result the model is resumed with.
type Tool struct {
	Definition llms.Tool
	Execute    func(ctx context.Context, argsJSON string) (string, error)
}

// Port generates free text from a prompt, optionally letting the model pull
// structured data through the supplied tools.
type Port interface {
	Generate(ctx context.Context, prompt string, tools []Tool) (string, error)
}

// LLMReasoner drives a chat model through a bounded tool-call loop. Each
// round the model may request tools; results are fed back and the model is
// resumed. After maxToolRounds the model is asked for a final text answer
// with no tools offered.
type LLMReasoner struct {
	llm           llms.Model
	maxToolRounds int
}

// NewLLMReasoner builds a reasoner over a local ollama model, or an
// OpenAI-compatible endpoint when cfg.Key is set.
func NewLLMReasoner(cfg *config.LLMConfig, maxToolRounds int) (*LLMReasoner, error) {
	if maxToolRounds <= 0 {
		maxToolRounds = 1
	}

	var llm llms.Model
	var err error
	if cfg.Key != "" {
		llm, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(cfg.Key),
			openai.WithModel(cfg.Model),
		)
	} else {
		llm, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("reasoning: initialize model client: %w", err)
	}
	return &LLMReasoner{llm: llm, maxToolRounds: maxToolRounds}, nil
}

func (r *LLMReasoner) Generate(ctx context.Context, prompt string, tools []Tool) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	defs := make([]llms.Tool, len(tools))
	for i, t := range tools {
		defs[i] = t.Definition
	}

	for round := 0; round <= r.maxToolRounds; round++ {
		var opts []llms.CallOption
		if len(defs) > 0 && round < r.maxToolRounds {
			opts = append(opts, llms.WithTools(defs))
		}

		resp, err := r.llm.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return "", fmt.Errorf("reasoning: generate content: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrNoResponse
		}
		choice := resp.Choices[0]

		if len(choice.ToolCalls) == 0 {
			return choice.Content, nil
		}

		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		for _, tc := range choice.ToolCalls {
			assistant.Parts = append(assistant.Parts, tc)
		}
		messages = append(messages, assistant)

		for _, tc := range choice.ToolCalls {
			result, err := r.executeTool(ctx, tools, tc)
			if err != nil {
				// Surface the failure to the model instead of aborting;
				// it can still answer from the guideline context.
				log.Warn().Err(err).Str("tool", tc.FunctionCall.Name).Msg("Tool call failed")
				result = fmt.Sprintf(`{"error": %q}`, err.Error())
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       tc.FunctionCall.Name,
					Content:    result,
				}},
			})
		}
	}

	return "", fmt.Errorf("reasoning: no final answer after %d tool rounds", r.maxToolRounds)
}

func (r *LLMReasoner) executeTool(ctx context.Context, tools []Tool, tc llms.ToolCall) (string, error) {
	for _, t := range tools {
		if t.Definition.Function != nil && t.Definition.Function.Name == tc.FunctionCall.Name {
			return t.Execute(ctx, tc.FunctionCall.Arguments)
		}
	}
	return "", fmt.Errorf("unknown tool %q", tc.FunctionCall.Name)
}
