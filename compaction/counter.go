package compaction

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/youssefsiam38/contextfit/types"
)

// CountUnavailable is the sentinel returned by a TokenCounter whose
// underlying model or configuration is not available. The fitter treats
// it as "nothing to do" and returns the input unchanged.
const CountUnavailable = -1

// TokenCounter counts the tokens a turn sequence occupies in the model
// context window. Counting may be a network round-trip to a
// model-counting endpoint; implementations must honor the context.
type TokenCounter interface {
	// Count returns the total token count for the turns,
	// CountUnavailable when the counter is not configured, or an error
	// when the counting call itself failed.
	Count(ctx context.Context, turns []types.Turn) (int, error)
}

// APICounter counts tokens through the Claude token counting API.
// A zero-value or nil-client APICounter reports CountUnavailable.
type APICounter struct {
	client *anthropic.Client
	model  string
}

// NewAPICounter creates an APICounter for the given client and model.
func NewAPICounter(client *anthropic.Client, model string) *APICounter {
	return &APICounter{client: client, model: model}
}

// Count implements TokenCounter using Messages.CountTokens.
func (c *APICounter) Count(ctx context.Context, turns []types.Turn) (int, error) {
	if c == nil || c.client == nil || c.model == "" {
		return CountUnavailable, nil
	}
	if len(turns) == 0 {
		return 0, nil
	}

	params := convertToAnthropicMessages(turns)
	if len(params) == 0 {
		return 0, nil
	}

	result, err := c.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(c.model),
		Messages: params,
	})
	if err != nil {
		return 0, NewError("Count", ErrTokenCountingFailed).WithContext("cause", err.Error())
	}
	return int(result.InputTokens), nil
}

// convertToAnthropicMessages converts turns to anthropic message params.
func convertToAnthropicMessages(turns []types.Turn) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(turns))

	for _, turn := range turns {
		role := anthropic.MessageParamRoleUser
		if turn.Kind == types.KindResponse {
			role = anthropic.MessageParamRoleAssistant
		}

		content := make([]anthropic.ContentBlockParamUnion, 0, len(turn.Parts))
		for _, part := range turn.Parts {
			switch part.Type {
			case types.PartTypeText, types.PartTypeUserPrompt,
				types.PartTypeSystemPrompt, types.PartTypeThinking,
				types.PartTypeRetryNotice:
				content = append(content, anthropic.NewTextBlock(part.Text))
			case types.PartTypeToolCall:
				var input any
				if len(part.ToolArgs) > 0 {
					if err := json.Unmarshal(part.ToolArgs, &input); err != nil {
						input = map[string]any{}
					}
				}
				content = append(content, anthropic.NewToolUseBlock(part.ToolCallID, input, part.ToolName))
			case types.PartTypeToolReturn:
				content = append(content, anthropic.NewToolResultBlock(part.ToolCallID, part.ToolContent, part.IsError))
			}
		}

		if len(content) > 0 {
			result = append(result, anthropic.MessageParam{
				Role:    role,
				Content: content,
			})
		}
	}

	return result
}

// ApproxCounter estimates tokens offline from character counts
// (~4 characters per token). It never returns CountUnavailable; use it
// when no counting API is configured but compaction should still run.
type ApproxCounter struct{}

// Count implements TokenCounter using character-based approximation.
func (ApproxCounter) Count(_ context.Context, turns []types.Turn) (int, error) {
	total := 0
	for _, turn := range turns {
		total += estimateTurnTokens(turn)
	}
	return total, nil
}

// estimateTurnTokens estimates tokens for a single turn.
func estimateTurnTokens(turn types.Turn) int {
	// Overhead for turn structure (~4 tokens for role, framing)
	total := 4

	for _, part := range turn.Parts {
		switch part.Type {
		case types.PartTypeToolCall:
			total += ApproximateTokens(part.ToolName) + 10
			if len(part.ToolArgs) > 0 {
				total += ApproximateTokens(string(part.ToolArgs))
			}
		case types.PartTypeToolReturn:
			total += 10
			total += ApproximateTokens(part.ToolContent)
		default:
			total += ApproximateTokens(part.Text)
		}
	}

	return total
}

// ApproximateTokens estimates token count from character count.
// Uses the approximation of ~4 characters per token for English text.
func ApproximateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := (len(text) + 3) / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
