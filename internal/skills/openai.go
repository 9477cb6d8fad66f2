package skills

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompleter is a Completer speaking the OpenAI chat completions API,
// which most hosted and local model servers accept.
type OpenAICompleter struct {
	client openai.Client
}

// NewOpenAICompleter builds a completer for baseURL. An empty apiKey sends
// no Authorization header.
func NewOpenAICompleter(baseURL, apiKey string, opts ...option.RequestOption) *OpenAICompleter {
	clientOpts := []option.RequestOption{
		option.WithBaseURL(baseURL),
	}
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	clientOpts = append(clientOpts, opts...)
	return &OpenAICompleter{client: openai.NewClient(clientOpts...)}
}

func (c *OpenAICompleter) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Model:    model,
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
