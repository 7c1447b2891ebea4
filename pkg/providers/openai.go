package providers

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1/"

type OpenAIClient struct {
	client *openai.Client
	params ProviderParams
}

// OpenAi creates a client, falling back to OPENAI_API_BASE_URL and
// OPENAI_API_KEY for anything not set through options.
func OpenAi(opts ...ProviderOption) *OpenAIClient {
	params := ProviderParams{
		BaseURL: os.Getenv("OPENAI_API_BASE_URL"),
		APIKey:  os.Getenv("OPENAI_API_KEY"),
	}
	for _, opt := range opts {
		opt(&params)
	}
	if params.BaseURL == "" {
		params.BaseURL = defaultOpenAIBaseURL
	}

	reqOpts := []option.RequestOption{option.WithBaseURL(params.BaseURL)}
	if params.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(params.APIKey))
	}
	log.Println("Using Base URL", params.BaseURL)

	return &OpenAIClient{
		client: openai.NewClient(reqOpts...),
		params: params,
	}
}

// BaseURL reports the endpoint requests are sent to
func (c *OpenAIClient) BaseURL() string {
	return c.params.BaseURL
}

func (c *OpenAIClient) Complete(ctx context.Context, model string, system string, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F(messages),
		Model:    openai.F(model),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion with %s: %w", model, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("model %s returned no choices", model)
	}
	return completion.Choices[0].Message.Content, nil
}
