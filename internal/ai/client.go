package ai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

type Client struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *Client) SetModel(model string) {
	c.model = model
}

const funnyMessagePrompt = `Generate a funny, encouraging reminder message for taking medicine. Keep it under 100 characters, be playful but not medical advice. Medicine name: %s`

// FunnyMessage asks the model for one playful nag message about the given
// medicine. Callers bound the call with a context deadline and fall back to
// the local message pool on any error; this is variety only, never a
// correctness dependency.
func (c *Client) FunnyMessage(ctx context.Context, medicineName string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(funnyMessagePrompt, medicineName),
			},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from AI")
	}

	return resp.Choices[0].Message.Content, nil
}
