package interpret

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIProcessor calls any OpenAI-compatible chat-completions endpoint.
type OpenAIProcessor struct {
	client       openai.Client
	model        string
	systemPrompt string
}

// NewOpenAIProcessor creates a processor backed by the OpenAI SDK. baseURL
// may point at any compatible server; empty means the default API.
func NewOpenAIProcessor(apiKey, baseURL, model, systemPrompt string) *OpenAIProcessor {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &OpenAIProcessor{
		client:       openai.NewClient(opts...),
		model:        model,
		systemPrompt: systemPrompt,
	}
}

// Process sends the request and returns the raw model reply.
func (p *OpenAIProcessor) Process(ctx context.Context, req Request) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.systemPrompt),
			openai.UserMessage(encodeRequest(req)),
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// encodeRequest serializes the request as the user message so the processor
// sees both the transcript and the reference timestamp.
func encodeRequest(req Request) string {
	b, err := json.Marshal(req)
	if err != nil {
		return req.Transcript
	}
	return string(b)
}
