package interpret

import (
	"context"
	"fmt"
	"strings"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"
)

// AgentProcessor runs the command-processor prompt through the
// openai-agents-go SDK against an injected model provider.
type AgentProcessor struct {
	provider     agents.ModelProvider
	model        string
	systemPrompt string
	maxTokens    int
}

// NewAgentProcessor creates an agents-SDK backed processor.
func NewAgentProcessor(provider agents.ModelProvider, model, systemPrompt string, maxTokens int) *AgentProcessor {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &AgentProcessor{
		provider:     provider,
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
	}
}

// Process streams one agent turn and returns the accumulated output text.
func (p *AgentProcessor) Process(ctx context.Context, req Request) (string, error) {
	agent := agents.New("command-processor").
		WithInstructions(p.systemPrompt).
		WithModel(p.model).
		WithModelSettings(modelsettings.ModelSettings{
			MaxTokens: param.NewOpt(int64(p.maxTokens)),
		})

	runner := agents.Runner{Config: agents.RunConfig{
		ModelProvider:   p.provider,
		MaxTurns:        1,
		TracingDisabled: true,
	}}

	events, errCh, err := runner.RunStreamedChan(ctx, agent, encodeRequest(req))
	if err != nil {
		return "", fmt.Errorf("agent stream start: %w", err)
	}

	var buf strings.Builder
	for ev := range events {
		appendDelta(ev, &buf)
	}
	if streamErr := <-errCh; streamErr != nil {
		return "", fmt.Errorf("agent stream: %w", streamErr)
	}
	return buf.String(), nil
}

func appendDelta(ev agents.StreamEvent, buf *strings.Builder) {
	raw, ok := ev.(agents.RawResponsesStreamEvent)
	if !ok {
		return
	}
	if raw.Data.Type != "response.output_text.delta" {
		return
	}
	buf.WriteString(raw.Data.Delta)
}
