package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ashureev/promptrunner/internal/domain"
)

const decisionProtocol = `
Responda sempre com um único objeto JSON, sem texto adicional:
{"thought": "...", "action": "click|type|press|scroll|navigate|wait", "selector": "seletor CSS", "value": "texto, tecla, URL ou pixels", "done": false, "success": null, "result": ""}
Quando a tarefa estiver concluída ou for impossível, responda com "done": true, "success": true ou false e um "result" resumindo o que foi feito.`

// AnthropicConfig configures the Messages API planner.
type AnthropicConfig struct {
	APIKey       string
	Model        string
	Instructions string
	MaxTokens    int
	// Options are appended to the client options, e.g. a custom base URL.
	Options []option.RequestOption
}

// AnthropicPlanner asks a Claude model for the next action.
type AnthropicPlanner struct {
	client    anthropic.Client
	model     string
	system    string
	maxTokens int64
}

// NewAnthropicPlanner creates a planner using the Messages API.
func NewAnthropicPlanner(cfg AnthropicConfig) *AnthropicPlanner {
	opts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, cfg.Options...)
	return &AnthropicPlanner{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		system:    strings.TrimSpace(cfg.Instructions) + "\n" + decisionProtocol,
		maxTokens: int64(cfg.MaxTokens),
	}
}

// Next implements Planner.
func (p *AnthropicPlanner) Next(ctx context.Context, in PlanInput) (Decision, error) {
	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(renderPrompt(in))}
	if len(in.Screenshot) > 0 {
		blocks = append(blocks, anthropic.NewImageBlockBase64(domain.ScreenshotMIME, base64.StdEncoding.EncodeToString(in.Screenshot)))
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: p.system}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		return Decision{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return ParseDecision(text.String())
}

func renderPrompt(in PlanInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tarefa: %s\n", in.Instruction)
	fmt.Fprintf(&b, "Passo %d de %d\n\n", in.Step, in.MaxSteps)
	fmt.Fprintf(&b, "URL atual: %s\nTítulo: %s\n", in.Observation.URL, in.Observation.Title)
	if len(in.History) > 0 {
		b.WriteString("\nAções anteriores:\n")
		for i, s := range in.History {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, s.Action, s.Observation)
		}
	}
	if in.Observation.Text != "" {
		fmt.Fprintf(&b, "\nTexto visível:\n%s\n", in.Observation.Text)
	}
	return b.String()
}
