package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	openrouterx "github.com/Yuvaramesh/sales-agent/pkg/openrouter"
)

// Invoker is a single-prompt completion over the openai-go client. It backs
// history compaction and end-of-session summaries.
type Invoker struct {
	client      *openaisdk.Client
	model       string
	temperature float64
	maxTokens   int64
}

var _ contractx.Invoker = (*Invoker)(nil)

func NewInvoker(cfg openrouterx.Config) (*Invoker, error) {
	client := openrouterx.NewClient(cfg)
	if client == nil {
		return nil, fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	inv := &Invoker{
		client:      client,
		model:       strings.TrimSpace(cfg.Model),
		temperature: float64(cfg.Temperature),
	}
	if cfg.MaxCompletionToken != nil {
		inv.maxTokens = int64(*cfg.MaxCompletionToken)
	}
	return inv, nil
}

func (i *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	if i == nil || i.client == nil {
		return "", fmt.Errorf("%w: invoker not configured", contractx.ErrModelInvoke)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: empty prompt", contractx.ErrValidation)
	}

	params := openaisdk.ChatCompletionNewParams{
		Model: i.model,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
		Temperature: openaisdk.Float(i.temperature),
	}
	if i.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(i.maxTokens)
	}

	resp, err := i.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	text := CompletionText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", contractx.ErrModelInvoke)
	}
	return text, nil
}

// CompletionText returns the first non-empty choice content.
func CompletionText(resp *openaisdk.ChatCompletion) string {
	if resp == nil {
		return ""
	}
	for _, choice := range resp.Choices {
		if s := strings.TrimSpace(choice.Message.Content); s != "" {
			return s
		}
	}
	return ""
}

// InvokerFunc adapts a function to contract.Invoker.
type InvokerFunc func(ctx context.Context, prompt string) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	if f == nil {
		return "", errors.New("nil invoker func")
	}
	return f(ctx, prompt)
}
