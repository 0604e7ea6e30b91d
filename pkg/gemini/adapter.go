package gemini

import (
	"context"

	"rileybot/pkg/generator"
)

// Adapter wraps Client to implement generator.TextGenerator
type Adapter struct {
	client *Client
}

// NewAdapter creates an adapter that implements generator.TextGenerator
func NewAdapter(apiKey, model string, temperature, topP float64) *Adapter {
	if apiKey == "" {
		return nil
	}
	c := NewClient(apiKey, model)
	c.Temperature = temperature
	c.TopP = topP
	return &Adapter{client: c}
}

func (a *Adapter) Generate(ctx context.Context, p generator.Prompt) (string, error) {
	return a.client.GenerateContent(ctx, p.System, p.User)
}
