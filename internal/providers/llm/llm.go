package llm

import "context"

// Provider is the generative text backend. Prompts are fixed templates per
// task; responses are expected to be fenced structured text that goes
// through the llmjson recovery stages.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}
