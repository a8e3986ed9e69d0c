// package llm is the language-model layer shared by the cogs: a small
// Provider interface, an OpenAI-compatible implementation, and a Chain for
// multi-step prompts.
package llm

import "context"

// Response is one completed generation.
type Response struct {
	Content    string
	TokensUsed int
	Err        string
}

// Options tune a single prompt.
type Options struct {
	MaxLength   int
	Temperature float64
	StopWords   []string
}

// DefaultOptions matches the bot's usual generation settings.
func DefaultOptions() Options {
	return Options{MaxLength: 500, Temperature: 0.7}
}

// Provider generates a completion for a prompt.
type Provider interface {
	SendPrompt(ctx context.Context, prompt string, opts Options) (Response, error)
}
