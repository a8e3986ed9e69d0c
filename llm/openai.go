package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// OpenAIProvider talks to any OpenAI-compatible completion endpoint, local
// llama.cpp servers included.
type OpenAIProvider struct {
	llm       llms.Model
	modelName string
}

// NewOpenAI builds a provider against the given base URL. An empty token is
// fine for local servers that do not check it.
func NewOpenAI(baseURL, token, modelName string) (*OpenAIProvider, error) {
	opts := []openai.Option{
		openai.WithBaseURL(baseURL),
	}
	if token != "" {
		opts = append(opts, openai.WithToken(token))
	}
	if modelName != "" {
		opts = append(opts, openai.WithModel(modelName))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI LLM: %w", err)
	}
	return &OpenAIProvider{llm: model, modelName: modelName}, nil
}

// SendPrompt runs one generation and normalizes the result.
func (p *OpenAIProvider) SendPrompt(ctx context.Context, prompt string, opts Options) (Response, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	callOpts := []llms.CallOption{
		llms.WithCandidateCount(1),
		llms.WithTemperature(opts.Temperature),
	}
	if opts.MaxLength > 0 {
		callOpts = append(callOpts, llms.WithMaxLength(opts.MaxLength))
	}
	if len(opts.StopWords) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(opts.StopWords))
	}

	resp, err := p.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		metrics.FailedLLMGenCount.Add(1)
		return Response{Err: err.Error()}, fmt.Errorf("failed to get llm response: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.EmptyLLMResponseCount.Add(1)
		return Response{}, fmt.Errorf("llm returned no choices")
	}

	content := cleanResponse(resp.Choices[0].Content)
	if content == "" {
		metrics.EmptyLLMResponseCount.Add(1)
	} else {
		metrics.SuccessfulLLMGenCount.Add(1)
	}
	return Response{
		Content:    content,
		TokensUsed: tokensFrom(resp.Choices[0].GenerationInfo),
	}, nil
}

func tokensFrom(info map[string]any) int {
	for _, key := range []string{"TotalTokens", "CompletionTokens"} {
		if v, ok := info[key].(int); ok {
			return v
		}
	}
	return 0
}

// cleanResponse strips chat-template markers and anything that could trigger
// a slash command.
func cleanResponse(resp string) string {
	resp = strings.ReplaceAll(resp, "<|im_start|>", "")
	resp = strings.ReplaceAll(resp, "<|im_end|>", "")
	resp = strings.TrimPrefix(resp, "!")
	resp = strings.TrimPrefix(resp, "/")
	return strings.TrimSpace(resp)
}
