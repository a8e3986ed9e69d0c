package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider echoes prompts back with a prefix, or fails on demand.
type fakeProvider struct {
	prefix  string
	fail    bool
	prompts []string
}

func (f *fakeProvider) SendPrompt(_ context.Context, prompt string, _ Options) (Response, error) {
	f.prompts = append(f.prompts, prompt)
	if f.fail {
		return Response{}, assert.AnError
	}
	return Response{Content: f.prefix + prompt, TokensUsed: 7}, nil
}

func TestChainRunsNodesInOrder(t *testing.T) {
	first := &fakeProvider{prefix: "1:"}
	second := &fakeProvider{prefix: "2:"}

	chain := NewChain(nil,
		Node{Name: "draft", Provider: first, Prompt: func(in string) string { return "draft " + in }},
		Node{Name: "polish", Provider: second},
	)

	out, err := chain.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "2:1:draft hello", out)
	assert.Equal(t, []string{"draft hello"}, first.prompts)
	assert.Equal(t, []string{"1:draft hello"}, second.prompts, "second node consumes the first node's output")
}

func TestChainStopsOnFirstError(t *testing.T) {
	failing := &fakeProvider{fail: true}
	after := &fakeProvider{}

	chain := NewChain(nil,
		Node{Name: "broken", Provider: failing},
		Node{Name: "unreached", Provider: after},
	)

	_, err := chain.Run(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain node broken")
	assert.Empty(t, after.prompts)
}

func TestCleanResponse(t *testing.T) {
	assert.Equal(t, "hi there", cleanResponse("  <|im_start|>hi there<|im_end|>  "))
	assert.Equal(t, "ask not", cleanResponse("/ask not"))
	assert.Equal(t, "bang", cleanResponse("!bang"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 500))

	long := strings.Repeat("a", 600)
	got := Truncate(long, 500)
	assert.Equal(t, 500, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))

	// Rune-aware: multibyte text never splits mid-character.
	assert.Equal(t, "日本…", Truncate("日本語のテキスト", 3))
}
