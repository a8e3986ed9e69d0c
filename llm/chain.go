package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
)

// Node is one step of a chain: a provider plus an optional prompt wrapper.
// A nil Prompt passes the previous step's output through unchanged.
type Node struct {
	Name     string
	Provider Provider
	Prompt   func(input string) string
	Options  Options
}

// Chain runs nodes in order, feeding each node's output into the next. The
// first error stops the chain.
type Chain struct {
	nodes  []Node
	logger *logging.Logger
}

// NewChain assembles a chain.
func NewChain(logger *logging.Logger, nodes ...Node) *Chain {
	if logger == nil {
		logger = logging.Default()
	}
	return &Chain{nodes: nodes, logger: logger}
}

// Run executes the chain on the input and returns the final node's content.
func (c *Chain) Run(ctx context.Context, input string) (string, error) {
	current := input
	for _, node := range c.nodes {
		prompt := current
		if node.Prompt != nil {
			prompt = node.Prompt(current)
		}
		opts := node.Options
		if opts.MaxLength == 0 && opts.Temperature == 0 {
			opts = DefaultOptions()
		}

		start := time.Now()
		resp, err := node.Provider.SendPrompt(ctx, prompt, opts)
		if err != nil {
			return "", fmt.Errorf("chain node %s: %w", node.Name, err)
		}
		c.logger.Debug("chain node complete", "node", node.Name, "latencyMS", time.Since(start).Milliseconds(), "tokens", resp.TokensUsed)
		current = resp.Content
	}
	return current, nil
}
