package weatherchannel

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/llm"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
)

const (
	summaryAttempts = 3
	summaryBackoff  = time.Second
)

// Summarizer turns the day's reports into one LLM-written paragraph.
type Summarizer struct {
	provider llm.Provider
	logger   *logging.Logger
	backoff  time.Duration
}

// NewSummarizer wires the summarizer. A nil provider disables summaries.
func NewSummarizer(provider llm.Provider, logger *logging.Logger) *Summarizer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Summarizer{provider: provider, logger: logger, backoff: summaryBackoff}
}

// Summarize generates the paragraph, retrying transient failures. After the
// final attempt it returns "" so the caller posts the table without a
// summary instead of failing the whole report.
func (s *Summarizer) Summarize(ctx context.Context, reports []Report) string {
	if s.provider == nil || len(reports) == 0 {
		return ""
	}
	prompt := SummaryPrompt(reports)

	var content string
	backoff := retry.WithMaxRetries(summaryAttempts-1, retry.NewConstant(s.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := s.provider.SendPrompt(ctx, prompt, llm.DefaultOptions())
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.Content == "" {
			// Providers report "no choices" as empty content with a nil
			// error; treat it like any other transient failure.
			return retry.RetryableError(fmt.Errorf("empty summary response"))
		}
		content = resp.Content
		return nil
	})
	if err != nil {
		s.logger.Error("weather summary generation failed", "attempts", summaryAttempts, "error", err.Error())
		return ""
	}
	return content
}
