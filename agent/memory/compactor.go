// Package memory bounds the conversation context handed to the delegate by
// folding older turns into a running summary.
package memory

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	promptx "github.com/Yuvaramesh/sales-agent/agent/prompt"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

const (
	DefaultRecentKeep       = 8
	DefaultSummarizeEvery   = 12
	DefaultMaxPromptTokens  = 3000
	DefaultSummaryMaxTokens = 800

	placeholderUser  = "[older history summarized]"
	summaryDivider   = "\n---\n"
	transcriptMaxLen = 2000
)

type Policy struct {
	RecentKeep       int
	SummarizeEvery   int
	MaxPromptTokens  int
	SummaryMaxTokens int
}

func DefaultPolicy() Policy {
	return Policy{
		RecentKeep:       DefaultRecentKeep,
		SummarizeEvery:   DefaultSummarizeEvery,
		MaxPromptTokens:  DefaultMaxPromptTokens,
		SummaryMaxTokens: DefaultSummaryMaxTokens,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.RecentKeep <= 0 {
		p.RecentKeep = d.RecentKeep
	}
	if p.SummarizeEvery <= 0 {
		p.SummarizeEvery = d.SummarizeEvery
	}
	if p.MaxPromptTokens <= 0 {
		p.MaxPromptTokens = d.MaxPromptTokens
	}
	if p.SummaryMaxTokens <= 0 {
		p.SummaryMaxTokens = d.SummaryMaxTokens
	}
	return p
}

type Option func(*Compactor)

func WithPolicy(p Policy) Option {
	return func(c *Compactor) { c.policy = p.normalized() }
}

func WithClock(now func() time.Time) Option {
	return func(c *Compactor) {
		if now != nil {
			c.now = now
		}
	}
}

// Compactor folds old turns into Session.MemorySummary. The summarizer is
// optional: without one, older turns are kept verbatim in the summary.
type Compactor struct {
	summarizer contractx.Invoker
	prompts    promptx.PromptSet
	policy     Policy
	now        func() time.Time
}

func NewCompactor(summarizer contractx.Invoker, opts ...Option) *Compactor {
	c := &Compactor{
		summarizer: summarizer,
		prompts:    promptx.LoadPromptSet(),
		policy:     DefaultPolicy(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Compactor) Policy() Policy { return c.policy }

// NeedsCompaction reports whether the log has outgrown the recent window and
// enough turns have accumulated since the last compaction.
func (c *Compactor) NeedsCompaction(s *statex.Session) bool {
	if s == nil {
		return false
	}
	n := len(s.Messages)
	if n <= c.policy.RecentKeep+2 {
		return false
	}
	return n-s.LastSummaryIndex > c.policy.SummarizeEvery
}

// Compact rewrites the message log as a placeholder plus the most recent
// turns. The new summary is appended to any existing one, never replacing it.
func (c *Compactor) Compact(ctx context.Context, s *statex.Session) bool {
	if !c.NeedsCompaction(s) {
		return false
	}

	cut := len(s.Messages) - c.policy.RecentKeep
	older := s.Messages[:cut]
	transcript := Transcript(older)
	if strings.TrimSpace(transcript) == "" {
		return false
	}

	summary := c.summarize(ctx, s.SessionID, transcript)
	merged := summary
	if prev := strings.TrimSpace(s.MemorySummary); prev != "" {
		merged = prev + summaryDivider + summary
	}

	recent := make([]statex.Turn, c.policy.RecentKeep)
	copy(recent, s.Messages[cut:])

	placeholder := statex.Turn{
		User:      placeholderUser,
		Assistant: merged,
		Agent:     statex.AgentSystemSummary,
		Timestamp: c.now().UTC(),
	}
	s.Messages = append([]statex.Turn{placeholder}, recent...)
	s.LastSummaryIndex = len(s.Messages)
	s.MemorySummary = merged
	s.Touch(c.now())

	log.Debug().
		Str("session_id", s.SessionID).
		Int("folded_turns", len(older)).
		Int("summary_len", len(merged)).
		Msg("memory compacted")
	return true
}

func (c *Compactor) summarize(ctx context.Context, sessionID, transcript string) string {
	if EstimateTokens(transcript) < c.policy.SummaryMaxTokens/2 || c.summarizer == nil {
		return transcript
	}

	prompt := promptx.Render(c.prompts.SummarizeHistory, map[string]string{"history": transcript})
	out, err := c.summarizer.Invoke(ctx, prompt)
	if err != nil || strings.TrimSpace(out) == "" {
		// keep the raw transcript so nothing is lost
		log.Warn().Err(err).Str("session_id", sessionID).Msg("history summarization failed, keeping transcript")
		return transcript
	}
	return strings.TrimSpace(out)
}

// Transcript renders turns as "User: ..." / "Assistant: ..." lines. The
// placeholder turn is skipped since its content already lives in the summary.
func Transcript(turns []statex.Turn) string {
	lines := make([]string, 0, len(turns)*2)
	for _, t := range turns {
		if t.IsPlaceholder() {
			continue
		}
		if u := clip(t.User); u != "" {
			lines = append(lines, "User: "+u)
		}
		if a := clip(t.Assistant); a != "" {
			lines = append(lines, "Assistant: "+a)
		}
	}
	return strings.Join(lines, "\n")
}

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > transcriptMaxLen {
		return string(r[:transcriptMaxLen]) + "..."
	}
	return s
}

// EstimateTokens approximates token count as len/4, at least 1 for
// non-empty text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return max(1, len(text)/4)
}
