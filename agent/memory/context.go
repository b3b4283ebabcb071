package memory

import (
	"fmt"
	"strings"

	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

// BuildContext renders the summary block followed by the most recent turns,
// oldest first. Turns are added whole until the token budget would be
// exceeded.
func (c *Compactor) BuildContext(s *statex.Session) string {
	if s == nil {
		return ""
	}

	budget := c.policy.MaxPromptTokens
	used := 0
	blocks := make([]string, 0, c.policy.RecentKeep+1)

	if summary := strings.TrimSpace(s.MemorySummary); summary != "" {
		block := "Memory Summary:\n" + summary + "\n"
		blocks = append(blocks, block)
		used += EstimateTokens(block)
	}

	turns := make([]statex.Turn, 0, len(s.Messages))
	for _, t := range s.Messages {
		if !t.IsPlaceholder() {
			turns = append(turns, t)
		}
	}
	if len(turns) > c.policy.RecentKeep {
		turns = turns[len(turns)-c.policy.RecentKeep:]
	}

	for _, t := range turns {
		block := renderTurn(t)
		if block == "" {
			continue
		}
		cost := EstimateTokens(block)
		if used+cost > budget {
			break
		}
		blocks = append(blocks, block)
		used += cost
	}
	return strings.Join(blocks, "\n")
}

func renderTurn(t statex.Turn) string {
	var b strings.Builder
	if t.User != "" {
		fmt.Fprintf(&b, "User: %s\n", t.User)
	}
	if t.Assistant != "" {
		agent := t.Agent
		if agent == "" {
			agent = "assistant"
		}
		fmt.Fprintf(&b, "Assistant (%s): %s\n", agent, t.Assistant)
	}
	return b.String()
}
