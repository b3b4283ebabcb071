package session

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Yuvaramesh/sales-agent/agent/persistence"
	promptx "github.com/Yuvaramesh/sales-agent/agent/prompt"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

const (
	summaryMaxLen       = 1000
	fallbackPrefix      = "Summary (fallback): "
	fallbackSnippetLen  = 80
	fallbackSnippetUsed = 3
	emptySummary        = "No messages to summarize."
)

type EndResult struct {
	SessionID    string
	Summary      string
	MessageCount int
	// AlreadyEnded is set when the session had finished before this call.
	AlreadyEnded bool
}

// End finishes the session held by the lease: it generates and stores the
// conversation summary, marks the session finished, writes it through and
// evicts it from memory. The lease is released.
func (m *Manager) End(ctx context.Context, l *Lease) EndResult {
	sess := l.Session
	res := EndResult{SessionID: sess.SessionID, MessageCount: len(sess.Messages)}

	if sess.Finished() && m.gateway != nil {
		rctx, cancel := m.writeContext(ctx)
		stored, err := m.gateway.FindSummary(rctx, sess.SessionID)
		cancel()
		if err == nil {
			res.Summary = stored.Summary
			res.MessageCount = stored.MessageCount
			res.AlreadyEnded = true
			m.Evict(ctx, l)
			return res
		}
	}

	res.Summary = m.SummarizeSession(ctx, sess)
	sess.Stage = statex.StageFinished
	sess.Awaiting = ""
	end := m.now().UTC()

	if m.gateway != nil {
		doc := &persistence.ConversationSummary{
			SessionID:    sess.SessionID,
			UserEmail:    sess.UserEmail,
			Summary:      res.Summary,
			MessageCount: res.MessageCount,
			StartTime:    sess.StartTime,
			EndTime:      end,
		}
		wctx, cancel := m.writeContext(ctx)
		err := m.gateway.UpsertSummary(wctx, doc)
		cancel()
		if err != nil {
			m.deadLetter(ctx, persistence.CollectionSummaries, sess.SessionID, doc, err)
		}
		if sess.UserEmail != "" {
			wctx, cancel := m.writeContext(ctx)
			err := m.gateway.UpdateUserSummary(wctx, sess.UserEmail, sess.SessionID, res.Summary)
			cancel()
			if err != nil {
				m.deadLetter(ctx, persistence.CollectionUsers, sess.SessionID, map[string]any{
					"email":           sess.UserEmail,
					"recent_summary":  res.Summary,
					"last_session_id": sess.SessionID,
				}, err)
			}
		}
	}

	log.Info().
		Str("session_id", sess.SessionID).
		Int("messages", res.MessageCount).
		Msg("session ended")
	m.Evict(ctx, l)
	return res
}

// EndByID looks the session up without creating it and ends it. Unknown ids
// fail with ErrNotFound.
func (m *Manager) EndByID(ctx context.Context, sessionID, userEmail string) (EndResult, error) {
	l, err := m.AcquireExisting(ctx, sessionID, userEmail)
	if err != nil {
		return EndResult{SessionID: strings.TrimSpace(sessionID)}, err
	}
	return m.End(ctx, l), nil
}

// SummarizeSession produces the end-of-session summary. Without a working
// summarizer it falls back to the opening user messages.
func (m *Manager) SummarizeSession(ctx context.Context, sess *statex.Session) string {
	if len(sess.Messages) == 0 {
		return emptySummary
	}

	lines := make([]string, 0, len(sess.Messages)*2)
	for _, t := range sess.Messages {
		lines = append(lines, "User: "+t.User, "Assistant: "+t.Assistant)
	}
	conversation := strings.Join(lines, "\n")

	summary := ""
	if m.summarizer != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.llmTimeout)
		out, err := m.summarizer.Invoke(sctx, promptx.Render(m.prompts.SummarizeSession, map[string]string{
			"conversation": conversation,
		}))
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("session_id", sess.SessionID).Msg("session summary failed, using fallback")
		} else {
			summary = strings.TrimSpace(out)
		}
	}
	if summary == "" {
		summary = fallbackSummary(sess.Messages)
	}
	return truncate(summary, summaryMaxLen)
}

func fallbackSummary(turns []statex.Turn) string {
	parts := make([]string, 0, fallbackSnippetUsed)
	for _, t := range turns {
		if t.IsPlaceholder() {
			continue
		}
		u := []rune(t.User)
		if len(u) > fallbackSnippetLen {
			u = u[:fallbackSnippetLen]
		}
		parts = append(parts, string(u))
		if len(parts) == fallbackSnippetUsed {
			break
		}
	}
	return fallbackPrefix + strings.Join(parts, " | ")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
