// Package orchestrator is the turn resolver: it runs each user turn through
// the deterministic handlers or the delegate agent and owns the session
// boundary operations.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	nodex "github.com/Yuvaramesh/sales-agent/agent/nodes/orchestrator"
	"github.com/Yuvaramesh/sales-agent/agent/session"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidEmail   = nodex.ErrInvalidEmail
	ErrInvalidSession = errors.New("session id is empty")
)

const (
	StatusEnded        = "ended"
	StatusAlreadyEnded = "already_ended"
	StatusNotFound     = "not_found"

	DefaultTurnLimit       = 20
	defaultDelegateTimeout = 2 * time.Minute
)

type Config struct {
	// TurnLimit ends a session once it has taken this many turns. Zero
	// disables the limit.
	TurnLimit       int
	DelegateTimeout time.Duration
}

type Orchestrator struct {
	sessions *session.Manager
	orders   nodex.OrderPlacer
	delegate contractx.Delegate

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	turnLimit       int
	delegateTimeout time.Duration

	now func() time.Time
}

func New(
	sessions *session.Manager,
	orders nodex.OrderPlacer,
	delegate contractx.Delegate,
	cfg Config,
) (*Orchestrator, error) {
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if orders == nil {
		return nil, errors.New("order engine is required")
	}

	timeout := cfg.DelegateTimeout
	if timeout <= 0 {
		timeout = defaultDelegateTimeout
	}

	o := &Orchestrator{
		sessions:        sessions,
		orders:          orders,
		delegate:        delegate,
		turnLimit:       max(cfg.TurnLimit, 0),
		delegateTimeout: timeout,
		now:             time.Now,
	}

	graphRunner, err := o.compileSubmitTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

type TurnResult struct {
	Response            string `json:"response"`
	SessionID           string `json:"session_id"`
	SessionEnded        bool   `json:"session_ended"`
	ConversationSummary string `json:"conversation_summary,omitempty"`
	Message             string `json:"message,omitempty"`
}

// SubmitTurn runs one user turn. An empty session id, or the id of a
// finished session, starts a new session for the user.
func (o *Orchestrator) SubmitTurn(ctx context.Context, sessionID, userEmail, text string) (TurnResult, error) {
	userEmail = strings.TrimSpace(userEmail)
	if userEmail == "" {
		return TurnResult{}, ErrInvalidEmail
	}
	if strings.TrimSpace(text) == "" {
		return TurnResult{}, ErrInvalidMessage
	}

	lease, err := o.sessions.Acquire(ctx, sessionID, userEmail)
	if err != nil {
		return TurnResult{}, err
	}
	if lease.Session.Finished() {
		finished := lease.Session.SessionID
		o.sessions.Evict(ctx, lease)
		lease, err = o.sessions.Acquire(ctx, "", userEmail)
		if err != nil {
			return TurnResult{}, err
		}
		log.Info().
			Str("session_id", lease.Session.SessionID).
			Str("previous_session_id", finished).
			Msg("finished session resumed as new session")
	}
	defer lease.Release()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		Session: lease.Session,
		Text:    text,
	})
	if err != nil {
		return TurnResult{}, err
	}

	res := TurnResult{Response: out.Reply, SessionID: out.SessionID}
	if o.turnLimit > 0 && lease.Session.TurnCount >= o.turnLimit {
		ended := o.sessions.End(ctx, lease)
		res.SessionEnded = true
		res.ConversationSummary = ended.Summary
		res.Message = fmt.Sprintf("Conversation ended after %d questions", o.turnLimit)
	}
	return res, nil
}

type EndResult struct {
	Status              string `json:"status"`
	SessionID           string `json:"session_id"`
	UserEmail           string `json:"user_email,omitempty"`
	ConversationSummary string `json:"conversation_summary,omitempty"`
	MessageCount        int    `json:"message_count,omitempty"`
	Message             string `json:"message,omitempty"`
}

// EndSession summarizes and finishes a session. An unknown id is reported
// through Status, not as an error.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID, userEmail string) (EndResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return EndResult{}, ErrInvalidSession
	}
	userEmail = strings.TrimSpace(userEmail)

	ended, err := o.sessions.EndByID(ctx, sessionID, userEmail)
	switch {
	case errors.Is(err, contractx.ErrNotFound):
		return EndResult{
			Status:    StatusNotFound,
			SessionID: sessionID,
			UserEmail: userEmail,
			Message:   "Session not found or already ended",
		}, nil
	case err != nil:
		return EndResult{}, err
	}

	status := StatusEnded
	if ended.AlreadyEnded {
		status = StatusAlreadyEnded
	}
	return EndResult{
		Status:              status,
		SessionID:           ended.SessionID,
		UserEmail:           userEmail,
		ConversationSummary: ended.Summary,
		MessageCount:        ended.MessageCount,
	}, nil
}
