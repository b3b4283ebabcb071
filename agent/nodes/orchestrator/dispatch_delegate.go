package orchestratornode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/handlers"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

// DispatchDelegate hands the turn to the delegate agent with the bounded
// context and state annotation, then applies any result markers. Delegate
// failures become the reply text.
func DispatchDelegate(
	ctx context.Context,
	in *GraphState,
	sessions SessionRecorder,
	delegate contractx.Delegate,
	timeout time.Duration,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	s := in.Session
	in.Handler = contractx.HandlerSupervisor

	if delegate == nil {
		in.Reply = "Sorry, I encountered an error: assistant is not configured"
		return in, nil
	}

	prompt := handlers.DelegatePrompt(sessions.ContextFor(ctx, s), handlers.StateAnnotation(s), in.Text)

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	reply, err := delegate.Respond(dctx, contractx.DelegateRequest{
		SessionID: s.SessionID,
		UserEmail: s.UserEmail,
		Prompt:    prompt,
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", s.SessionID).Msg("delegate failed")
		in.Reply = fmt.Sprintf("Sorry, I encountered an error: %v", err)
		return in, nil
	}

	applyResultMarkers(s, reply)
	in.Reply = handlers.StripMarkers(reply.Text)
	return in, nil
}

// applyResultMarkers reads result payloads from the final text. A kind of
// result missing there is taken from the newest tool output carrying it, so
// the stored results match what the user was shown.
func applyResultMarkers(s *statex.Session, reply contractx.DelegateReply) {
	upd, err := handlers.ApplyMarkers(s, reply.Text)
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.SessionID).Msg("marker payload skipped")
	}

	for i := len(reply.ToolOutputs) - 1; i >= 0 && !(upd.Cars && upd.Web); i-- {
		out := reply.ToolOutputs[i]
		if !upd.Cars && !strings.Contains(reply.Text, handlers.CarMarker) {
			if ok, err := handlers.ApplyCarMarker(s, out); err == nil && ok {
				upd.Cars = true
			}
		}
		if !upd.Web && !strings.Contains(reply.Text, handlers.WebMarker) {
			if ok, err := handlers.ApplyWebMarker(s, out); err == nil && ok {
				upd.Web = true
			}
		}
	}

	if upd.Any() {
		log.Debug().
			Str("session_id", s.SessionID).
			Int("results", len(s.LastResults)).
			Int("web_results", len(s.LastWebResults)).
			Msg("result markers applied")
	}
}
