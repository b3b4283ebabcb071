package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
)

const emptyReply = "Sorry, I don't have a response for that. Could you rephrase?"

// RecordTurn appends the turn to the session log and writes it through.
func RecordTurn(ctx context.Context, in *GraphState, sessions SessionRecorder) (GraphOutput, error) {
	if in == nil || in.Session == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		reply = emptyReply
	}
	handler := in.Handler
	if handler == "" {
		handler = contractx.HandlerSupervisor
	}

	sessions.RecordTurn(ctx, in.Session, in.Text, reply, handler)
	return GraphOutput{
		SessionID: in.Session.SessionID,
		Reply:     reply,
		Handler:   handler,
	}, nil
}
