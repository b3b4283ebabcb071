package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/tool"
)

type subAgent struct {
	label    string
	delegate contractx.Delegate
}

// Supervisor is the top-level delegate. Its only tools are wrappers that
// forward a payload to a sub-agent and return the sub-agent's reply.
type Supervisor struct {
	agent     *Agent
	subAgents map[string]subAgent
}

var _ contractx.Delegate = (*Supervisor)(nil)

func newSupervisor(agent *Agent, personal, car, web contractx.Delegate) *Supervisor {
	return &Supervisor{
		agent: agent,
		subAgents: map[string]subAgent{
			tool.ToolPersonalWrapper: {label: "Personal Agent", delegate: personal},
			tool.ToolCarWrapper:      {label: "Car Agent", delegate: car},
			tool.ToolWebWrapper:      {label: "Web Agent", delegate: web},
		},
	}
}

// Respond runs the supervisor loop. ToolOutputs holds every raw tool output
// produced during the turn, sub-agent tool outputs included, oldest first.
func (s *Supervisor) Respond(ctx context.Context, req contractx.DelegateRequest) (contractx.DelegateReply, error) {
	tr := &trace{}
	return s.agent.respond(ctx, req, s.wrapperExecutor(req, tr), tr)
}

func (s *Supervisor) wrapperExecutor(req contractx.DelegateRequest, tr *trace) tool.Executor {
	fallback := tool.DefaultExecutor(contractx.AgentTypeSupervisor)
	return func(ctx context.Context, name string, args map[string]any) (contractx.ToolResult, error) {
		sub, ok := s.subAgents[name]
		if !ok {
			return fallback(ctx, name, args)
		}
		if sub.delegate == nil {
			return contractx.ToolResult{Tool: name, Result: sub.label + " not available."}, nil
		}

		payload := payloadArg(args)
		if name == tool.ToolPersonalWrapper && req.UserEmail != "" && !strings.Contains(payload, req.UserEmail) {
			payload = strings.TrimSpace(payload + "\nUser email: " + req.UserEmail)
		}

		reply, err := sub.delegate.Respond(ctx, contractx.DelegateRequest{
			SessionID: req.SessionID,
			UserEmail: req.UserEmail,
			Prompt:    payload,
		})
		tr.add(reply.ToolOutputs...)
		if err != nil {
			log.Warn().Err(err).
				Str("session_id", req.SessionID).
				Str("tool", name).
				Msg("sub-agent failed")
			return contractx.ToolResult{Tool: name, Result: fmt.Sprintf("%s error: %v", sub.label, err)}, nil
		}
		return contractx.ToolResult{Tool: name, Result: reply.Text}, nil
	}
}

// payloadArg reads the wrapper payload. Models sometimes send structured
// arguments instead, which are forwarded as JSON.
func payloadArg(args map[string]any) string {
	if p, ok := args["payload"].(string); ok && strings.TrimSpace(p) != "" {
		return strings.TrimSpace(p)
	}
	if len(args) == 0 {
		return ""
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(raw)
}
