package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/tool"
)

const (
	SupervisorMaxRounds = 10
	SubAgentMaxRounds   = 5
)

type loopState int

const (
	stateDispatching loopState = iota
	stateAwaitingToolResult
	stateDone
	stateAborted
)

func (s loopState) String() string {
	switch s {
	case stateDispatching:
		return "dispatching"
	case stateAwaitingToolResult:
		return "awaiting_tool_result"
	case stateDone:
		return "done"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// trace collects raw tool outputs in the order they were produced.
type trace struct {
	outputs []string
}

func (t *trace) add(outputs ...string) {
	for _, o := range outputs {
		if strings.TrimSpace(o) != "" {
			t.outputs = append(t.outputs, o)
		}
	}
}

// toolLoop alternates model calls and tool executions until the model
// answers without tool calls or maxRounds tool round trips are spent.
type toolLoop struct {
	agentType contractx.AgentType
	runner    compose.Runnable[[]*schema.Message, *schema.Message]
	execute   tool.Executor
	maxRounds int
	trace     *trace
}

func (l *toolLoop) run(ctx context.Context, messages []*schema.Message) (string, error) {
	var (
		state   = stateDispatching
		rounds  int
		pending []*schema.Message
		calls   []schema.ToolCall
	)

	for {
		switch state {
		case stateDispatching:
			msg, err := l.runner.Invoke(ctx, messages)
			if err != nil {
				return "", fmt.Errorf("%w: agent=%s: %v", contractx.ErrModelInvoke, l.agentType, err)
			}
			messages = append(messages, msg)
			calls = msg.ToolCalls
			switch {
			case len(calls) == 0:
				state = stateDone
			case rounds >= l.maxRounds:
				state = stateAborted
			default:
				state = stateAwaitingToolResult
			}

		case stateAwaitingToolResult:
			rounds++
			pending = pending[:0]
			for _, call := range calls {
				pending = append(pending, l.executeCall(ctx, call))
			}
			messages = append(messages, pending...)
			calls = nil
			state = stateDispatching

		case stateDone:
			return ExtractText(MessageList(messages)), nil

		case stateAborted:
			log.Warn().
				Str("agent", string(l.agentType)).
				Int("rounds", rounds).
				Msg("tool loop budget exhausted")
			return ExtractText(MessageList(messages)), fmt.Errorf("%w: agent=%s after %d round trips", contractx.ErrToolLoopBudget, l.agentType, rounds)
		}
	}
}

func (l *toolLoop) executeCall(ctx context.Context, call schema.ToolCall) *schema.Message {
	req, err := decodeToolCall(call)
	if err != nil {
		return schema.ToolMessage("error: "+err.Error(), call.ID)
	}

	res, err := l.execute(ctx, req.Tool, req.Args)
	if err != nil {
		log.Warn().Err(err).
			Str("agent", string(l.agentType)).
			Str("tool", req.Tool).
			Msg("tool execution failed")
		return schema.ToolMessage("error: "+err.Error(), call.ID)
	}

	content := tool.Content(res)
	if res.Error == "" {
		l.trace.add(content)
	}
	return schema.ToolMessage(content, call.ID)
}

func decodeToolCall(call schema.ToolCall) (contractx.ToolRequest, error) {
	name := strings.TrimSpace(call.Function.Name)
	if name == "" {
		return contractx.ToolRequest{}, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return contractx.ToolRequest{}, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, name, err)
		}
	}
	return contractx.ToolRequest{CallID: call.ID, Tool: name, Args: args}, nil
}
