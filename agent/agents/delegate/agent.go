// Package delegate holds the language-model agents the turn resolver falls
// back to: a supervisor that routes to personal, car and web sub-agents
// through wrapper tools.
package delegate

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/tool"
)

// Agent is a tool-calling model with a fixed system prompt and tool set.
type Agent struct {
	agentType    contractx.AgentType
	systemPrompt string
	runner       compose.Runnable[[]*schema.Message, *schema.Message]
	execute      tool.Executor
	maxRounds    int
}

var _ contractx.Delegate = (*Agent)(nil)

func newAgent(
	ctx context.Context,
	agentType contractx.AgentType,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	infos []*schema.ToolInfo,
	execute tool.Executor,
	maxRounds int,
) (*Agent, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required for agent=%s", contractx.ErrValidation, agentType)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: agent=%s", contractx.ErrPromptMissing, agentType)
	}

	bound := einomodel.BaseChatModel(chatModel)
	if len(infos) > 0 {
		toolModel, err := chatModel.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for agent=%s: %v", contractx.ErrModelInvoke, agentType, err)
		}
		bound = toolModel
	}
	runner, err := compileAgentGraph(ctx, bound, "delegate."+string(agentType))
	if err != nil {
		return nil, fmt.Errorf("%w: compile agent=%s: %v", contractx.ErrModelInvoke, agentType, err)
	}

	if execute == nil {
		execute = tool.DefaultExecutor(agentType)
	}
	if maxRounds <= 0 {
		maxRounds = SubAgentMaxRounds
	}
	return &Agent{
		agentType:    agentType,
		systemPrompt: systemPrompt,
		runner:       runner,
		execute:      execute,
		maxRounds:    maxRounds,
	}, nil
}

func (a *Agent) Type() contractx.AgentType { return a.agentType }

func (a *Agent) Respond(ctx context.Context, req contractx.DelegateRequest) (contractx.DelegateReply, error) {
	return a.respond(ctx, req, a.execute, &trace{})
}

func (a *Agent) respond(ctx context.Context, req contractx.DelegateRequest, execute tool.Executor, tr *trace) (contractx.DelegateReply, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return contractx.DelegateReply{}, fmt.Errorf("%w: prompt is required", contractx.ErrValidation)
	}

	loop := &toolLoop{
		agentType: a.agentType,
		runner:    a.runner,
		execute:   execute,
		maxRounds: a.maxRounds,
		trace:     tr,
	}
	text, err := loop.run(ctx, []*schema.Message{
		schema.SystemMessage(a.systemPrompt),
		schema.UserMessage(prompt),
	})
	return contractx.DelegateReply{Text: text, ToolOutputs: tr.outputs}, err
}
