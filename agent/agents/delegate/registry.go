package delegate

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	llmx "github.com/Yuvaramesh/sales-agent/agent/llm"
	promptx "github.com/Yuvaramesh/sales-agent/agent/prompt"
	"github.com/Yuvaramesh/sales-agent/agent/tool"
)

// ModelFactory creates the chat model backing one agent.
type ModelFactory func(ctx context.Context, agentType contractx.AgentType) (einomodel.ToolCallingChatModel, error)

type Registry struct {
	Supervisor *Supervisor
	Personal   *Agent
	Car        *Agent
	Web        *Agent
}

// OpenRouterModels builds each agent's model from its per-role config.
func OpenRouterModels(cfg llmx.Config) ModelFactory {
	return func(ctx context.Context, agentType contractx.AgentType) (einomodel.ToolCallingChatModel, error) {
		modelCfg := cfg.OpenRouterFor(agentType)
		m, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, agentType, err)
		}
		return m, nil
	}
}

func NewRegistry(ctx context.Context, cfg llmx.Config, catalog *tool.Catalog) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return BuildRegistry(ctx, OpenRouterModels(cfg), catalog, promptx.LoadPromptSet())
}

func BuildRegistry(ctx context.Context, models ModelFactory, catalog *tool.Catalog, prompts promptx.PromptSet) (*Registry, error) {
	if catalog == nil {
		catalog = tool.NewCatalog()
	}

	build := func(agentType contractx.AgentType, systemPrompt string) (*Agent, error) {
		chatModel, err := models(ctx, agentType)
		if err != nil {
			return nil, err
		}
		infos, execute := catalog.BuildForAgent(agentType)
		return newAgent(ctx, agentType, chatModel, systemPrompt, infos, execute, SubAgentMaxRounds)
	}

	personal, err := build(contractx.AgentTypePersonal, prompts.Personal)
	if err != nil {
		return nil, err
	}
	car, err := build(contractx.AgentTypeCar, prompts.Car)
	if err != nil {
		return nil, err
	}
	web, err := build(contractx.AgentTypeWeb, prompts.Web)
	if err != nil {
		return nil, err
	}

	supModel, err := models(ctx, contractx.AgentTypeSupervisor)
	if err != nil {
		return nil, err
	}
	supAgent, err := newAgent(ctx, contractx.AgentTypeSupervisor, supModel, prompts.Supervisor,
		tool.InfosForAgent(contractx.AgentTypeSupervisor), nil, SupervisorMaxRounds)
	if err != nil {
		return nil, err
	}

	return &Registry{
		Supervisor: newSupervisor(supAgent, personal, car, web),
		Personal:   personal,
		Car:        car,
		Web:        web,
	}, nil
}
