// Package tool is the catalog of tools the delegate agents may call.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
)

const (
	ToolGetUserProfile = "get_user_profile"
	ToolFindCars       = "find_cars"
	ToolWebSearch      = "web_search"
	ToolMathEvaluate   = "math.evaluate"

	ToolPersonalWrapper = "personal_wrapper"
	ToolCarWrapper      = "car_wrapper"
	ToolWebWrapper      = "web_wrapper"
)

type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

type Option func(*Catalog)

func WithVehicleFinder(f contractx.VehicleFinder) Option { return func(c *Catalog) { c.finder = f } }

func WithWebSearcher(s contractx.WebSearcher) Option { return func(c *Catalog) { c.searcher = s } }

func WithUserLookup(u UserLookup) Option { return func(c *Catalog) { c.users = u } }

// Catalog binds tool implementations to their backing collaborators.
type Catalog struct {
	finder   contractx.VehicleFinder
	searcher contractx.WebSearcher
	users    UserLookup
}

func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Catalog) BuildForAgent(agentType contractx.AgentType) ([]*schema.ToolInfo, Executor) {
	return InfosForAgent(agentType), c.NewExecutor(agentType)
}

// NewExecutor dispatches the tools of one agent. Tools outside the agent's
// set resolve to an unavailable result.
func (c *Catalog) NewExecutor(agentType contractx.AgentType) Executor {
	allowed := make(map[string]struct{})
	for _, info := range InfosForAgent(agentType) {
		allowed[info.Name] = struct{}{}
	}
	fallback := DefaultExecutor(agentType)
	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		if _, ok := allowed[tool]; !ok {
			return fallback(ctx, tool, args)
		}
		switch tool {
		case ToolMathEvaluate:
			return executeMathTool(tool, args)
		case ToolFindCars:
			return c.executeFindCars(ctx, tool, args)
		case ToolWebSearch:
			return c.executeWebSearch(ctx, tool, args)
		case ToolGetUserProfile:
			return c.executeProfile(ctx, tool, args)
		default:
			return fallback(ctx, tool, args)
		}
	}
}

func DefaultExecutor(agentType contractx.AgentType) Executor {
	return func(ctx context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("tool=%s is unavailable for agent=%s", tool, agentType),
		}, nil
	}
}

// Content renders a tool result as the text of a tool message.
func Content(res contractx.ToolResult) string {
	if res.Error != "" {
		return "error: " + res.Error
	}
	switch v := res.Result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%s is empty", key)
	}
	return s, nil
}

func payloadParam(desc string) *schema.ParamsOneOf {
	return schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"payload": {Type: schema.String, Desc: desc, Required: true},
	})
}

// InfosForAgent lists the tools offered to an agent.
func InfosForAgent(agentType contractx.AgentType) []*schema.ToolInfo {
	switch agentType {
	case contractx.AgentTypePersonal:
		return []*schema.ToolInfo{
			{
				Name: ToolGetUserProfile,
				Desc: "Fetch the stored profile of a user by email.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"email": {Type: schema.String, Desc: "User email address", Required: true},
				}),
			},
		}
	case contractx.AgentTypeCar:
		return []*schema.ToolInfo{
			{
				Name: ToolFindCars,
				Desc: "Search the car inventory. Results are sorted newest first, then cheapest first.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"filters_json": {
						Type:     schema.String,
						Desc:     `JSON object with any of: make, model, year_min, year_max, price_min, price_max, mileage_max, style, fuel_type, query. Plain text is used as a free-text query.`,
						Required: true,
					},
				}),
			},
			{
				Name: ToolMathEvaluate,
				Desc: "Evaluate a mathematical expression.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"expression": {Type: schema.String, Desc: "Expression to evaluate", Required: true},
				}),
			},
		}
	case contractx.AgentTypeWeb:
		return []*schema.ToolInfo{
			{
				Name: ToolWebSearch,
				Desc: "Search the web for recent external information.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"query": {Type: schema.String, Desc: "Search query", Required: true},
				}),
			},
		}
	case contractx.AgentTypeSupervisor:
		return []*schema.ToolInfo{
			{Name: ToolPersonalWrapper, Desc: "Ask the Personal Agent to fetch user profile data.", ParamsOneOf: payloadParam("Request for the Personal Agent")},
			{Name: ToolCarWrapper, Desc: "Ask the Car Agent to search the car inventory.", ParamsOneOf: payloadParam("Request for the Car Agent")},
			{Name: ToolWebWrapper, Desc: "Ask the Web Agent to research external sources.", ParamsOneOf: payloadParam("Request for the Web Agent")},
		}
	default:
		return nil
	}
}
