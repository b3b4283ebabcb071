package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/Yuvaramesh/sales-agent/agent/nodes/orchestrator"
)

func (o *Orchestrator) compileSubmitTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("extract_contact",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExtractContact(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node extract_contact: %w", err)
	}

	if err := graph.AddLambdaNode(nodex.RouteOrderConfirm,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ConfirmOrder(ctx, in, o.orders)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.RouteOrderConfirm, err)
	}

	if err := graph.AddLambdaNode(nodex.RouteAddressFulfill,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.FulfillAddress(ctx, in, o.orders)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.RouteAddressFulfill, err)
	}

	if err := graph.AddLambdaNode(nodex.RouteSelectVehicle,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SelectVehicle(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.RouteSelectVehicle, err)
	}

	if err := graph.AddLambdaNode(nodex.RouteDelegate,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchDelegate(ctx, in, o.sessions, o.delegate, o.delegateTimeout)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.RouteDelegate, err)
	}

	if err := graph.AddLambdaNode("record_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.RecordTurn(ctx, in, o.sessions)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_turn: %w", err)
	}

	routes := []string{
		nodex.RouteOrderConfirm,
		nodex.RouteAddressFulfill,
		nodex.RouteSelectVehicle,
		nodex.RouteDelegate,
	}
	endNodes := make(map[string]bool, len(routes))
	for _, r := range routes {
		endNodes[r] = true
	}
	if err := graph.AddBranch("extract_contact", compose.NewGraphBranch(nodex.RouteTurn, endNodes)); err != nil {
		return nil, fmt.Errorf("add route_turn branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "extract_contact"},
		{"record_turn", compose.END},
	}
	for _, r := range routes {
		edges = append(edges, [2]string{r, "record_turn"})
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.submit_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
