package delegate

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
)

// compileAgentGraph wraps one tool-bound model call: history in, next
// assistant message out.
func compileAgentGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	graphName string,
) (compose.Runnable[[]*schema.Message, *schema.Message], error) {
	graph := compose.NewGraph[[]*schema.Message, *schema.Message]()
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add agent model node: %w", err)
	}
	if err := graph.AddLambdaNode("check_reply",
		compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (*schema.Message, error) {
			if msg == nil {
				return nil, fmt.Errorf("%w: empty model reply", contractx.ErrSchemaViolation)
			}
			return msg, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add agent check node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "model"); err != nil {
		return nil, fmt.Errorf("add agent edge start->model: %w", err)
	}
	if err := graph.AddEdge("model", "check_reply"); err != nil {
		return nil, fmt.Errorf("add agent edge model->check: %w", err)
	}
	if err := graph.AddEdge("check_reply", compose.END); err != nil {
		return nil, fmt.Errorf("add agent edge check->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile agent graph: %w", err)
	}
	return runner, nil
}
