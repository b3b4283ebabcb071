package contract

import (
	"context"

	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

// Invoker is the opaque language-model call: prompt in, text out.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

type Delegate interface {
	Respond(ctx context.Context, req DelegateRequest) (DelegateReply, error)
}

type VehicleFinder interface {
	Find(ctx context.Context, filters VehicleFilters, limit int) ([]statex.Vehicle, error)
}

type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]statex.WebResult, error)
}
