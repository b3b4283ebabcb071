package orchestratornode

import (
	"fmt"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/handlers"
)

func SelectVehicle(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	reply, handled := handlers.SelectVehicle(in.Session, in.Text)
	if !handled {
		return nil, fmt.Errorf("%w: %q is not a selection", contractx.ErrValidation, in.Text)
	}
	in.Reply = reply
	in.Handler = contractx.HandlerSelection
	return in, nil
}
