package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/handlers"
	"github.com/Yuvaramesh/sales-agent/agent/order"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

// ConfirmOrder handles an order confirmation. Without an address it asks
// for one instead of placing the order.
func ConfirmOrder(ctx context.Context, in *GraphState, orders OrderPlacer) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	s := in.Session
	if !s.HasAddress() {
		s.Awaiting = statex.AwaitingAddress
		in.Reply = handlers.AskAddressMessage(s.SelectedVehicle)
		in.Handler = contractx.HandlerOrder
		return in, nil
	}
	return placeOrder(ctx, in, orders, contractx.HandlerOrder)
}

// FulfillAddress places the order once the awaited address has arrived.
func FulfillAddress(ctx context.Context, in *GraphState, orders OrderPlacer) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	return placeOrder(ctx, in, orders, contractx.HandlerAddress)
}

// placeOrder never fails the turn: an engine error becomes an apology and
// the session keeps its stage so the user can retry.
func placeOrder(ctx context.Context, in *GraphState, orders OrderPlacer, handler string) (*GraphState, error) {
	s := in.Session
	in.Handler = handler
	if s.HasOrder() {
		return nil, fmt.Errorf("%w: session %s already has order %s", contractx.ErrValidation, s.SessionID, s.OrderID)
	}

	orderID, err := orders.Create(ctx, s, order.Request{})
	if err != nil {
		log.Error().Err(err).
			Str("session_id", s.SessionID).
			Msg("order placement failed")
		in.Reply = handlers.OrderErrorMessage(err)
		return in, nil
	}

	in.Reply = handlers.OrderSuccessMessage(orderID, s.SelectedVehicle, s.Field(statex.FieldAddress))
	return in, nil
}
